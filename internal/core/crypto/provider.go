package crypto

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/lib/log"
	"github.com/dep2p/go-veilcore/pkg/types"
)

var logger = log.Logger("core/crypto")

// dhCacheKey DH 缓存键
type dhCacheKey struct {
	kind   types.CryptoKind
	key    types.PublicKey
	secret types.SecretKey
}

// Stats DH 缓存统计
type Stats struct {
	CacheHits   uint64
	CacheMisses uint64
	CacheLen    int
}

// Provider 密码学提供者
//
// 套件集合在构造后不再变化，所有方法可并发调用。
type Provider struct {
	kinds   []types.CryptoKind
	systems map[types.CryptoKind]interfaces.CryptoSystem

	dhCache *lru.Cache[dhCacheKey, types.SharedSecret]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

var _ interfaces.Crypto = (*Provider)(nil)

// NewProvider 创建提供者
func NewProvider(cfg config.CryptoConfig) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cache, err := lru.New[dhCacheKey, types.SharedSecret](cfg.DHCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create dh cache: %w", err)
	}

	p := &Provider{
		kinds:   []types.CryptoKind{types.CryptoKindVLD0},
		systems: map[types.CryptoKind]interfaces.CryptoSystem{types.CryptoKindVLD0: VLD0{}},
		dhCache: cache,
	}
	if cfg.EnableNone {
		logger.Warn("NONE 套件已启用，不提供任何安全性")
		p.kinds = append(p.kinds, types.CryptoKindNONE)
		p.systems[types.CryptoKindNONE] = NONE{}
	}
	return p, nil
}

// ValidCryptoKinds 支持的套件，首选在前
func (p *Provider) ValidCryptoKinds() []types.CryptoKind {
	return append([]types.CryptoKind(nil), p.kinds...)
}

// BestCryptoKind 首选套件
func (p *Provider) BestCryptoKind() types.CryptoKind { return p.kinds[0] }

// Get 获取指定套件
func (p *Provider) Get(kind types.CryptoKind) (interfaces.CryptoSystem, error) {
	cs, ok := p.systems[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	return cs, nil
}

// Best 获取首选套件
func (p *Provider) Best() interfaces.CryptoSystem { return p.systems[p.kinds[0]] }

// CachedDH 带缓存的 DH
func (p *Provider) CachedDH(kind types.CryptoKind, key types.PublicKey, secret types.SecretKey) (types.SharedSecret, error) {
	k := dhCacheKey{kind: kind, key: key, secret: secret}
	if ss, ok := p.dhCache.Get(k); ok {
		p.hits.Add(1)
		return ss, nil
	}
	p.misses.Add(1)

	cs, err := p.Get(kind)
	if err != nil {
		return types.SharedSecret{}, err
	}
	ss, err := cs.ComputeDH(key, secret)
	if err != nil {
		return types.SharedSecret{}, err
	}
	p.dhCache.Add(k, ss)
	return ss, nil
}

// Stats 返回缓存统计
func (p *Provider) Stats() Stats {
	return Stats{
		CacheHits:   p.hits.Load(),
		CacheMisses: p.misses.Load(),
		CacheLen:    p.dhCache.Len(),
	}
}

// ValidateTypedKeyPair 按套件校验带类型的密钥对
func (p *Provider) ValidateTypedKeyPair(kp types.TypedKeyPair) error {
	cs, err := p.Get(kp.Kind)
	if err != nil {
		return err
	}
	if !cs.ValidateKeyPair(kp.Key, kp.Secret) {
		return ErrInvalidKeyPair
	}
	return nil
}
