package loopback

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"lukechampine.com/blake3"

	"github.com/dep2p/go-veilcore/internal/core/crypto"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/lib/log"
	"github.com/dep2p/go-veilcore/pkg/types"
)

var logger = log.Logger("network/loopback")

// 默认参数
const (
	DefaultMaxSubkeySize    = 32768
	DefaultMaxRouteHopCount = 4
)

// ============================================================================
//                              Hub 选项
// ============================================================================

// Option Hub 选项
type Option func(*Hub)

// WithMaxSubkeySize 设置单子键上限
func WithMaxSubkeySize(n int) Option {
	return func(h *Hub) { h.maxSubkeySize = n }
}

// WithMaxRouteHopCount 设置安全路由最大跳数
func WithMaxRouteHopCount(n int) Option {
	return func(h *Hub) { h.maxHops = n }
}

// WithLatency 为每次调用增加固定延迟，用于测试超时
func WithLatency(d time.Duration) Option {
	return func(h *Hub) { h.latency = d }
}

// WithName 设置 Hub 名称
func WithName(name string) Option {
	return func(h *Hub) { h.name = name }
}

// ============================================================================
//                              Hub
// ============================================================================

// NetworkKey 网络分区标识
type NetworkKey [32]byte

// NetworkKeyFor 由网络口令计算分区标识，空口令为公开网络
func NetworkKeyFor(password string) NetworkKey {
	if password == "" {
		return NetworkKey{}
	}
	return NetworkKey(blake3.Sum256([]byte(password)))
}

// Hub 进程内权威副本集
type Hub struct {
	name          string
	crypto        interfaces.Crypto
	maxSubkeySize int
	maxHops       int
	latency       time.Duration

	mu         sync.Mutex
	partitions map[NetworkKey]*partition
}

// partition 一个网络分区
type partition struct {
	mu      sync.Mutex
	nodes   map[types.TypedKey]*Transport
	records map[types.RecordKey]*hubRecord
	watches map[types.RecordKey]map[types.TypedKey]watchEntry
}

// hubRecord 一条记录的权威副本
type hubRecord struct {
	desc   types.DHTRecordDescriptor
	values map[types.ValueSubkey]types.SignedValueData
}

type watchEntry struct {
	subkeys    types.ValueSubkeyRangeSet
	expiration time.Time
}

// NewHub 创建 Hub
//
// c 为 nil 时使用同时支持 VLD0 与 NONE 的默认提供者。
func NewHub(c interfaces.Crypto, opts ...Option) *Hub {
	h := &Hub{
		name:          "default",
		crypto:        c,
		maxSubkeySize: DefaultMaxSubkeySize,
		maxHops:       DefaultMaxRouteHopCount,
		partitions:    make(map[NetworkKey]*partition),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.crypto == nil {
		p, err := crypto.NewProvider(defaultCryptoConfig())
		if err != nil {
			panic(fmt.Sprintf("loopback: default crypto provider: %v", err))
		}
		h.crypto = p
	}
	return h
}

// Name Hub 名称
func (h *Hub) Name() string {
	return h.name
}

// NewTransport 为节点创建传输
func (h *Hub) NewTransport(id types.TypedKey, networkPassword string) *Transport {
	t := &Transport{
		hub:    h,
		id:     id,
		netKey: NetworkKeyFor(networkPassword),
		inbox:  newInbox(),
	}
	go t.inbox.run(t.dispatch)
	return t
}

// RecordCount 指定分区中的记录数
func (h *Hub) RecordCount(password string) int {
	p := h.partition(NetworkKeyFor(password))
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// Nodes 指定分区中已加入的节点
func (h *Hub) Nodes(password string) []types.TypedKey {
	p := h.partition(NetworkKeyFor(password))
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.TypedKey, 0, len(p.nodes))
	for id := range p.nodes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (h *Hub) partition(key NetworkKey) *partition {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.partitions[key]
	if !ok {
		p = &partition{
			nodes:   make(map[types.TypedKey]*Transport),
			records: make(map[types.RecordKey]*hubRecord),
			watches: make(map[types.RecordKey]map[types.TypedKey]watchEntry),
		}
		h.partitions[key] = p
	}
	return p
}

// ============================================================================
//                              分区操作
// ============================================================================

func (p *partition) join(t *Transport) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes[t.id] = t
	return len(p.nodes) - 1
}

func (p *partition) leave(id types.TypedKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.nodes, id)
	for key, ws := range p.watches {
		delete(ws, id)
		if len(ws) == 0 {
			delete(p.watches, key)
		}
	}
}

func (p *partition) peers(id types.TypedKey) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.nodes)
	if _, ok := p.nodes[id]; ok {
		n--
	}
	return n
}

func (p *partition) get(key types.RecordKey, subkey types.ValueSubkey) (*types.SignedValueData, *types.DHTRecordDescriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[key]
	if !ok {
		return nil, nil, nil
	}
	if int(subkey) >= rec.desc.Schema.SubkeyCount() {
		return nil, nil, fmt.Errorf("%w: %d", ErrSubkeyOutOfRange, subkey)
	}
	desc := rec.desc
	v, ok := rec.values[subkey]
	if !ok {
		return nil, &desc, nil
	}
	return cloneValue(v), &desc, nil
}

func (p *partition) inspect(key types.RecordKey, subkeys types.ValueSubkeyRangeSet) []types.ValueSeqNum {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]types.ValueSeqNum, 0, subkeys.Len())
	rec := p.records[key]
	for _, sk := range subkeys.Subkeys() {
		seq := types.ValueSeqNumNone
		if rec != nil {
			if v, ok := rec.values[sk]; ok {
				seq = v.Seq
			}
		}
		out = append(out, seq)
	}
	return out
}

// store 按序列号规则写入，被接受的变化在持锁期间入队推送，保证同一记录的推送顺序
//
// 返回 changed 表示值被接受且与之前不同；ErrSeqTooOld 时 current 为已存值。
func (p *partition) store(desc types.DHTRecordDescriptor, subkey types.ValueSubkey, v types.SignedValueData, origin types.TypedKey) (changed bool, current *types.SignedValueData, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[desc.Key]
	if !ok {
		rec = &hubRecord{
			desc:   desc.WithoutSecret(),
			values: make(map[types.ValueSubkey]types.SignedValueData),
		}
		p.records[desc.Key] = rec
	}

	cur, exists := rec.values[subkey]
	if exists {
		switch {
		case v.Seq < cur.Seq:
			return false, cloneValue(cur), ErrSeqTooOld
		case v.Seq == cur.Seq && v.SameContent(cur.ValueData):
			return false, nil, nil
		}
	}
	rec.values[subkey] = *cloneValue(v)

	for _, w := range p.watchersLocked(desc.Key, subkey, origin, time.Now()) {
		w.inbox.push(change{key: desc.Key, subkey: subkey, value: *cloneValue(v)})
	}
	return true, nil, nil
}

func (p *partition) watch(key types.RecordKey, node types.TypedKey, subkeys types.ValueSubkeyRangeSet, expiration time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ws, ok := p.watches[key]
	if !ok {
		ws = make(map[types.TypedKey]watchEntry)
		p.watches[key] = ws
	}
	ws[node] = watchEntry{subkeys: subkeys, expiration: expiration}
}

func (p *partition) unwatch(key types.RecordKey, node types.TypedKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ws, ok := p.watches[key]; ok {
		delete(ws, node)
		if len(ws) == 0 {
			delete(p.watches, key)
		}
	}
}

// watchersLocked 返回需要推送的节点（排除 origin 与已过期注册），调用方持有 p.mu
func (p *partition) watchersLocked(key types.RecordKey, subkey types.ValueSubkey, origin types.TypedKey, now time.Time) []*Transport {
	var out []*Transport
	for node, w := range p.watches[key] {
		if node == origin {
			continue
		}
		if !w.expiration.IsZero() && now.After(w.expiration) {
			delete(p.watches[key], node)
			continue
		}
		if !w.subkeys.IsEmpty() && !w.subkeys.Contains(subkey) {
			continue
		}
		if t, ok := p.nodes[node]; ok {
			out = append(out, t)
		}
	}
	return out
}

func cloneValue(v types.SignedValueData) *types.SignedValueData {
	out := v
	out.Data = append([]byte(nil), v.Data...)
	return &out
}
