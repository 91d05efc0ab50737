package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	veilcore "github.com/dep2p/go-veilcore"
	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/internal/core/crypto"
	"github.com/dep2p/go-veilcore/internal/core/network/loopback"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// NewHub 创建测试专用的进程内网络
func NewHub(t *testing.T) *loopback.Hub {
	t.Helper()
	provider, err := crypto.NewProvider(config.DefaultCryptoConfig())
	require.NoError(t, err, "创建密码提供者失败")
	return loopback.NewHub(provider, loopback.WithName(t.Name()))
}

// TestCoreBuilder 测试核心构建器
//
// 使用 Builder 模式简化测试核心的创建和配置。
//
// 示例:
//
//	core := testutil.NewTestCore(t, hub).
//		WithDirectory(dir).
//		WithNetworkPassword(testutil.DefaultTestNetworkPassword).
//		Attach()
type TestCoreBuilder struct {
	t               *testing.T
	hub             *loopback.Hub
	dir             string
	networkPassword string
	tablePassword   string
	extra           []veilcore.Option
}

// NewTestCore 创建测试核心构建器
//
// 默认配置:
//   - 内存存储
//   - 无网络口令
//   - 不加密表存储
func NewTestCore(t *testing.T, hub *loopback.Hub) *TestCoreBuilder {
	t.Helper()
	return &TestCoreBuilder{t: t, hub: hub}
}

// WithDirectory 使用持久化目录代替内存存储
func (b *TestCoreBuilder) WithDirectory(dir string) *TestCoreBuilder {
	b.dir = dir
	return b
}

// WithNetworkPassword 设置网络口令
func (b *TestCoreBuilder) WithNetworkPassword(password string) *TestCoreBuilder {
	b.networkPassword = password
	return b
}

// WithTablePassword 开启表存储加密
func (b *TestCoreBuilder) WithTablePassword(password string) *TestCoreBuilder {
	b.tablePassword = password
	return b
}

// WithOptions 追加核心选项
func (b *TestCoreBuilder) WithOptions(opts ...veilcore.Option) *TestCoreBuilder {
	b.extra = append(b.extra, opts...)
	return b
}

// Build 创建核心但不启动
//
// 核心会在测试结束时自动关闭。
func (b *TestCoreBuilder) Build() *veilcore.Core {
	b.t.Helper()

	opts := []veilcore.Option{veilcore.WithHub(b.hub)}
	if b.dir != "" {
		opts = append(opts, veilcore.WithDirectory(b.dir))
	} else {
		opts = append(opts, veilcore.WithInMemoryStorage())
	}
	if b.networkPassword != "" {
		opts = append(opts, veilcore.WithNetworkKeyPassword(b.networkPassword))
	}
	if b.tablePassword != "" {
		opts = append(opts, veilcore.WithTableEncryption(b.tablePassword))
	}
	opts = append(opts, b.extra...)

	core, err := veilcore.New(opts...)
	require.NoError(b.t, err, "创建测试核心失败")

	b.t.Cleanup(func() {
		if err := core.Close(); err != nil {
			b.t.Logf("关闭核心失败: %v", err)
		}
	})
	return core
}

// Start 创建并启动核心
func (b *TestCoreBuilder) Start() *veilcore.Core {
	b.t.Helper()

	core := b.Build()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(b.t, core.Start(ctx), "启动核心失败")
	return core
}

// Attach 创建、启动并连接网络
func (b *TestCoreBuilder) Attach() *veilcore.Core {
	b.t.Helper()

	core := b.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(b.t, core.Attach(ctx), "连接网络失败")
	return core
}

// ════════════════════════════════════════════════════════════════════════════
//                              更新收集
// ════════════════════════════════════════════════════════════════════════════

// UpdateLog 收集核心推送的更新事件
type UpdateLog struct {
	mu      sync.Mutex
	updates []veilcore.Update
}

// Collect 订阅核心的全部更新，测试结束时自动退订
func Collect(t *testing.T, core *veilcore.Core) *UpdateLog {
	t.Helper()
	l := &UpdateLog{}
	unsub, err := core.Subscribe(l.add)
	require.NoError(t, err, "订阅更新失败")
	t.Cleanup(unsub)
	return l
}

func (l *UpdateLog) add(u veilcore.Update) {
	l.mu.Lock()
	l.updates = append(l.updates, u)
	l.mu.Unlock()
}

// All 返回已收到的全部更新
func (l *UpdateLog) All() []veilcore.Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]veilcore.Update(nil), l.updates...)
}

// ValueChanges 返回值变化更新
func (l *UpdateLog) ValueChanges() []veilcore.ValueChangeUpdate {
	var out []veilcore.ValueChangeUpdate
	for _, u := range l.All() {
		if vc, ok := u.(types.ValueChangeUpdate); ok {
			out = append(out, vc)
		}
	}
	return out
}
