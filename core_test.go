package veilcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/internal/core/crypto"
	"github.com/dep2p/go-veilcore/internal/core/network/loopback"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              测试辅助
// ════════════════════════════════════════════════════════════════════════════

func testHub(t *testing.T) *loopback.Hub {
	t.Helper()
	provider, err := crypto.NewProvider(config.DefaultCryptoConfig())
	require.NoError(t, err)
	return loopback.NewHub(provider, loopback.WithName(t.Name()))
}

// newCore 创建内存核心，不启动
func newCore(t *testing.T, hub *loopback.Hub, opts ...Option) *Core {
	t.Helper()
	base := []Option{WithInMemoryStorage(), WithHub(hub)}
	c, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// startedCore 创建并启动内存核心
func startedCore(t *testing.T, hub *loopback.Hub, opts ...Option) *Core {
	t.Helper()
	c := newCore(t, hub, opts...)
	require.NoError(t, c.Start(context.Background()))
	return c
}

// attachedCore 创建、启动并连接
func attachedCore(t *testing.T, hub *loopback.Hub, opts ...Option) *Core {
	t.Helper()
	c := startedCore(t, hub, opts...)
	require.NoError(t, c.Attach(context.Background()))
	return c
}

// updateLog 收集更新事件
type updateLog struct {
	mu      sync.Mutex
	updates []Update
}

func (l *updateLog) add(u Update) {
	l.mu.Lock()
	l.updates = append(l.updates, u)
	l.mu.Unlock()
}

func (l *updateLog) all() []Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Update(nil), l.updates...)
}

func (l *updateLog) valueChanges() []ValueChangeUpdate {
	var out []ValueChangeUpdate
	for _, u := range l.all() {
		if vc, ok := u.(ValueChangeUpdate); ok {
			out = append(out, vc)
		}
	}
	return out
}

func (l *updateLog) attachments() []types.AttachmentState {
	var out []types.AttachmentState
	for _, u := range l.all() {
		if a, ok := u.(AttachmentUpdate); ok {
			out = append(out, a.State)
		}
	}
	return out
}

func (l *updateLog) has(kind types.UpdateKind) bool {
	for _, u := range l.all() {
		if u.Kind() == kind {
			return true
		}
	}
	return false
}

func subscribe(t *testing.T, c *Core) *updateLog {
	t.Helper()
	l := &updateLog{}
	unsub, err := c.Subscribe(l.add)
	require.NoError(t, err)
	t.Cleanup(unsub)
	return l
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

func TestCore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c := newCore(t, testHub(t))
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.NodeID().IsZero())

	rc := c.RoutingContext()
	_, err := rc.CreateDHTRecord(ctx, types.NewDFLTSchema(1), types.CryptoKind{}, nil)
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, c.Attach(ctx), ErrNotStarted)
	assert.ErrorIs(t, c.Stop(ctx), ErrNotStarted)

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, StateRunning, c.State())
	assert.ErrorIs(t, c.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, c.Stop(ctx))
	assert.Equal(t, StateStopped, c.State())
	assert.ErrorIs(t, c.Stop(ctx), ErrClosed)
	assert.ErrorIs(t, c.Start(ctx), ErrClosed)
	assert.NoError(t, c.Close())

	_, err = rc.GetDHTValue(ctx, types.RecordKey{}, 0, false)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, KindState, KindOf(err))
}

func TestCore_CloseWithoutStart(t *testing.T) {
	c := newCore(t, testHub(t))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Start(context.Background()), ErrClosed)

	_, err := c.Subscribe(func(Update) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCore_InvalidConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Network.DefaultRouteHopCount = 0

	_, err := New(WithConfig(cfg), WithInMemoryStorage())
	assert.Error(t, err)

	_, err = New(WithConfig(nil))
	assert.Error(t, err)
}

func TestCore_AttachDetach(t *testing.T) {
	ctx := context.Background()
	c := startedCore(t, testHub(t))
	updates := subscribe(t, c)

	assert.Equal(t, types.AttachmentDetached, c.AttachmentState())
	require.NoError(t, c.Attach(ctx))
	assert.True(t, c.AttachmentState().IsAttached())

	require.NoError(t, c.Detach(ctx))
	assert.Equal(t, types.AttachmentDetached, c.AttachmentState())

	require.Eventually(t, func() bool {
		states := updates.attachments()
		return len(states) >= 4 && states[len(states)-1] == types.AttachmentDetached
	}, 2*time.Second, 10*time.Millisecond)

	states := updates.attachments()
	assert.Equal(t, types.AttachmentAttaching, states[0])
	assert.True(t, states[1].IsAttached())
	assert.Equal(t, types.AttachmentDetaching, states[2])
}

func TestCore_ShutdownUpdate(t *testing.T) {
	c := startedCore(t, testHub(t))
	updates := subscribe(t, c)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool {
		return updates.has(types.UpdateKindShutdown)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCore_LogUpdates(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Logging.UpdateLevel = "warn"
	c := startedCore(t, testHub(t), WithConfig(cfg), WithInMemoryStorage())
	updates := subscribe(t, c)

	logger.Info("不应镜像的信息")
	logger.Warn("镜像到订阅者的告警")

	require.Eventually(t, func() bool {
		for _, u := range updates.all() {
			if lu, ok := u.(LogUpdate); ok && lu.Message == "镜像到订阅者的告警" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	for _, u := range updates.all() {
		if lu, ok := u.(LogUpdate); ok {
			assert.NotEqual(t, "不应镜像的信息", lu.Message)
			if lu.Message == "镜像到订阅者的告警" {
				assert.Equal(t, "Warn", lu.Level)
				assert.Equal(t, "veilcore", lu.Component)
			}
		}
	}
}

func TestCore_Unsubscribe(t *testing.T) {
	c := startedCore(t, testHub(t))
	l := &updateLog{}
	unsub, err := c.Subscribe(l.add)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Subscribers())

	unsub()
	unsub()
	assert.Equal(t, 0, c.Subscribers())

	require.NoError(t, c.Attach(context.Background()))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, l.attachments())
}

func TestCore_PersistentIdentity(t *testing.T) {
	dir := t.TempDir()
	hub := testHub(t)

	first, err := New(WithDirectory(dir), WithHub(hub))
	require.NoError(t, err)
	require.NoError(t, first.Start(context.Background()))
	id := first.NodeID()
	require.NoError(t, first.Close())

	second, err := New(WithDirectory(dir), WithHub(hub))
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, id, second.NodeID())
}

func TestCore_TableStore(t *testing.T) {
	c := startedCore(t, testHub(t))

	db, err := c.TableStore().Open("app", 2)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Store(1, []byte("k"), []byte("v")))
	got, err := db.Load(1, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	_, err = db.Load(0, []byte("k"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = c.TableStore().Open("app", 3)
	assert.ErrorIs(t, err, ErrColumnMismatch)
	assert.Equal(t, KindConfiguration, KindOf(err))
}

func TestCore_ConfigIsCopied(t *testing.T) {
	c := newCore(t, testHub(t), WithNamespace("alpha"))
	cfg := c.Config()
	assert.Equal(t, "alpha", cfg.Namespace)

	cfg.Namespace = "beta"
	assert.Equal(t, "alpha", c.Config().Namespace)
}

func TestCore_LateSubscriberSeesAttachment(t *testing.T) {
	c := attachedCore(t, testHub(t))
	updates := subscribe(t, c)

	require.Eventually(t, func() bool {
		states := updates.attachments()
		return len(states) == 1 && states[0].IsAttached()
	}, 2*time.Second, 10*time.Millisecond)
}
