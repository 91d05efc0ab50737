package loopback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/internal/core/crypto"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// ============================================================================
// 测试辅助
// ============================================================================

var vld0 = crypto.VLD0{}

func newKeyPair(t *testing.T) types.KeyPair {
	t.Helper()
	kp, err := vld0.GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

func nodeID(t *testing.T) types.TypedKey {
	return types.NewTypedKey(types.CryptoKindVLD0, newKeyPair(t).Key)
}

func newDescriptor(t *testing.T, owner types.KeyPair, schema types.DHTSchema) types.DHTRecordDescriptor {
	t.Helper()
	secret := owner.Secret
	return types.DHTRecordDescriptor{
		Key:         crypto.RecordKey(vld0, owner.Key, schema),
		Owner:       owner.Key,
		OwnerSecret: &secret,
		Schema:      schema,
	}
}

func signed(t *testing.T, desc types.DHTRecordDescriptor, subkey types.ValueSubkey, seq uint32, data string, writer types.KeyPair) types.SignedValueData {
	t.Helper()
	v, err := crypto.SignValue(vld0, desc.Owner, subkey, types.ValueData{Seq: seq, Data: []byte(data), Writer: writer.Key}, writer)
	require.NoError(t, err)
	return v
}

func joined(t *testing.T, hub *Hub, password string) *Transport {
	t.Helper()
	tr := hub.NewTransport(nodeID(t), password)
	_, err := tr.Join(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func testHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	p, err := crypto.NewProvider(config.DefaultCryptoConfig())
	require.NoError(t, err)
	return NewHub(p, opts...)
}

func safe(hops int) types.SafetySelection {
	return types.Safe(types.SafetySpec{HopCount: hops})
}

// ============================================================================
// 加入与分区
// ============================================================================

func TestTransport_JoinPeersLeave(t *testing.T) {
	hub := testHub(t)
	a := hub.NewTransport(nodeID(t), "")
	b := hub.NewTransport(nodeID(t), "")
	defer a.Close()
	defer b.Close()

	n, err := a.Join(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = b.Join(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, a.Peers())
	assert.Len(t, hub.Nodes(""), 2)

	require.NoError(t, b.Leave(context.Background()))
	assert.Zero(t, a.Peers())
	assert.Zero(t, b.Peers())
}

func TestTransport_PartitionsByPassword(t *testing.T) {
	hub := testHub(t)
	open := joined(t, hub, "")
	secret := joined(t, hub, "hunter2")

	assert.Zero(t, open.Peers())
	assert.Zero(t, secret.Peers())
	assert.NotEqual(t, open.NetworkKey(), secret.NetworkKey())

	owner := newKeyPair(t)
	desc := newDescriptor(t, owner, types.NewDFLTSchema(1))
	_, err := secret.SetValue(context.Background(), interfaces.SetValueRequest{
		Descriptor: desc, Subkey: 0, Value: signed(t, desc, 0, 0, "x", owner),
	})
	require.NoError(t, err)

	resp, err := open.GetValue(context.Background(), interfaces.GetValueRequest{Key: desc.Key, WantDescriptor: true})
	require.NoError(t, err)
	assert.Nil(t, resp.Value)
	assert.Nil(t, resp.Descriptor)
	assert.Equal(t, 1, hub.RecordCount("hunter2"))
	assert.Zero(t, hub.RecordCount(""))
}

func TestTransport_NotJoined(t *testing.T) {
	hub := testHub(t)
	tr := hub.NewTransport(nodeID(t), "")
	defer tr.Close()

	_, err := tr.GetValue(context.Background(), interfaces.GetValueRequest{})
	assert.ErrorIs(t, err, ErrNotJoined)

	require.NoError(t, tr.Close())
	_, err = tr.Join(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

// ============================================================================
// 读写与序列号
// ============================================================================

func TestTransport_SetGet(t *testing.T) {
	hub := testHub(t)
	tr := joined(t, hub, "")
	owner := newKeyPair(t)
	desc := newDescriptor(t, owner, types.NewDFLTSchema(2))
	ctx := context.Background()

	resp, err := tr.SetValue(ctx, interfaces.SetValueRequest{Descriptor: desc, Subkey: 1, Value: signed(t, desc, 1, 0, "hello", owner)})
	require.NoError(t, err)
	assert.Nil(t, resp.Newer)

	got, err := tr.GetValue(ctx, interfaces.GetValueRequest{Key: desc.Key, Subkey: 1, WantDescriptor: true})
	require.NoError(t, err)
	require.NotNil(t, got.Value)
	assert.Equal(t, "hello", string(got.Value.Data))
	require.NotNil(t, got.Descriptor)
	assert.Nil(t, got.Descriptor.OwnerSecret, "hub never stores the owner secret")
	assert.Equal(t, desc.Owner, got.Descriptor.Owner)

	empty, err := tr.GetValue(ctx, interfaces.GetValueRequest{Key: desc.Key, Subkey: 0})
	require.NoError(t, err)
	assert.Nil(t, empty.Value)

	_, err = tr.GetValue(ctx, interfaces.GetValueRequest{Key: desc.Key, Subkey: 2})
	assert.ErrorIs(t, err, ErrSubkeyOutOfRange)
}

func TestTransport_SeqRules(t *testing.T) {
	hub := testHub(t)
	tr := joined(t, hub, "")
	owner := newKeyPair(t)
	desc := newDescriptor(t, owner, types.NewDFLTSchema(1))
	ctx := context.Background()

	set := func(seq uint32, data string) interfaces.SetValueResponse {
		resp, err := tr.SetValue(ctx, interfaces.SetValueRequest{Descriptor: desc, Value: signed(t, desc, 0, seq, data, owner)})
		require.NoError(t, err)
		return resp
	}
	current := func() types.SignedValueData {
		resp, err := tr.GetValue(ctx, interfaces.GetValueRequest{Key: desc.Key})
		require.NoError(t, err)
		require.NotNil(t, resp.Value)
		return *resp.Value
	}

	assert.Nil(t, set(3, "three").Newer)

	// 较旧的序列号返回已存值
	resp := set(1, "one")
	require.NotNil(t, resp.Newer)
	assert.Equal(t, uint32(3), resp.Newer.Seq)
	assert.Equal(t, "three", string(current().Data))

	// 相同序列号、相同内容：无操作
	assert.Nil(t, set(3, "three").Newer)

	// 相同序列号、不同内容：后到者胜出
	assert.Nil(t, set(3, "tres").Newer)
	assert.Equal(t, "tres", string(current().Data))

	assert.Nil(t, set(4, "four").Newer)
	assert.Equal(t, uint32(4), current().Seq)
}

func TestTransport_Validation(t *testing.T) {
	hub := testHub(t, WithMaxSubkeySize(8))
	tr := joined(t, hub, "")
	owner := newKeyPair(t)
	member := newKeyPair(t)
	stranger := newKeyPair(t)
	schema := types.NewSMPLSchema(1, types.DHTSchemaMember{MKey: member.Key, MCnt: 2})
	desc := newDescriptor(t, owner, schema)
	ctx := context.Background()

	tests := []struct {
		name   string
		desc   types.DHTRecordDescriptor
		subkey types.ValueSubkey
		value  types.SignedValueData
		want   error
	}{
		{"owner subkey by owner", desc, 0, signed(t, desc, 0, 0, "o", owner), nil},
		{"member subkey by member", desc, 2, signed(t, desc, 2, 0, "m", member), nil},
		{"owner subkey by member", desc, 0, signed(t, desc, 0, 1, "m", member), ErrUnauthorized},
		{"member subkey by stranger", desc, 1, signed(t, desc, 1, 0, "s", stranger), ErrUnauthorized},
		{"out of range", desc, 3, signed(t, desc, 3, 0, "x", owner), ErrSubkeyOutOfRange},
		{"too large", desc, 0, signed(t, desc, 0, 5, "123456789", owner), ErrValueTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.SetValue(ctx, interfaces.SetValueRequest{Descriptor: tt.desc, Subkey: tt.subkey, Value: tt.value})
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}

	t.Run("tampered data", func(t *testing.T) {
		v := signed(t, desc, 0, 7, "abc", owner)
		v.Data = []byte("abd")
		_, err := tr.SetValue(ctx, interfaces.SetValueRequest{Descriptor: desc, Value: v})
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("key does not match schema", func(t *testing.T) {
		bad := desc
		bad.Schema = types.NewDFLTSchema(3)
		_, err := tr.SetValue(ctx, interfaces.SetValueRequest{Descriptor: bad, Value: signed(t, bad, 0, 0, "x", owner)})
		assert.ErrorIs(t, err, ErrInvalidDescriptor)
	})
}

func TestTransport_Inspect(t *testing.T) {
	hub := testHub(t)
	tr := joined(t, hub, "")
	owner := newKeyPair(t)
	desc := newDescriptor(t, owner, types.NewDFLTSchema(3))
	ctx := context.Background()

	_, err := tr.SetValue(ctx, interfaces.SetValueRequest{Descriptor: desc, Subkey: 1, Value: signed(t, desc, 1, 5, "x", owner)})
	require.NoError(t, err)

	resp, err := tr.InspectValue(ctx, interfaces.InspectValueRequest{Key: desc.Key, Subkeys: types.FullSubkeyRange(3)})
	require.NoError(t, err)
	assert.Equal(t, []types.ValueSeqNum{types.ValueSeqNumNone, 5, types.ValueSeqNumNone}, resp.Seqs)
}

// ============================================================================
// 监听推送
// ============================================================================

type collector struct {
	mu   sync.Mutex
	seen []string
}

func (c *collector) handler(_ types.RecordKey, _ types.ValueSubkey, v types.SignedValueData) {
	c.mu.Lock()
	c.seen = append(c.seen, string(v.Data))
	c.mu.Unlock()
}

func (c *collector) values() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}

func TestTransport_WatchPush(t *testing.T) {
	hub := testHub(t)
	writer := joined(t, hub, "")
	watcher := joined(t, hub, "")
	owner := newKeyPair(t)
	desc := newDescriptor(t, owner, types.NewDFLTSchema(2))
	ctx := context.Background()

	var mine, theirs collector
	writer.SetValueChangedHandler(mine.handler)
	watcher.SetValueChangedHandler(theirs.handler)

	for _, tr := range []*Transport{writer, watcher} {
		resp, err := tr.WatchValue(ctx, interfaces.WatchValueRequest{Key: desc.Key, Subkeys: types.SingleSubkey(0), Active: true})
		require.NoError(t, err)
		assert.True(t, resp.Accepted)
	}

	for i, data := range []string{"a", "b", "c"} {
		_, err := writer.SetValue(ctx, interfaces.SetValueRequest{Descriptor: desc, Value: signed(t, desc, 0, uint32(i), data, owner)})
		require.NoError(t, err)
	}
	// 子键 1 不在监听范围内
	_, err := writer.SetValue(ctx, interfaces.SetValueRequest{Descriptor: desc, Subkey: 1, Value: signed(t, desc, 1, 0, "z", owner)})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(theirs.values()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, theirs.values())
	assert.Empty(t, mine.values(), "origin never receives its own change")

	// 取消后不再推送
	_, err = watcher.WatchValue(ctx, interfaces.WatchValueRequest{Key: desc.Key, Active: false})
	require.NoError(t, err)
	_, err = writer.SetValue(ctx, interfaces.SetValueRequest{Descriptor: desc, Value: signed(t, desc, 0, 9, "d", owner)})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, theirs.values(), 3)
}

func TestTransport_WatchExpired(t *testing.T) {
	hub := testHub(t)
	writer := joined(t, hub, "")
	watcher := joined(t, hub, "")
	owner := newKeyPair(t)
	desc := newDescriptor(t, owner, types.NewDFLTSchema(1))
	ctx := context.Background()

	var c collector
	watcher.SetValueChangedHandler(c.handler)
	_, err := watcher.WatchValue(ctx, interfaces.WatchValueRequest{
		Key: desc.Key, Active: true, Expiration: time.Now().Add(-time.Second),
	})
	require.NoError(t, err)

	_, err = writer.SetValue(ctx, interfaces.SetValueRequest{Descriptor: desc, Value: signed(t, desc, 0, 0, "x", owner)})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, c.values())
}

// ============================================================================
// 路由与超时
// ============================================================================

func TestTransport_SafetySelection(t *testing.T) {
	hub := testHub(t, WithMaxRouteHopCount(2))
	tr := joined(t, hub, "")
	ctx := context.Background()

	_, err := tr.GetValue(ctx, interfaces.GetValueRequest{Safety: safe(2)})
	require.NoError(t, err)
	assert.True(t, tr.LastSafety().Equal(safe(2)))

	_, err = tr.GetValue(ctx, interfaces.GetValueRequest{Safety: safe(3)})
	assert.ErrorIs(t, err, types.ErrInvalidSafetySelection)

	_, err = tr.GetValue(ctx, interfaces.GetValueRequest{Safety: types.Unsafe(types.SequencingEnsureOrdered)})
	require.NoError(t, err)
	assert.False(t, tr.LastSafety().IsSafe())
	assert.Equal(t, uint64(2), tr.Calls())
}

func TestTransport_ContextDeadline(t *testing.T) {
	hub := testHub(t, WithLatency(200*time.Millisecond))
	tr := hub.NewTransport(nodeID(t), "")
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := tr.Join(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancelled, cancel2 := context.WithCancel(context.Background())
	cancel2()
	_, err = tr.Join(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHubName(t *testing.T) {
	name, err := HubName([]string{"udp://x", "loopback:lab"})
	require.NoError(t, err)
	assert.Equal(t, "lab", name)

	_, err = HubName([]string{"loopback:"})
	assert.Error(t, err)
	_, err = HubName(nil)
	assert.Error(t, err)
}
