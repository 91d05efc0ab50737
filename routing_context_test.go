package veilcore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-veilcore/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              构建器
// ════════════════════════════════════════════════════════════════════════════

func TestRoutingContext_Default(t *testing.T) {
	c := newCore(t, testHub(t))
	rc := c.RoutingContext()

	spec, ok := rc.Safety().SafetySpec()
	require.True(t, ok, "默认开启隐私")
	assert.Equal(t, 1, spec.HopCount)
	assert.Equal(t, types.StabilityLowLatency, spec.Stability)
	assert.Equal(t, types.SequencingNoPreference, spec.Sequencing)
}

func TestRoutingContext_Builders(t *testing.T) {
	c := newCore(t, testHub(t))
	base := c.RoutingContext()

	ordered := base.WithSequencing(types.SequencingEnsureOrdered)
	assert.Equal(t, types.SequencingEnsureOrdered, ordered.Safety().Sequencing())
	assert.True(t, ordered.Safety().IsSafe())
	// 原值不变
	assert.Equal(t, types.SequencingNoPreference, base.Safety().Sequencing())

	unsafe, err := ordered.WithSafety(types.Unsafe(types.SequencingPreferOrdered))
	require.NoError(t, err)
	assert.False(t, unsafe.Safety().IsSafe())
	assert.Equal(t, types.SequencingPreferOrdered, unsafe.Safety().Sequencing())

	// WithPrivacy 恢复安全路由并保留顺序保证
	private := unsafe.WithPrivacy()
	spec, ok := private.Safety().SafetySpec()
	require.True(t, ok)
	assert.Equal(t, types.SequencingPreferOrdered, spec.Sequencing)
	assert.Equal(t, 1, spec.HopCount)

	reliable := unsafe.WithCustomPrivacy(types.StabilityReliable)
	spec, ok = reliable.Safety().SafetySpec()
	require.True(t, ok)
	assert.Equal(t, types.StabilityReliable, spec.Stability)
	assert.Equal(t, types.SequencingPreferOrdered, spec.Sequencing)

	assert.True(t, reliable.WithDefaultSafety().Safety().Equal(base.Safety()))
}

func TestRoutingContext_WithSafetyValidatesHops(t *testing.T) {
	c := newCore(t, testHub(t))
	rc := c.RoutingContext()

	_, err := rc.WithSafety(types.Safe(types.SafetySpec{HopCount: 0}))
	assert.ErrorIs(t, err, types.ErrInvalidSafetySelection)
	assert.Equal(t, KindConfiguration, KindOf(err))

	_, err = rc.WithSafety(types.Safe(types.SafetySpec{HopCount: c.Config().Network.MaxRouteHopCount + 1}))
	assert.ErrorIs(t, err, types.ErrInvalidSafetySelection)

	got, err := rc.WithSafety(types.Safe(types.SafetySpec{HopCount: 3, Stability: types.StabilityReliable}))
	require.NoError(t, err)
	spec, _ := got.Safety().SafetySpec()
	assert.Equal(t, 3, spec.HopCount)
}

// ════════════════════════════════════════════════════════════════════════════
//                              DHT 操作
// ════════════════════════════════════════════════════════════════════════════

func TestRoutingContext_RecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	hub := testHub(t)
	a := attachedCore(t, hub)
	b := attachedCore(t, hub)

	rcA := a.RoutingContext().WithSequencing(types.SequencingEnsureOrdered)
	desc, err := rcA.CreateDHTRecord(ctx, types.NewDFLTSchema(2), types.CryptoKind{}, nil)
	require.NoError(t, err)
	assert.Equal(t, types.CryptoKindVLD0, desc.Key.Kind)
	require.NotNil(t, desc.OwnerSecret)

	newer, err := rcA.SetDHTValue(ctx, desc.Key, 0, []byte("hello"), nil)
	require.NoError(t, err)
	assert.Nil(t, newer)

	rcB := b.RoutingContext()
	opened, err := rcB.OpenDHTRecord(ctx, desc.Key, nil)
	require.NoError(t, err)
	assert.Nil(t, opened.OwnerSecret)
	assert.Equal(t, desc.Owner, opened.Owner)

	v, err := rcB.GetDHTValue(ctx, desc.Key, 0, true)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, []byte("hello"), v.Data)
	assert.Equal(t, types.ValueSeqNum(0), v.Seq)

	// 未写入的子键
	v, err = rcB.GetDHTValue(ctx, desc.Key, 1, true)
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, rcB.CloseDHTRecord(ctx, desc.Key))
	_, err = rcB.GetDHTValue(ctx, desc.Key, 0, false)
	assert.ErrorIs(t, err, ErrRecordNotOpen)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestRoutingContext_WriteRequiresCredential(t *testing.T) {
	ctx := context.Background()
	hub := testHub(t)
	a := attachedCore(t, hub)
	b := attachedCore(t, hub)

	desc, err := a.RoutingContext().CreateDHTRecord(ctx, types.NewDFLTSchema(1), types.CryptoKind{}, nil)
	require.NoError(t, err)
	owner, ok := desc.OwnerKeyPair()
	require.True(t, ok)
	_, err = a.RoutingContext().SetDHTValue(ctx, desc.Key, 0, []byte("v0"), nil)
	require.NoError(t, err)

	rcB := b.RoutingContext()
	_, err = rcB.OpenDHTRecord(ctx, desc.Key, nil)
	require.NoError(t, err)

	_, err = rcB.SetDHTValue(ctx, desc.Key, 0, []byte("denied"), nil)
	assert.ErrorIs(t, err, ErrNotWritable)
	assert.Equal(t, KindAuthorization, KindOf(err))

	// 只读句柄上内联提供所有者凭据可以写入
	cred, err := types.ParseKeyPair(owner.String())
	require.NoError(t, err)
	_, err = rcB.SetDHTValue(ctx, desc.Key, 0, []byte("v1"), &cred)
	require.NoError(t, err)

	v, err := rcB.GetDHTValue(ctx, desc.Key, 0, false)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, []byte("v1"), v.Data)
	assert.Equal(t, types.ValueSeqNum(1), v.Seq)
}

func TestRoutingContext_WatchDeliversValueChange(t *testing.T) {
	ctx := context.Background()
	hub := testHub(t)
	a := attachedCore(t, hub)
	b := attachedCore(t, hub)
	updates := subscribe(t, b)

	desc, err := a.RoutingContext().CreateDHTRecord(ctx, types.NewDFLTSchema(4), types.CryptoKind{}, nil)
	require.NoError(t, err)
	_, err = a.RoutingContext().SetDHTValue(ctx, desc.Key, 0, []byte("first"), nil)
	require.NoError(t, err)

	rcB := b.RoutingContext()
	_, err = rcB.OpenDHTRecord(ctx, desc.Key, nil)
	require.NoError(t, err)
	id, err := rcB.WatchDHTValues(ctx, desc.Key, types.SubkeysOf(0, 1), time.Time{}, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = a.RoutingContext().SetDHTValue(ctx, desc.Key, 1, []byte("second"), nil)
	require.NoError(t, err)
	// 未监听的子键不产生通知
	_, err = a.RoutingContext().SetDHTValue(ctx, desc.Key, 3, []byte("ignored"), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(updates.valueChanges()) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	changes := updates.valueChanges()
	require.Len(t, changes, 1)
	assert.Equal(t, desc.Key, changes[0].Key)
	assert.Equal(t, id, changes[0].WatchID)
	assert.True(t, changes[0].Subkeys.Contains(1))
	require.NotNil(t, changes[0].Value)
	assert.Equal(t, []byte("second"), changes[0].Value.Data)

	active, err := rcB.CancelDHTWatch(ctx, desc.Key, types.ValueSubkeyRangeSet{})
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRoutingContext_InspectLocal(t *testing.T) {
	ctx := context.Background()
	c := startedCore(t, testHub(t))
	rc := c.RoutingContext()

	desc, err := rc.CreateDHTRecord(ctx, types.NewDFLTSchema(3), types.CryptoKind{}, nil)
	require.NoError(t, err)
	_, err = rc.SetDHTValue(ctx, desc.Key, 1, []byte("x"), nil)
	require.NoError(t, err)

	report, err := rc.InspectDHTRecord(ctx, desc.Key, types.ValueSubkeyRangeSet{}, types.ReportScopeLocal)
	require.NoError(t, err)
	assert.Equal(t, []types.ValueSeqNum{types.ValueSeqNumNone, 0, types.ValueSeqNumNone}, report.LocalSeqs)
	assert.Empty(t, report.NetworkSeqs)
	assert.True(t, report.OfflineSubkeys.Contains(1))

	require.NoError(t, rc.DeleteDHTRecord(ctx, desc.Key))
	_, err = rc.OpenDHTRecord(ctx, desc.Key, nil)
	assert.Error(t, err)
}

func TestRoutingContext_OfflineWriteFlushedOnAttach(t *testing.T) {
	ctx := context.Background()
	hub := testHub(t)
	a := startedCore(t, hub)
	rc := a.RoutingContext()

	desc, err := rc.CreateDHTRecord(ctx, types.NewDFLTSchema(1), types.CryptoKind{}, nil)
	require.NoError(t, err)
	_, err = rc.SetDHTValue(ctx, desc.Key, 0, []byte("offline"), nil)
	require.NoError(t, err)

	report, err := rc.InspectDHTRecord(ctx, desc.Key, types.ValueSubkeyRangeSet{}, types.ReportScopeLocal)
	require.NoError(t, err)
	assert.True(t, report.OfflineSubkeys.Contains(0))

	// 强制读取需要连接
	_, err = rc.GetDHTValue(ctx, desc.Key, 0, true)
	assert.ErrorIs(t, err, ErrNotAttached)
	assert.True(t, IsRetryable(err))

	require.NoError(t, a.Attach(ctx))
	require.Eventually(t, func() bool {
		r, err := rc.InspectDHTRecord(ctx, desc.Key, types.ValueSubkeyRangeSet{}, types.ReportScopeLocal)
		return err == nil && r.OfflineSubkeys.IsEmpty()
	}, 2*time.Second, 10*time.Millisecond)

	b := attachedCore(t, hub)
	_, err = b.RoutingContext().OpenDHTRecord(ctx, desc.Key, nil)
	require.NoError(t, err)
	v, err := b.RoutingContext().GetDHTValue(ctx, desc.Key, 0, true)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, []byte("offline"), v.Data)
}
