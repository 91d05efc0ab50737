package metrics

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func TestMetrics_ObserveDHT(t *testing.T) {
	m := New()
	m.ObserveDHT("get_value", time.Now(), nil)
	m.ObserveDHT("get_value", time.Now(), errors.New("boom"))
	m.ObserveDHT("set_value", time.Now(), nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.dhtOps.WithLabelValues("get_value", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dhtOps.WithLabelValues("get_value", "error")))

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.DHTOps["get_value"])
	assert.Equal(t, uint64(1), s.DHTErrors["get_value"])
	assert.Equal(t, uint64(1), s.DHTOps["set_value"])
	assert.Zero(t, s.DHTErrors["set_value"])
}

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.WatchNotified()
	m.WatchNotified()
	m.AttachmentChanged("Attaching")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.watchNotify))
	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.WatchNotifications)
	assert.Equal(t, uint64(1), s.AttachmentTransitions)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveDHT("x", time.Now(), nil)
	m.WatchNotified()
	m.AttachmentChanged("Detached")
	require.NoError(t, m.RegisterGaugeFunc("x", "x", func() float64 { return 1 }))
	require.NoError(t, m.WriteText(&bytes.Buffer{}))
	assert.NotNil(t, m.Snapshot().DHTOps)
}

func TestMetrics_GaugeFuncAndText(t *testing.T) {
	m := New()
	require.NoError(t, m.RegisterGaugeFunc("test_gauge", "test gauge", func() float64 { return 42 }))
	require.Error(t, m.RegisterGaugeFunc("test_gauge", "dup", func() float64 { return 0 }))

	m.ObserveDHT("inspect_record", time.Now(), nil)

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, "veilcore_test_gauge 42")
	assert.Contains(t, out, `veilcore_dht_operations_total{op="inspect_record",result="ok"} 1`)
}

func TestModule_Load(t *testing.T) {
	var reporter Reporter
	var m *Metrics

	app := fxtest.New(t,
		Module(),
		fx.Populate(&reporter, &m),
	)
	defer app.RequireStart().RequireStop()

	require.NotNil(t, reporter)
	reporter.WatchNotified()
	assert.Equal(t, uint64(1), m.Snapshot().WatchNotifications)
}
