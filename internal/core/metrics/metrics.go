package metrics

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/dep2p/go-veilcore/pkg/lib/log"
)

var logger = log.Logger("core/metrics")

const namespace = "veilcore"

// Metrics 基于 prometheus 的指标集合
type Metrics struct {
	reg *prometheus.Registry

	dhtOps      *prometheus.CounterVec
	dhtLatency  *prometheus.HistogramVec
	watchNotify prometheus.Counter
	attachment  *prometheus.CounterVec

	// 快照计数，与 prometheus 计数同步更新
	mu          sync.Mutex
	ops         map[string]uint64
	errs        map[string]uint64
	notified    uint64
	transitions uint64
}

// New 创建指标集合
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		dhtOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dht",
			Name:      "operations_total",
			Help:      "DHT operations by operation and result.",
		}, []string{"op", "result"}),
		dhtLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dht",
			Name:      "operation_seconds",
			Help:      "DHT operation latency.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"op"}),
		watchNotify: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "notifications_total",
			Help:      "Value change notifications delivered to watchers.",
		}),
		attachment: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attachment",
			Name:      "transitions_total",
			Help:      "Attachment state transitions by target state.",
		}, []string{"state"}),
		ops:  make(map[string]uint64),
		errs: make(map[string]uint64),
	}
	m.reg.MustRegister(m.dhtOps, m.dhtLatency, m.watchNotify, m.attachment)
	return m
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObserveDHT 记录一次 DHT 操作
func (m *Metrics) ObserveDHT(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.dhtOps.WithLabelValues(op, result).Inc()
	m.dhtLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())

	m.mu.Lock()
	m.ops[op]++
	if err != nil {
		m.errs[op]++
	}
	m.mu.Unlock()
}

// WatchNotified 记录一次监听通知
func (m *Metrics) WatchNotified() {
	if m == nil {
		return
	}
	m.watchNotify.Inc()
	m.mu.Lock()
	m.notified++
	m.mu.Unlock()
}

// AttachmentChanged 记录一次连接状态切换
func (m *Metrics) AttachmentChanged(state string) {
	if m == nil {
		return
	}
	m.attachment.WithLabelValues(state).Inc()
	m.mu.Lock()
	m.transitions++
	m.mu.Unlock()
}

// RegisterGaugeFunc 注册一个采集时回调的只读指标
//
// name 不含命名空间前缀。同名指标重复注册返回错误。
func (m *Metrics) RegisterGaugeFunc(name, help string, fn func() float64) error {
	if m == nil {
		return nil
	}
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
	if err := m.reg.Register(g); err != nil {
		return fmt.Errorf("register gauge %s: %w", name, err)
	}
	return nil
}

// Snapshot 返回计数快照
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{DHTOps: map[string]uint64{}, DHTErrors: map[string]uint64{}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		DHTOps:                make(map[string]uint64, len(m.ops)),
		DHTErrors:             make(map[string]uint64, len(m.errs)),
		WatchNotifications:    m.notified,
		AttachmentTransitions: m.transitions,
	}
	for k, v := range m.ops {
		s.DHTOps[k] = v
	}
	for k, v := range m.errs {
		s.DHTErrors[k] = v
	}
	return s
}

// WriteText 以 prometheus 文本格式输出全部指标
func (m *Metrics) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.reg.Gather()
	if err != nil {
		logger.Warn("采集指标失败", "error", err)
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
