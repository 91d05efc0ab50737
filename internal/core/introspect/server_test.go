package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-veilcore/internal/core/metrics"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// fakeSource 可注入行为的 Source
type fakeSource struct {
	state   atomic.Int32
	metrics *metrics.Metrics
	debug   func(ctx context.Context, command string) (string, error)
}

func (f *fakeSource) NodeID() types.TypedKey {
	return types.NewTypedKey(types.CryptoKindVLD0, types.PublicKey{1, 2, 3})
}
func (f *fakeSource) AttachmentState() types.AttachmentState {
	return types.AttachmentState(f.state.Load())
}
func (f *fakeSource) MetricsSnapshot() metrics.Snapshot { return f.metrics.Snapshot() }
func (f *fakeSource) MetricsGatherer() prometheus.Gatherer { return f.metrics.Registry() }
func (f *fakeSource) Debug(ctx context.Context, command string) (string, error) {
	return f.debug(ctx, command)
}

func startServer(t *testing.T, src Source) *Server {
	t.Helper()
	server := New(Config{Addr: "127.0.0.1:0", Source: src})
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestNew(t *testing.T) {
	server := New(Config{})
	assert.Equal(t, DefaultAddr, server.config.Addr)

	server = New(Config{Addr: "127.0.0.1:8080"})
	assert.Equal(t, "127.0.0.1:8080", server.config.Addr)
}

func TestServer_StartStop(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:0"})

	ctx := context.Background()
	require.NoError(t, server.Start(ctx))
	assert.True(t, server.running)
	assert.NotEqual(t, "127.0.0.1:0", server.Addr())

	// 重复启动无效
	require.NoError(t, server.Start(ctx))

	require.NoError(t, server.Stop())
	assert.False(t, server.running)
	require.NoError(t, server.Stop())
}

func TestServer_Health(t *testing.T) {
	src := &fakeSource{metrics: metrics.New()}
	server := startServer(t, src)

	code, body := get(t, server, "/health")
	assert.Equal(t, http.StatusOK, code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "degraded", health.Status)

	src.state.Store(int32(types.AttachmentAttachedGood))
	_, body = get(t, server, "/health")
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "ok", health.Status)
}

func TestServer_Introspect(t *testing.T) {
	m := metrics.New()
	m.ObserveDHT("get_value", time.Now(), nil)
	src := &fakeSource{metrics: m}
	src.state.Store(int32(types.AttachmentAttachedWeak))
	server := startServer(t, src)

	code, body := get(t, server, "/debug/introspect")
	assert.Equal(t, http.StatusOK, code)

	var report Report
	require.NoError(t, json.Unmarshal([]byte(body), &report))
	assert.Contains(t, report.NodeID, "VLD0:")
	assert.True(t, report.Attached)
	assert.Equal(t, uint64(1), report.Metrics.DHTOps["get_value"])
}

func TestServer_Command(t *testing.T) {
	errUnknown := errors.New("unknown")
	src := &fakeSource{
		metrics: metrics.New(),
		debug: func(_ context.Context, command string) (string, error) {
			switch command {
			case "records":
				return "open records: 0\n", nil
			case "broken":
				return "", errors.New("boom")
			default:
				return "commands:\n", errUnknown
			}
		},
	}
	server := startServer(t, src)

	code, body := get(t, server, "/debug/introspect/records")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "open records: 0\n", body)

	code, body = get(t, server, "/debug/introspect/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, "commands:")

	code, body = get(t, server, "/debug/introspect/broken")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body, "boom")
}

func TestServer_Metrics(t *testing.T) {
	m := metrics.New()
	m.WatchNotified()
	server := startServer(t, &fakeSource{metrics: m})

	code, body := get(t, server, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "veilcore_watch_notifications_total 1")
}

func TestServer_NoSource(t *testing.T) {
	server := startServer(t, nil)

	code, _ := get(t, server, "/debug/introspect")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	code, _ = get(t, server, "/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}
