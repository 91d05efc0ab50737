// Package introspect 提供本地自省 HTTP 服务
//
// 该服务运行在本地端口，提供核心的诊断信息，用于调试和监控。
// 默认绑定到 127.0.0.1，不暴露到网络。
//
// 端点：
//   - GET /debug/introspect            - 诊断报告 (JSON)
//   - GET /debug/introspect/{command}  - 调试命令输出 (text)，如 records、watches
//   - GET /metrics                     - Prometheus 指标
//   - GET /health                      - 健康检查
//   - GET /debug/pprof/*               - Go pprof 端点
package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-veilcore/internal/core/metrics"
	"github.com/dep2p/go-veilcore/pkg/lib/log"
	"github.com/dep2p/go-veilcore/pkg/types"
)

var logger = log.Logger("core/introspect")

// DefaultAddr 默认监听地址
const DefaultAddr = "127.0.0.1:6060"

// Source 被自省的核心
type Source interface {
	NodeID() types.TypedKey
	AttachmentState() types.AttachmentState
	MetricsSnapshot() metrics.Snapshot
	MetricsGatherer() prometheus.Gatherer
	// Debug 执行调试命令；未知命令返回错误
	Debug(ctx context.Context, command string) (string, error)
}

// Config 服务配置
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:6060"
	Addr string

	// Source 被自省的核心，可以为空
	Source Source
}

// Server 本地自省 HTTP 服务
type Server struct {
	config  Config
	started time.Time

	server   *http.Server
	listener net.Listener

	running bool
	mu      sync.Mutex
}

// New 创建自省服务
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{config: cfg}
}

// Start 启动服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	mux := http.NewServeMux()

	// 自省端点
	mux.HandleFunc("/debug/introspect", s.handleIntrospect)
	mux.HandleFunc("/debug/introspect/", s.handleCommand)
	mux.Handle("/metrics", s.metricsHandler())

	// pprof 端点
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// 健康检查
	mux.HandleFunc("/health", s.handleHealth)

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("自省服务异常退出", "error", err)
		}
	}()

	s.started = time.Now()
	s.running = true
	logger.Info("自省服务已启动", "addr", listener.Addr().String())
	return nil
}

// Stop 停止服务
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		logger.Error("关闭自省服务失败", "error", err)
		return err
	}
	s.running = false
	logger.Info("自省服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// ============================================================================
//                              HTTP 处理器
// ============================================================================

// Report 诊断报告
type Report struct {
	NodeID     string           `json:"node_id"`
	Attachment string           `json:"attachment"`
	Attached   bool             `json:"attached"`
	Metrics    metrics.Snapshot `json:"metrics"`
	Time       time.Time        `json:"time"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	// Status "ok" 表示已连接网络，"degraded" 表示未连接或没有核心
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	src := s.config.Source
	if src == nil {
		http.Error(w, "Core not available", http.StatusServiceUnavailable)
		return
	}
	state := src.AttachmentState()
	s.writeJSON(w, Report{
		NodeID:     src.NodeID().String(),
		Attachment: state.String(),
		Attached:   state.IsAttached(),
		Metrics:    src.MetricsSnapshot(),
		Time:       time.Now().UTC(),
	})
}

// handleCommand 把路径最后一段作为调试命令执行
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	src := s.config.Source
	if src == nil {
		http.Error(w, "Core not available", http.StatusServiceUnavailable)
		return
	}
	command := strings.Trim(strings.TrimPrefix(r.URL.Path, "/debug/introspect/"), "/")
	out, err := src.Debug(r.Context(), command)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if err != nil {
		status := http.StatusInternalServerError
		if out != "" {
			// 未知命令仍附带帮助文本
			status = http.StatusNotFound
		}
		w.WriteHeader(status)
		if out == "" {
			out = err.Error() + "\n"
		}
	}
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	uptime := time.Since(s.started).Truncate(time.Second)
	s.mu.Unlock()

	status := "degraded"
	if src := s.config.Source; src != nil && src.AttachmentState().IsAttached() {
		status = "ok"
	}
	s.writeJSON(w, HealthResponse{Status: status, Uptime: uptime.String()})
}

func (s *Server) metricsHandler() http.Handler {
	if s.config.Source == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(s.config.Source.MetricsGatherer(), promhttp.HandlerOpts{})
}

// writeJSON 写入 JSON 响应
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		logger.Error("JSON 编码失败", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
