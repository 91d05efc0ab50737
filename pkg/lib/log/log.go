// Package log 提供 veilcore 统一日志接口
//
// 基于 Go 标准库 log/slog 封装，提供简洁的日志 API。
//
// 支持通过环境变量配置：
//   - VEILCORE_LOG_LEVEL: 格式 "组件=级别,组件=级别,默认级别"，
//     示例 "core/dht=debug,warn"
//   - VEILCORE_LOG_FORMAT: text 或 json
//
// 日志记录可以通过 AddSink 镜像到外部（例如核心的 Log 更新事件）。
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format 输出格式
type Format string

const (
	// FormatText 文本格式（默认）
	FormatText Format = "text"
	// FormatJSON JSON 格式
	FormatJSON Format = "json"
)

// ============================================================================
//                              全局状态
// ============================================================================

var (
	// root 所有组件共享的根 handler
	root atomic.Pointer[rootHandler]

	// 组件级别覆盖
	componentLevels sync.Map // map[string]slog.Level

	sinksMu sync.RWMutex
	sinks   = map[uint64]sinkEntry{}
	sinkSeq uint64
)

// SetDefault 设置默认 logger
//
// 传入的 logger 的 handler 会被包装，以保留组件级别与 Sink 镜像。
func SetDefault(l *slog.Logger) {
	install(l.Handler(), currentLevel())
}

// Default 返回默认 logger
func Default() *slog.Logger {
	return slog.Default()
}

// New 创建新的文本 logger（不经过全局 Sink）
func New(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewJSON 创建 JSON 格式的 logger（不经过全局 Sink）
func NewJSON(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Setup 同时设置输出目标、级别和格式
//
// 示例：
//
//	file, _ := os.OpenFile("veilcore.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
//	log.Setup(file, slog.LevelDebug, log.FormatJSON)
func Setup(w io.Writer, level slog.Level, format Format) {
	// handler 本身放行全部级别，过滤在 rootHandler.Enabled 中按组件完成
	opts := &slog.HandlerOptions{Level: slog.LevelDebug - 4}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	install(h, level)
}

// SetOutput 设置日志输出目标，保持当前级别
func SetOutput(w io.Writer) {
	Setup(w, currentLevel(), FormatText)
}

// SetLevel 设置默认日志级别
func SetLevel(level slog.Level) {
	if r := root.Load(); r != nil {
		r.level.Set(level)
	}
}

// SetComponentLevel 设置单个组件的日志级别
func SetComponentLevel(component string, level slog.Level) {
	componentLevels.Store(component, level)
}

// ParseLevel 解析日志级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ParseLevelSpec 解析 "组件=级别,默认级别" 形式的配置，返回默认级别
func ParseLevelSpec(spec string) slog.Level {
	def := slog.LevelInfo
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if comp, lvl, ok := strings.Cut(part, "="); ok {
			if level, ok := ParseLevel(lvl); ok {
				SetComponentLevel(strings.TrimSpace(comp), level)
			}
			continue
		}
		if level, ok := ParseLevel(part); ok {
			def = level
		}
	}
	return def
}

func currentLevel() slog.Level {
	if r := root.Load(); r != nil {
		return r.level.Level()
	}
	return slog.LevelInfo
}

func install(next slog.Handler, level slog.Level) {
	r := &rootHandler{next: next}
	r.level.Set(level)
	root.Store(r)
	slog.SetDefault(slog.New(r))
}

// ============================================================================
//                              Sink
// ============================================================================

// Record 镜像给 Sink 的日志记录
type Record struct {
	Time      time.Time
	Level     slog.Level
	Component string
	Message   string
}

type sinkEntry struct {
	min slog.Level
	fn  func(Record)
}

// AddSink 注册日志镜像回调，返回注销函数
//
// 只有级别不低于 min 的记录会被镜像。回调在日志调用方的协程中执行，
// 必须快速返回。
func AddSink(min slog.Level, fn func(Record)) (remove func()) {
	sinksMu.Lock()
	sinkSeq++
	id := sinkSeq
	sinks[id] = sinkEntry{min: min, fn: fn}
	sinksMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sinksMu.Lock()
			delete(sinks, id)
			sinksMu.Unlock()
		})
	}
}

func dispatch(rec Record) {
	sinksMu.RLock()
	defer sinksMu.RUnlock()
	for _, s := range sinks {
		if rec.Level >= s.min {
			s.fn(rec)
		}
	}
}

// ============================================================================
//                              rootHandler
// ============================================================================

// rootHandler 在输出 handler 之外处理组件级别与 Sink 镜像
type rootHandler struct {
	next      slog.Handler
	level     slog.LevelVar
	component string
}

func (h *rootHandler) minLevel() slog.Level {
	if h.component != "" {
		if v, ok := componentLevels.Load(h.component); ok {
			return v.(slog.Level)
		}
	}
	return h.level.Level()
}

func (h *rootHandler) Enabled(_ context.Context, level slog.Level) bool {
	if level >= h.minLevel() {
		return true
	}
	// Sink 可能需要比输出更低的级别
	sinksMu.RLock()
	defer sinksMu.RUnlock()
	for _, s := range sinks {
		if level >= s.min {
			return true
		}
	}
	return false
}

func (h *rootHandler) Handle(ctx context.Context, r slog.Record) error {
	dispatch(Record{Time: r.Time, Level: r.Level, Component: h.component, Message: r.Message})
	if r.Level < h.minLevel() {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *rootHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := &rootHandler{next: h.next.WithAttrs(attrs), component: h.component}
	nh.level.Set(h.level.Level())
	for _, a := range attrs {
		if a.Key == "component" {
			nh.component = a.Value.String()
		}
	}
	return nh
}

func (h *rootHandler) WithGroup(name string) slog.Handler {
	nh := &rootHandler{next: h.next.WithGroup(name), component: h.component}
	nh.level.Set(h.level.Level())
	return nh
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时都从 slog.Default() 获取最新的 handler，
// 支持在运行时动态切换日志输出目标。
//
// 使用方式：
//
//	var myLog = log.Logger("mycomponent")  // 返回 *LazyLogger
//	myLog.Info("hello")                     // 动态使用当前的 default logger
type LazyLogger struct {
	component string
}

func (l *LazyLogger) base() *slog.Logger {
	return slog.Default().With("component", l.component)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) { l.base().Debug(msg, args...) }

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) { l.base().Info(msg, args...) }

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) { l.base().Warn(msg, args...) }

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) { l.base().Error(msg, args...) }

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.base().DebugContext(ctx, msg, args...)
}

// InfoContext 带 context 的 Info 日志
func (l *LazyLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.base().InfoContext(ctx, msg, args...)
}

// WarnContext 带 context 的 Warn 日志
func (l *LazyLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.base().WarnContext(ctx, msg, args...)
}

// ErrorContext 带 context 的 Error 日志
func (l *LazyLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.base().ErrorContext(ctx, msg, args...)
}

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.base().With(args...)
}

// Component 组件名
func (l *LazyLogger) Component() string {
	return l.component
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

// ============================================================================
//                              初始化
// ============================================================================

func init() {
	level := slog.LevelInfo
	if spec := os.Getenv("VEILCORE_LOG_LEVEL"); spec != "" {
		level = ParseLevelSpec(spec)
	}
	format := FormatText
	if strings.EqualFold(os.Getenv("VEILCORE_LOG_FORMAT"), "json") {
		format = FormatJSON
	}
	Setup(os.Stderr, level, format)
}
