package log

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"loud", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSinkReceivesComponent(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, slog.LevelInfo, FormatText)
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}) })

	var mu sync.Mutex
	var got []Record
	remove := AddSink(slog.LevelDebug, func(r Record) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
	})

	l := Logger("test/sink")
	l.Debug("隐藏的调试信息")
	l.Warn("可见的警告", "k", 1)
	remove()
	l.Error("注销后的错误")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "test/sink", got[0].Component)
	assert.Equal(t, slog.LevelDebug, got[0].Level)
	assert.Equal(t, slog.LevelWarn, got[1].Level)

	out := buf.String()
	assert.False(t, strings.Contains(out, "隐藏的调试信息"), "debug below output level must not be written")
	assert.Contains(t, out, "可见的警告")
	assert.Contains(t, out, "注销后的错误")
}

func TestComponentLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, slog.LevelWarn, FormatText)
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}) })

	def := ParseLevelSpec("test/verbose=debug,warn")
	assert.Equal(t, slog.LevelWarn, def)

	Logger("test/verbose").Debug("verbose-debug")
	Logger("test/quiet").Info("quiet-info")

	out := buf.String()
	assert.Contains(t, out, "verbose-debug")
	assert.NotContains(t, out, "quiet-info")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", TruncateID("abc", 8))
	assert.Equal(t, "abcdefgh", TruncateID("abcdefghij", 8))
}
