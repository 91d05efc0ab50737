package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	veilcore "github.com/dep2p/go-veilcore"
	"github.com/dep2p/go-veilcore/internal/core/introspect"
	"github.com/dep2p/go-veilcore/pkg/types"
)

var (
	runDetached    bool
	introspectAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "启动核心并保持运行",
	Long:  `启动核心、连接网络并打印更新事件，收到 Ctrl+C 后关闭。`,
	Args:  cobra.NoArgs,
	RunE:  runCore,
}

func init() {
	runCmd.Flags().BoolVar(&runDetached, "detached", false, "启动后不连接网络")
	runCmd.Flags().StringVar(&introspectAddr, "introspect-addr", "", "本地自省 HTTP 服务地址，例如 127.0.0.1:6060（为空则不启动）")
}

// openCore 加载配置、设置日志并创建核心
//
// 返回的 closer 依次关闭核心与日志文件。
func openCore(cmd *cobra.Command) (*veilcore.Core, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logCloser, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "警告: %v\n", err)
		fmt.Fprintln(os.Stderr, "将继续使用控制台输出日志")
	}

	core, err := veilcore.New(veilcore.WithConfig(cfg))
	if err != nil {
		closeQuietly(logCloser)
		return nil, nil, fmt.Errorf("创建核心失败: %w", err)
	}
	return core, func() {
		if err := core.Close(); err != nil {
			logger.Warn("关闭核心失败", "error", err)
		}
		closeQuietly(logCloser)
	}, nil
}

// startCore 创建并启动核心
func startCore(ctx context.Context, cmd *cobra.Command) (*veilcore.Core, func(), error) {
	core, closeFn, err := openCore(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := core.Start(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("启动失败: %w", err)
	}
	return core, closeFn, nil
}

func runCore(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "veilcore %s\n", version)
	logger.Info("启动 veilcore 核心", "version", version)

	core, closeFn, err := startCore(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	unsub, err := core.Subscribe(func(u veilcore.Update) { printUpdate(out, u) })
	if err != nil {
		return err
	}
	defer unsub()

	if !runDetached {
		if err := core.Attach(ctx); err != nil {
			return fmt.Errorf("连接网络失败: %w", err)
		}
	}

	if introspectAddr != "" {
		srv := introspect.New(introspect.Config{Addr: introspectAddr, Source: core})
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("启动自省服务失败: %w", err)
		}
		defer func() { _ = srv.Stop() }()
		fmt.Fprintf(out, "自省服务: http://%s/debug/introspect\n", srv.Addr())
	}

	printCoreInfo(out, core)
	fmt.Fprintln(out, "核心已启动，按 Ctrl+C 退出")
	waitForSignal(ctx)

	fmt.Fprintln(out, "\n正在关闭核心...")
	return nil
}

// printCoreInfo 显示核心信息
func printCoreInfo(w io.Writer, core *veilcore.Core) {
	cfg := core.Config()
	storage := cfg.TableStore.DBPath(cfg.Namespace)
	if cfg.TableStore.InMemory {
		storage = "(内存)"
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	fmt.Fprintf(w, "  节点标识: %s\n", core.NodeID())
	fmt.Fprintf(w, "  连接状态: %s\n", core.AttachmentState())
	fmt.Fprintf(w, "  存储位置: %s\n", storage)
	fmt.Fprintf(w, "  表加密:   %t\n", cfg.TableStore.Encrypt)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
}

// printUpdate 把更新事件打印为一行
func printUpdate(w io.Writer, u veilcore.Update) {
	ts := time.Now().Format("15:04:05")
	switch ev := u.(type) {
	case types.LogUpdate:
		fmt.Fprintf(w, "%s [%s] %s: %s\n", ts, ev.Level, ev.Component, ev.Message)
	case types.AttachmentUpdate:
		fmt.Fprintf(w, "%s [attachment] %s\n", ts, ev.State)
	case types.ValueChangeUpdate:
		fmt.Fprintf(w, "%s [value] %s subkeys=%s count=%d\n", ts, ev.Key, ev.Subkeys, ev.Count)
	case types.ShutdownUpdate:
		fmt.Fprintf(w, "%s [shutdown]\n", ts)
	}
}

// waitForSignal 等待退出信号
func waitForSignal(ctx context.Context) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	select {
	case <-signals:
	case <-ctx.Done():
	}
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
