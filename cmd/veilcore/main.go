// Package main 提供 veilcore 命令行入口
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-veilcore/pkg/lib/log"
)

var logger = log.Logger("veilcore/cmd")

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖 / 快速测试（「这次运行」想怎么跑）
//   配置文件：持久化配置 / 长期运行（「这个节点」的固定配置）
//
// 优先级：命令行参数 > 环境变量（VEILCORE_*）> 配置文件 > 默认值
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile string
	dataDir    string
	inMemory   bool
	namespace  string
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "veilcore",
	Short: "veilcore - 点对点应用底座核心",
	Long: `veilcore 提供密码学原语、加密的本地表存储、按子键版本化的 DHT 记录、
记录变化监听，以及决定 DHT 操作经过哪条路径的路由上下文。`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "配置文件路径（.json / .yaml）")
	flags.StringVarP(&dataDir, "data-dir", "d", "", "数据目录（覆盖配置文件）")
	flags.BoolVar(&inMemory, "in-memory", false, "使用纯内存存储")
	flags.StringVar(&namespace, "namespace", "", "命名空间（覆盖配置文件）")
	flags.StringVar(&logLevel, "log-level", "", "日志级别，例如 info 或 dht=debug,warn")
	flags.StringVar(&logFile, "log", "", "日志文件路径（默认输出到 stderr）")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
