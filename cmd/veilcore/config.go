package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/pkg/lib/log"
)

// ============================================================================
//                              环境变量
// ============================================================================

const (
	envPrefix             = "VEILCORE_"
	envDataDir            = "DATA_DIR"
	envNamespace          = "NAMESPACE"
	envInMemory           = "IN_MEMORY"
	envBootstrap          = "BOOTSTRAP"
	envNetworkKeyPassword = "NETWORK_KEY_PASSWORD"
	envDeviceKeyPassword  = "DEVICE_KEY_PASSWORD"
	envLogLevel           = "LOG_LEVEL"
)

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// loadConfig 按优先级合并配置
//
//  1. 命令行参数（运行时覆盖）
//  2. 环境变量（VEILCORE_* 前缀）
//  3. 配置文件（持久化配置）
//  4. 默认值
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		loaded, err := config.LoadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.NewConfig()
	}

	applyEnvOverrides(cfg)
	applyFlagOverrides(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置错误: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖配置
//
// 环境变量优先级高于配置文件，但低于命令行参数。
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv(envPrefix + envDataDir); v != "" {
		cfg.TableStore = cfg.TableStore.WithDirectory(v).WithInMemory(false)
	}
	if v := os.Getenv(envPrefix + envNamespace); v != "" {
		cfg.Namespace = v
	}
	if v := os.Getenv(envPrefix + envInMemory); v != "" {
		cfg.TableStore = cfg.TableStore.WithInMemory(parseBool(v))
	}
	if v := os.Getenv(envPrefix + envBootstrap); v != "" {
		cfg.Network = cfg.Network.WithBootstrap(splitAndTrim(v, ",")...)
	}
	if v := os.Getenv(envPrefix + envNetworkKeyPassword); v != "" {
		cfg.Network = cfg.Network.WithNetworkKeyPassword(v)
	}
	if v := os.Getenv(envPrefix + envDeviceKeyPassword); v != "" {
		cfg.TableStore = cfg.TableStore.WithEncryption(v)
	}
	if v := os.Getenv(envPrefix + envLogLevel); v != "" {
		cfg.Logging.Level = v
	}
}

// applyFlagOverrides 应用显式设置的命令行参数
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.TableStore = cfg.TableStore.WithDirectory(dataDir).WithInMemory(false)
	}
	if flags.Changed("in-memory") {
		cfg.TableStore = cfg.TableStore.WithInMemory(inMemory)
	}
	if flags.Changed("namespace") {
		cfg.Namespace = namespace
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
}

// setupLogging 按配置设置全局日志，返回需要在退出时关闭的文件
func setupLogging(cfg *config.Config) (io.Closer, error) {
	level := log.ParseLevelSpec(cfg.Logging.Level)
	format := log.Format(strings.ToLower(cfg.Logging.Format))

	if logFile == "" {
		log.Setup(os.Stderr, level, format)
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0750); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // G304: 用户指定的日志路径
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	log.Setup(file, level, format)
	return file, nil
}

// maskSecrets 返回隐藏口令后的配置副本
func maskSecrets(cfg *config.Config) *config.Config {
	out := cfg.Clone()
	if out.Network.NetworkKeyPassword != "" {
		out.Network.NetworkKeyPassword = "********"
	}
	if out.TableStore.DeviceKeyPassword != "" {
		out.TableStore.DeviceKeyPassword = "********"
	}
	return out
}

// ============================================================================
//                              config 命令
// ============================================================================

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "配置文件管理",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "写出默认配置文件",
	Long:  `写出默认配置。扩展名为 .yaml / .yml 时使用 YAML，否则使用 JSON。`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "输出合并后的配置（口令已隐藏）",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "覆盖已存在的文件")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "veilcore.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if !configForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s 已存在（使用 --force 覆盖）", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := config.SaveFile(config.NewConfig(), path); err != nil {
		return fmt.Errorf("写入配置失败: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "已写入 %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(maskSecrets(cfg)); err != nil {
		return err
	}
	return enc.Close()
}

// ============================================================================
//                              辅助函数
// ============================================================================

// parseBool 解析布尔值字符串
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// splitAndTrim 分割字符串并去除空白
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
