package veilcore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// ════════════════════════════════════════════════════════════════════════════
//                              调试命令
// ════════════════════════════════════════════════════════════════════════════

// ErrUnknownCommand 未知的调试命令
var ErrUnknownCommand = errors.New("unknown debug command")

// txtRecordVersion TXT 记录格式版本
const txtRecordVersion = 1

type debugCommand struct {
	help string
	run  func(c *Core, ctx context.Context, args []string) (string, error)
}

var debugCommands map[string]debugCommand

func init() {
	debugCommands = map[string]debugCommand{
		"help":       {"列出可用命令", (*Core).debugHelp},
		"txtrecord":  {"输出本节点的引导 TXT 记录", (*Core).debugTXTRecord},
		"attachment": {"连接状态与对等节点数", (*Core).debugAttachment},
		"records":    {"打开的记录与本地记录数", (*Core).debugRecords},
		"watches":    {"当前的监听注册", (*Core).debugWatches},
		"tables":     {"表存储中的表", (*Core).debugTables},
		"config":     {"当前配置（口令已隐藏）", (*Core).debugConfig},
		"metrics":    {"Prometheus 文本格式的指标", (*Core).debugMetrics},
		"crypto":     {"可用的密码套件与 DH 缓存统计", (*Core).debugCrypto},
	}
}

// Debug 执行调试命令，返回非空的诊断文本
//
// 命令与参数以空白分隔，例如 "records" 或 "help"。
// 未知命令返回 ErrUnknownCommand，同时返回帮助文本。
//
// 示例：
//
//	out, err := core.Debug(ctx, "txtrecord")
//	if err != nil {
//	    log.Printf("调试命令失败: %v", err)
//	}
//	fmt.Println(out)
func (c *Core) Debug(ctx context.Context, command string) (string, error) {
	if err := c.checkRunning(); err != nil {
		return "", err
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		fields = []string{"help"}
	}
	name := strings.ToLower(fields[0])
	cmd, ok := debugCommands[name]
	if !ok {
		help, _ := c.debugHelp(ctx, nil)
		return help, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
	return cmd.run(c, ctx, fields[1:])
}

func (c *Core) debugHelp(_ context.Context, _ []string) (string, error) {
	names := make([]string, 0, len(debugCommands))
	for name := range debugCommands {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "commands:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%s\n", name, debugCommands[name].help)
	}
	_ = w.Flush()
	return buf.String(), nil
}

// debugTXTRecord 格式：版本|最低版本|节点标识|引导端点
func (c *Core) debugTXTRecord(_ context.Context, _ []string) (string, error) {
	return fmt.Sprintf("%d|%d|%s|%s",
		txtRecordVersion, txtRecordVersion,
		c.identity.ID().String(),
		strings.Join(c.cfg.Network.Bootstrap, ",")), nil
}

func (c *Core) debugAttachment(_ context.Context, _ []string) (string, error) {
	state := c.attach.State()
	return fmt.Sprintf("state: %s\nattached: %t\npeers: %d\nnode: %s\n",
		state, state.IsAttached(), c.attach.Peers(), c.identity.ID()), nil
}

func (c *Core) debugRecords(_ context.Context, _ []string) (string, error) {
	local, err := c.records.LocalRecordCount()
	if err != nil {
		return "", err
	}
	open := c.records.OpenRecords()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "local records: %d\nopen records: %d\n", local, len(open))
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	for _, r := range open {
		mode := "readonly"
		if r.Writable {
			mode = "writable"
		}
		fmt.Fprintf(w, "  %s\trefs=%d\t%s\t%s\n", r.Key, r.Refs, mode, r.Safety)
	}
	_ = w.Flush()
	return buf.String(), nil
}

func (c *Core) debugWatches(_ context.Context, _ []string) (string, error) {
	regs := c.records.Watches().All()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "watches: %d\n", len(regs))
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	for _, r := range regs {
		count := "unlimited"
		if !r.Unlimited() {
			count = fmt.Sprintf("%d", r.Count)
		}
		fmt.Fprintf(w, "  %s\t%s\tsubkeys=%s\tcount=%s\texpires=%s\n",
			r.ID, r.Key, r.Subkeys, count, r.Expiration.UTC().Format(time.RFC3339))
	}
	_ = w.Flush()
	return buf.String(), nil
}

func (c *Core) debugTables(_ context.Context, _ []string) (string, error) {
	names, err := c.tables.List()
	if err != nil {
		return "", err
	}
	open := c.tables.OpenTables()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tables: %d\nencrypted: %t\n", len(names), c.tables.Encrypted())
	for _, name := range names {
		if refs, ok := open[name]; ok {
			fmt.Fprintf(&buf, "  %s (open, refs=%d)\n", name, refs)
		} else {
			fmt.Fprintf(&buf, "  %s\n", name)
		}
	}
	return buf.String(), nil
}

func (c *Core) debugConfig(_ context.Context, _ []string) (string, error) {
	cfg := c.cfg.Clone()
	if cfg.Network.NetworkKeyPassword != "" {
		cfg.Network.NetworkKeyPassword = "********"
	}
	if cfg.TableStore.DeviceKeyPassword != "" {
		cfg.TableStore.DeviceKeyPassword = "********"
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Core) debugMetrics(_ context.Context, _ []string) (string, error) {
	var buf bytes.Buffer
	if err := c.metrics.WriteText(&buf); err != nil {
		return "", err
	}
	if buf.Len() == 0 {
		return "# no metrics\n", nil
	}
	return buf.String(), nil
}

func (c *Core) debugCrypto(_ context.Context, _ []string) (string, error) {
	kinds := c.provider.ValidCryptoKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	stats := c.provider.Stats()
	return fmt.Sprintf("kinds: %s\nbest: %s\ndh cache: len=%d hits=%d misses=%d\n",
		strings.Join(names, ","), c.provider.BestCryptoKind(),
		stats.CacheLen, stats.CacheHits, stats.CacheMisses), nil
}
