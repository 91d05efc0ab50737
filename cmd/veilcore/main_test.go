package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// resetFlags 把全部命令的参数恢复为默认值
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestKeygen(t *testing.T) {
	out, err := execute(t, "keygen")
	require.NoError(t, err)

	var public, pair string
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "public:  "); ok {
			public = v
		}
		if v, ok := strings.CutPrefix(line, "keypair: "); ok {
			pair = v
		}
	}
	assert.True(t, strings.HasPrefix(public, "VLD0:"))
	kp, err := types.ParseKeyPair(pair)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimPrefix(public, "VLD0:"), kp.Key.String())

	_, err = execute(t, "keygen", "--kind", "NONE")
	require.NoError(t, err)

	_, err = execute(t, "keygen", "--kind", "toolong")
	assert.Error(t, err)
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veilcore.yaml")

	_, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.NewConfig().ProgramName, cfg.ProgramName)

	_, err = execute(t, "config", "init", path)
	assert.Error(t, err, "不覆盖已存在的文件")
	_, err = execute(t, "config", "init", "--force", path)
	assert.NoError(t, err)

	t.Setenv("VEILCORE_NETWORK_KEY_PASSWORD", "top-secret")
	out, err := execute(t, "--config", path, "--namespace", "cli", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "namespace: cli")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "top-secret")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VEILCORE_DATA_DIR", "/tmp/veil")
	t.Setenv("VEILCORE_BOOTSTRAP", " loopback:a , loopback:b ,")
	t.Setenv("VEILCORE_DEVICE_KEY_PASSWORD", "pw")

	cfg := config.NewConfig()
	applyEnvOverrides(cfg)
	assert.Equal(t, "/tmp/veil", cfg.TableStore.Directory)
	assert.False(t, cfg.TableStore.InMemory)
	assert.Equal(t, []string{"loopback:a", "loopback:b"}, cfg.Network.Bootstrap)
	assert.True(t, cfg.TableStore.Encrypt)
	assert.Equal(t, "pw", cfg.TableStore.DeviceKeyPassword)
}

func TestTableCommands(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "--data-dir", dir, "table", "put", "--columns", "2", "notes", "1", "greeting", "hello")
	require.NoError(t, err)

	out, err := execute(t, "--data-dir", dir, "table", "get", "--columns", "2", "notes", "1", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	out, err = execute(t, "--data-dir", dir, "table", "keys", "--columns", "2", "notes", "1")
	require.NoError(t, err)
	assert.Equal(t, "greeting\n", out)

	out, err = execute(t, "--data-dir", dir, "table", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "notes")

	// 关闭后以更多列重新打开，已有数据保留，新列为空
	out, err = execute(t, "--data-dir", dir, "table", "get", "--columns", "3", "notes", "1", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	out, err = execute(t, "--data-dir", dir, "table", "keys", "--columns", "3", "notes", "2")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = execute(t, "--data-dir", dir, "table", "get", "--columns", "2", "notes", "2", "greeting")
	assert.Error(t, err)

	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestDebugCommand(t *testing.T) {
	out, err := execute(t, "--in-memory", "debug", "txtrecord")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "1|1|VLD0:"))

	out, err = execute(t, "--in-memory", "debug", "nonsense")
	assert.Error(t, err)
	assert.Contains(t, out, "commands:")
}
