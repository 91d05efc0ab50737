package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var debugAttach bool

var debugCmd = &cobra.Command{
	Use:   "debug [command...]",
	Short: "执行调试命令",
	Long: `启动核心并执行一条调试命令，例如:

  veilcore debug help
  veilcore debug txtrecord
  veilcore --in-memory debug --attach attachment`,
	RunE: runDebug,
}

func init() {
	debugCmd.Flags().BoolVar(&debugAttach, "attach", false, "执行前先连接网络")
}

func runDebug(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	core, closeFn, err := startCore(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	if debugAttach {
		if err := core.Attach(ctx); err != nil {
			return fmt.Errorf("连接网络失败: %w", err)
		}
	}

	out, err := core.Debug(ctx, strings.Join(args, " "))
	fmt.Fprint(cmd.OutOrStdout(), out)
	if out != "" && !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return err
}
