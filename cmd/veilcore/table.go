package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	veilcore "github.com/dep2p/go-veilcore"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
)

var tableColumns uint32

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "读写本地表存储",
}

var tablePutCmd = &cobra.Command{
	Use:   "put <table> <column> <key> <value>",
	Short: "写入一个键",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTable(cmd, args[0], func(db interfaces.TableDB) error {
			col, err := parseColumn(args[1])
			if err != nil {
				return err
			}
			return db.Store(col, []byte(args[2]), []byte(args[3]))
		})
	},
}

var tableGetCmd = &cobra.Command{
	Use:   "get <table> <column> <key>",
	Short: "读取一个键",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTable(cmd, args[0], func(db interfaces.TableDB) error {
			col, err := parseColumn(args[1])
			if err != nil {
				return err
			}
			v, err := db.Load(col, []byte(args[2]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(v))
			return nil
		})
	},
}

var tableKeysCmd = &cobra.Command{
	Use:   "keys <table> <column>",
	Short: "列出一列中的全部键",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTable(cmd, args[0], func(db interfaces.TableDB) error {
			col, err := parseColumn(args[1])
			if err != nil {
				return err
			}
			keys, err := db.GetKeys(col)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), string(k))
			}
			return nil
		})
	},
}

var tableListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出全部表",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		core, closeFn, err := openCore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()
		names, err := core.TableStore().List()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

func init() {
	tableCmd.PersistentFlags().Uint32Var(&tableColumns, "columns", 1, "打开表时的列数")
	tableCmd.AddCommand(tablePutCmd)
	tableCmd.AddCommand(tableGetCmd)
	tableCmd.AddCommand(tableKeysCmd)
	tableCmd.AddCommand(tableListCmd)
}

// withTable 打开核心与表，执行 fn 后全部关闭
//
// 表存储不依赖网络，核心无需启动。
func withTable(cmd *cobra.Command, name string, fn func(db interfaces.TableDB) error) error {
	core, closeFn, err := openCore(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	db, err := core.TableStore().Open(name, tableColumns)
	if err != nil {
		if veilcore.KindOf(err) == veilcore.KindConfiguration {
			return fmt.Errorf("打开表 %s 失败（检查 --columns）: %w", name, err)
		}
		return err
	}
	defer db.Close()
	return fn(db)
}

func parseColumn(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("无效的列号 %q: %w", s, err)
	}
	return uint32(n), nil
}
