package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/internal/core/crypto"
	"github.com/dep2p/go-veilcore/pkg/types"
)

var keygenKind string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "生成密钥对",
	Long: `生成指定密码套件的密钥对，输出带套件标识的公钥和 "public:secret" 形式的密钥对。
NONE 套件仅用于测试。`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenKind, "kind", "k", types.CryptoKindVLD0.String(), "密码套件（VLD0 / NONE）")
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	kind, err := types.ParseCryptoKind(keygenKind)
	if err != nil {
		return err
	}

	cc := config.DefaultCryptoConfig()
	cc.EnableNone = kind == types.CryptoKindNONE
	provider, err := crypto.NewProvider(cc)
	if err != nil {
		return err
	}
	cs, err := provider.Get(kind)
	if err != nil {
		return err
	}
	kp, err := cs.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("生成密钥对失败: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "public:  %s\n", types.NewTypedKey(kind, kp.Key))
	fmt.Fprintf(out, "keypair: %s\n", kp)
	return nil
}
