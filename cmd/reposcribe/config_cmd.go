package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saurav-sabu/RepoScribe/internal/infra/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "encrypt <value>",
		Short: "Encrypt a secret for use as an api_key",
		Long: `Encrypt prints an "enc:" value that can replace a provider api_key in
config.yaml. The passphrase is read from REPOSCRIBE_CONFIG_KEY, which must
also be set when the config is loaded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase := os.Getenv("REPOSCRIBE_CONFIG_KEY")
			if passphrase == "" {
				return fmt.Errorf("REPOSCRIBE_CONFIG_KEY is not set")
			}
			enc, err := config.EncryptValue(args[0], passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "enc:"+enc)
			return nil
		},
	})
	return cmd
}
