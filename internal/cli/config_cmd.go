package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"airexport/internal/config"
	"airexport/internal/secret"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize configuration",
	}
	cmd.AddCommand(
		newConfigShowCmd(opts),
		newConfigInitCmd(),
		newConfigSetTokenCmd(opts),
	)
	return cmd
}

func newConfigShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Show prints the configuration after defaults, the config file and
AIREXPORT_ environment overrides are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, used, err := config.Load(opts.configPath)
			if err != nil {
				return NewConfigError("", err)
			}
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				if err := printJSON(out, cfg); err != nil {
					return NewCommandError("config show", err)
				}
				return nil
			}
			data, err := cfg.YAML()
			if err != nil {
				return NewCommandError("config show", err)
			}
			fmt.Fprintf(out, "# source: %s\n", orDefault(used, "defaults"))
			_, err = out.Write(data)
			return err
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a commented default config file",
		Long: `Init writes a default configuration to path, ./airexport.yaml, or with
--global to $XDG_CONFIG_HOME/airexport/config.yaml. Existing files are
never overwritten.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "airexport.yaml"
			switch {
			case len(args) == 1:
				path = args[0]
			case global:
				dir, err := os.UserConfigDir()
				if err != nil {
					return NewCommandError("config init", err)
				}
				path = filepath.Join(dir, "airexport", "config.yaml")
			}
			if err := config.WriteDefault(path); err != nil {
				return NewConfigError("", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "write to the user config directory")
	return cmd
}

func newConfigSetTokenCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set-token",
		Short: "Store the API token in the macOS Keychain",
		Long: `Set-token reads the API token from stdin and files it in the Keychain
under source.keychain_service, account source.token_env. Set
source.token_source to keychain to use it.

Example:
  pbpaste | airexport config set-token`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load(opts.configPath)
			if err != nil {
				return NewConfigError("", err)
			}
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return NewConfigError("token", errors.New("no token on stdin"))
			}
			token := strings.TrimSpace(line)
			if token == "" {
				return NewConfigError("token", errors.New("token is empty"))
			}
			store := secret.NewKeychainStore(cfg.Source.KeychainService)
			if err := store.Set(cfg.Source.TokenEnv, []byte(token)); err != nil {
				return NewCommandError("config set-token", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored token for %s in keychain service %s\n", cfg.Source.TokenEnv, store.Service)
			return nil
		},
	}
}
