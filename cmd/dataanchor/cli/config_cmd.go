package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/meigma/dataanchor/cmd/dataanchor/cli/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage dataanchor configuration",
	Long: `View and modify dataanchor configuration.

Without arguments, displays the current effective configuration with the
indexer token masked. Use subcommands to view the config path, initialize
a config file, or set configuration values.`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE: func(_ *cobra.Command, _ []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long: `Create a default configuration file at the XDG config path.

The file will be created at ~/.config/dataanchor/config.yaml (or
$XDG_CONFIG_HOME/dataanchor/config.yaml if set).`,
	RunE: runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Examples:
  dataanchor config set rpc-url https://api.devnet.solana.com
  dataanchor config set namespace rewards`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeConfigKeys,
	RunE:              runConfigSet,
}

// configPath is the file the config subcommands write.
func configPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	return config.Path()
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := settings()
	if err != nil {
		return err
	}
	if cfg.IndexerToken != "" {
		cfg.IndexerToken = "********"
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o750); mkdirErr != nil {
		return mkdirErr
	}

	data, err := yaml.Marshal(config.Defaults())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if writeErr := os.WriteFile(path, data, 0o600); writeErr != nil {
		return writeErr
	}

	fmt.Printf("Created config file: %s\n", path)
	return nil
}

func runConfigSet(_ *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	if !slices.Contains(config.Keys, key) {
		return fmt.Errorf("unknown key %q (valid keys: %s)", key, strings.Join(config.Keys, ", "))
	}

	path, err := configPath()
	if err != nil {
		return err
	}

	// Only the file's own contents are rewritten, not defaults or environment.
	v := viper.New()
	if err := config.ReadFile(v, path, false); err != nil {
		return err
	}
	v.Set(key, value)
	if _, err := config.Load(v); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Updated %s = %s\n", key, value)
	return nil
}
