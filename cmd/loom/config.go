package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autoloom/loom/internal/userconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Get or set values in $LOOM_HOME/config.toml",
}

// knownConfigKeys is the fixed set of keys userconfig.Config.Get/Set
// understand, shown by `loom config list`.
var knownConfigKeys = []string{
	"telemetry",
	"llm.enabled",
	"llm.providers",
	"llm.daily_budget",
	"llm.max_llm_calls_per_run",
	"llm.max_authoring_calls_per_run",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := userconfig.Load()
		if err != nil {
			return err
		}
		value, ok := cfg.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown config key %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and persist it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := userconfig.Load()
		if err != nil {
			return err
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		return cfg.Save()
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known config keys and their current values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := userconfig.Load()
		if err != nil {
			return err
		}
		for _, key := range knownConfigKeys {
			value, _ := cfg.Get(key)
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
}
