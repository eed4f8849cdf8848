package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autoloom/loom/internal/config"
	"github.com/autoloom/loom/internal/healing"
)

var healingMemoryCmd = &cobra.Command{
	Use:   "healing-memory",
	Short: "Inspect and prune the persistent healing memory store",
}

var healingMemoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print healing memory record count, average confidence, and hit rate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mem, err := openHealingMemory()
		if err != nil {
			return err
		}
		stats := mem.GetStats()
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var (
	pruneMinConfidence float64
	pruneMaxAgeDays    int
)

var healingMemoryPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove healing memory entries below a confidence floor or older than a max age",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mem, err := openHealingMemory()
		if err != nil {
			return err
		}
		maxAgeDays := pruneMaxAgeDays
		if maxAgeDays == 0 {
			maxAgeDays = int(config.GetHealingPruneMaxAge().Hours() / 24)
		}
		removed, err := mem.Prune(healing.PruneOptions{
			MinConfidence: pruneMinConfidence,
			MaxAgeDays:    maxAgeDays,
		})
		if err != nil {
			return fmt.Errorf("pruning healing memory: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
		return nil
	},
}

func openHealingMemory() (*healing.Memory, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return nil, err
	}
	mem, err := healing.New(cfg.HealingMemoryFile)
	if err != nil {
		return nil, fmt.Errorf("opening healing memory: %w", err)
	}
	return mem, nil
}

func init() {
	healingMemoryPruneCmd.Flags().Float64Var(&pruneMinConfidence, "min-confidence", 0, "remove entries with confidence below this floor")
	healingMemoryPruneCmd.Flags().IntVar(&pruneMaxAgeDays, "max-age-days", 0, "remove entries older than this many days (defaults to LOOM_HEALING_PRUNE_MAX_AGE)")

	healingMemoryCmd.AddCommand(healingMemoryStatsCmd)
	healingMemoryCmd.AddCommand(healingMemoryPruneCmd)
}
