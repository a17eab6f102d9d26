package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/fingerprint-matcher/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the comparison cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached comparison result",
	Long: `Remove every comparison result stored under the configured key prefix.
Run this after re-enrolling identities with new templates.`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := cache.Open(ctx, &cfg.Cache)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer c.Close()

	removed, err := c.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	fmt.Printf("Removed %d cached comparisons from the %s cache\n", removed, cfg.Cache.Backend)
	return nil
}
