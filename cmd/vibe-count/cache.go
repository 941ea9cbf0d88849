package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-count/internal/duckdb"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the parsed annotation cache",
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached features",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := viper.GetString("cache.dir")
			if dir == "" {
				return &usageError{fmt.Errorf("--annotation-cache is required")}
			}
			duckdb.NewFeatureCache(dir).Clear()
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared feature cache in %s\n", dir)
			return nil
		},
	}
	clearCmd.Flags().String("annotation-cache", "", "Directory for cached parsed features")
	viper.BindPFlag("cache.dir", clearCmd.Flags().Lookup("annotation-cache"))

	cmd.AddCommand(clearCmd)
	return cmd
}
