package main

import (
	"bufio"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-count/internal/duckdb"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs recorded in a DuckDB database",
	}
	cmd.PersistentFlags().String("db", "", "DuckDB database holding recorded runs")
	viper.BindPFlag("runs.db", cmd.PersistentFlags().Lookup("db"))

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded runs, oldest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openRunStore()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns()
			if err != nil {
				return err
			}

			w := bufio.NewWriter(cmd.OutOrStdout())
			fmt.Fprintln(w, "run_id\tcreated_at\tlayout\tstrand\ttotal\talignments")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.ID, r.CreatedAt.UTC().Format(time.RFC3339), r.Layout, r.Strand, r.Total, r.Alignments)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run and its counts",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openRunStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := store.LookupRun(args[0]); err != nil {
				return err
			}
			if err := store.DeleteRun(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func openRunStore() (*duckdb.Store, error) {
	path := viper.GetString("runs.db")
	if path == "" {
		return nil, &usageError{fmt.Errorf("--db is required")}
	}
	return duckdb.Open(path)
}
