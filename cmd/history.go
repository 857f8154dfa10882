package main

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/treecast/store"
)

func newHistoryCmd() *cobra.Command {
	var (
		storePath string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded deliveries and benchmark runs and verify the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return history(cmd.Context(), storePath, limit)
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "treecast.sqlite", "SQLite file to read")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of benchmark runs shown, 0 for all")
	return cmd
}

func history(ctx context.Context, storePath string, limit int) error {
	st, err := store.Open(ctx, storePath)
	if err != nil {
		return err
	}
	defer st.Close()

	chain, err := st.LoadChain(ctx)
	if err != nil {
		pterm.Error.Println("Ledger verification failed")
		return err
	}
	pterm.DefaultSection.Println("Deliveries")
	if chain.Len() <= 1 {
		pterm.Info.Println("No deliveries recorded")
	} else if err := pterm.DefaultTable.WithHasHeader().WithData(deliveriesTable(chain.Blocks())).Render(); err != nil {
		return err
	}
	pterm.Success.Printfln("Ledger verified: %d blocks, head %s", chain.Len(), shortHash(chain.Latest().Hash))

	runs, err := st.BenchRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("bench runs: %w", err)
	}
	pterm.DefaultSection.Println("Benchmark runs")
	if len(runs) == 0 {
		pterm.Info.Println("No benchmark runs recorded")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(benchRunsTable(runs)).Render()
}
