package main

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/treecast/bench"
	"github.com/luca-patrignani/treecast/collective"
	"github.com/luca-patrignani/treecast/store"
)

type benchFlags struct {
	participants int
	elements     int
	kind         string
	root         int
	transport    string
	timeout      time.Duration
	storePath    string
	level        string
}

func newBenchCmd() *cobra.Command {
	var f benchFlags
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure a broadcast over a simulated cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runBench(cmd.Context(), f)
			return err
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&f.participants, "participants", "n", 8, "number of participants")
	flags.IntVarP(&f.elements, "elements", "e", bench.DefaultElements, "number of elements broadcast")
	flags.StringVarP(&f.kind, "kind", "k", collective.KindFloat64.String(), "element kind: int32, float32 or float64")
	flags.IntVarP(&f.root, "root", "r", 0, "rank of the root")
	flags.StringVarP(&f.transport, "transport", "t", bench.TransportLocal, "transport: local or http")
	flags.DurationVar(&f.timeout, "timeout", time.Minute, "timeout of every transport call over http")
	flags.StringVar(&f.storePath, "store", "", "SQLite file the run is recorded in")
	flags.StringVar(&f.level, "log-level", "info", "log level")
	return cmd
}

func runBench(ctx context.Context, f benchFlags) (bench.Result, error) {
	logger, err := newLogger(f.level)
	if err != nil {
		return bench.Result{}, err
	}
	kind, err := collective.ParseKind(f.kind)
	if err != nil {
		return bench.Result{}, err
	}
	spinner, _ := pterm.DefaultSpinner.Start("Broadcasting ...")
	res, err := bench.Run(ctx, bench.Config{
		Participants: f.participants,
		Elements:     f.elements,
		Kind:         kind,
		Root:         f.root,
		Transport:    f.transport,
		Timeout:      f.timeout,
		Logger:       logger,
	})
	if err != nil {
		spinner.Fail()
		return bench.Result{}, err
	}
	spinner.Success()
	renderPanels(benchPanel(res))

	if f.storePath == "" {
		return res, nil
	}
	st, err := store.Open(ctx, f.storePath)
	if err != nil {
		return res, err
	}
	defer st.Close()
	id, err := st.AppendBenchRun(ctx, store.BenchRun{
		Transport:    f.transport,
		Participants: f.participants,
		Elements:     f.elements,
		Kind:         kind.String(),
		Root:         f.root,
		Rounds:       res.Rounds,
		Elapsed:      res.Elapsed,
		Verified:     res.Verified,
	})
	if err != nil {
		return res, err
	}
	pterm.Info.Printfln("Recorded as run %d in %s", id, f.storePath)
	return res, nil
}
