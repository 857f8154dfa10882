package main

import (
	"log/slog"
	"os"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/treecast/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "treecast",
		Short:         "Broadcast numeric buffers from one peer to all the others along a binomial tree",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCmd(),
		newBenchCmd(),
		newKeygenCmd(),
		newHistoryCmd(),
	)
	return root
}

// newLogger returns a slog logger rendered by pterm.
func newLogger(level string) (*slog.Logger, error) {
	l, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	ptermLevel := pterm.LogLevelInfo
	switch {
	case l <= slog.LevelDebug:
		ptermLevel = pterm.LogLevelDebug
	case l >= slog.LevelError:
		ptermLevel = pterm.LogLevelError
	case l >= slog.LevelWarn:
		ptermLevel = pterm.LogLevelWarn
	}
	handler := pterm.NewSlogHandler(pterm.DefaultLogger.WithLevel(ptermLevel))
	return slog.New(handler), nil
}

func renderBanner() {
	_ = pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Tree", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("cast", pterm.FgDarkGray.ToStyle()),
	).Render()
}
