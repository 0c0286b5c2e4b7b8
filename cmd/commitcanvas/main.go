package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matzehuels/commitcanvas/internal/cli"
	"github.com/matzehuels/commitcanvas/pkg/errors"
)

// exitInterrupted follows the shell convention of 128 + SIGINT.
const exitInterrupted = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verbose, err := run(ctx)
	switch {
	case err == nil:
		return
	case stderrors.Is(err, context.Canceled):
		os.Exit(exitInterrupted)
	case verbose:
		fmt.Fprintln(os.Stderr, "Error:", err)
	default:
		fmt.Fprintln(os.Stderr, "Error:", errors.UserMessage(err))
	}
	os.Exit(1)
}

func run(ctx context.Context) (verbose bool, err error) {
	c := cli.New(os.Stderr, cli.LogInfo)
	root := c.RootCommand()
	root.SilenceErrors = true
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging and full error chains")

	// Raise the level before the config hook starts logging.
	loadConfig := root.PersistentPreRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if verbose {
			c.SetLogLevel(cli.LogDebug)
		}
		if loadConfig == nil {
			return nil
		}
		return loadConfig(cmd, args)
	}

	err = root.ExecuteContext(ctx)
	return verbose, err
}
