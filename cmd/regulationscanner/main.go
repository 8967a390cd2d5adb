package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"RegulationScanner/internal/app"
	"RegulationScanner/internal/config"
	"RegulationScanner/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "regulationscanner",
		Short:         "Track regulatory updates across configured topics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run every active topic once and print the fleet summary",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app.Application, _ []string, out io.Writer) error {
				summary, err := a.Run(ctx)
				if err != nil {
					return err
				}
				return writeJSON(out, summary)
			}),
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Run topics on the configured cron schedule and expose /metrics",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app.Application, _ []string, _ io.Writer) error {
				return a.Serve(ctx)
			}),
		},
		&cobra.Command{
			Use:   "verify <topic>",
			Short: "Compare a topic's latest updates with its official primary source",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(ctx context.Context, a *app.Application, args []string, out io.Writer) error {
				result, err := a.Verify(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(out, result)
			}),
		},
		&cobra.Command{
			Use:   "latest [topic]",
			Short: "List the current latest verified updates with related articles",
			Args:  cobra.MaximumNArgs(1),
			RunE: withApp(func(ctx context.Context, a *app.Application, args []string, out io.Writer) error {
				topicID := ""
				if len(args) == 1 {
					topicID = args[0]
				}
				latest, err := a.Latest(ctx, topicID)
				if err != nil {
					return err
				}
				return writeJSON(out, latest)
			}),
		},
	)
	return root
}

type appFunc func(ctx context.Context, a *app.Application, args []string, out io.Writer) error

func withApp(fn appFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.Load()
		logger := logging.NewWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
		slog.SetDefault(logger)

		application, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := application.Close(); err != nil {
				logger.Error("close application", "error", err)
			}
		}()

		if err := fn(ctx, application, args, cmd.OutOrStdout()); err != nil {
			logger.Error("command failed", "command", cmd.Name(), "error", err)
			return err
		}
		return nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
