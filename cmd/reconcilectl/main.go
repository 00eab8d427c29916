package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/bootstrap"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/config"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/logging"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/shutdown"
)

var Version = "dev"

func main() {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "reconcilectl",
		Short:         "Operate the payment reconciliation service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(migrateCmd(opts))
	root.AddCommand(reconcileCmd(opts))
	root.AddCommand(reconcilePendingCmd(opts))
	root.AddCommand(signWebhookCmd())
	return root
}

func (o *options) logger(w io.Writer) *slog.Logger {
	return logging.NewTo(w, o.logLevel)
}

// app loads configuration and wires the service core without any transport.
func (o *options) app(ctx context.Context, log *slog.Logger) (*bootstrap.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, log, cfg, clock.NewSystem())
}

func migrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the store schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			log := opts.logger(cmd.ErrOrStderr())
			stores, err := bootstrap.OpenStores(cmd.Context(), log, cfg.Store, clock.NewSystem())
			if err != nil {
				return err
			}
			defer stores.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "%s schema up to date\n", stores.Driver)
			return nil
		},
	}
}

func reconcileCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <order-id>",
		Short: "Reconcile one order against the provider now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app(cmd.Context(), opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Engine.Reconcile(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", args[0], err)
			}
			if !res.Found {
				return fmt.Errorf("order %s not found", args[0])
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func reconcilePendingCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-pending",
		Short: "Run one batch over every pending order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := opts.logger(cmd.ErrOrStderr())
			app, err := opts.app(cmd.Context(), log)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Trigger(log, app.Engine).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
