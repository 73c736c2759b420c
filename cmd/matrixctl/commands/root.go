package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stockmatrix/internal/app"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configFile string
	storePath  string
	verbose    bool
	jsonOut    bool
}

// NewRootCmd builds the matrixctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "matrixctl",
		Short: "Time-matrix indicator engine",
		Long: `matrixctl maintains a workbook of date-column by symbol-row sheets.

It extends indicator sheets (z-scores, gap, quant, std) from the price
sheets, rolls dates back across sheets, ingests new observations and
serves a read-only JSON view of the store.

Examples:
  matrixctl compute all
  matrixctl ingest close batch.json
  matrixctl rollback latest
  matrixctl rollback range 20240101 20240131
  matrixctl export z20 --out z20.csv
  matrixctl serve --port 8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default: matrix.yaml, config.yaml or configs/matrix.yaml)")
	pf.StringVar(&opts.storePath, "store", "", "workbook store path (overrides config)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	cmd.AddCommand(
		newComputeCmd(opts),
		newIngestCmd(opts),
		newRollbackCmd(opts),
		newExportCmd(opts),
		newSheetsCmd(opts),
		newHistoryCmd(opts),
		newProvenanceCmd(opts),
		newServeCmd(opts),
		newVersionCmd(opts),
	)
	return cmd
}

// Execute runs the root command; SIGINT and SIGTERM cancel the running operation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// withApp builds the application for one command and releases it afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application) error) error {
	a, err := app.New(app.Options{
		ConfigPath: o.configFile,
		StorePath:  o.storePath,
		Verbose:    o.verbose,
		LogOut:     cmd.ErrOrStderr(),
		TraceOut:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	defer a.Close(context.WithoutCancel(ctx))
	return fn(ctx, a)
}
