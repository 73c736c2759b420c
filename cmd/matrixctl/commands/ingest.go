package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"stockmatrix/internal/app"
	apperrors "stockmatrix/internal/errors"
	"stockmatrix/pkg/contracts/domain"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <field> <batch.json>",
		Short: "Append observations to a source sheet",
		Long: `Reads a JSON array of observation batches and appends the dates the
source sheet does not have yet. Stored dates are never overwritten.
Use "-" to read the batch from stdin.

Batch format:
  [{"symbol_key": "005930", "symbol_name": "Samsung",
    "observations": [{"date": "20240102", "value": 71000}]}]

Fields: close, volume, index, open, high, low.

Example:
  matrixctl ingest close batch.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			batches, err := readBatches(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				report, err := a.Engine.Ingest(ctx, "", args[0], batches)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, report)
				}
				tw := newTable(out, "FIELD", "SHEET", "CREATED", "ADDED", "NEW SYMBOLS", "SKIPPED", "REJECTED")
				row(tw, report.Field, report.Sheet, report.Created, dateRange(report.AddedDates),
					report.NewSymbols, report.Skipped, len(report.Rejected))
				return tw.Flush()
			})
		},
	}
}

func readBatches(stdin io.Reader, path string) ([]domain.ObservationBatch, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read batch %s: %w", path, err)
	}

	var batches []domain.ObservationBatch
	if err := json.Unmarshal(data, &batches); err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("batch %s is not a JSON array of batches", path), err)
	}
	return batches, nil
}
