package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"stockmatrix/internal/app"
	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/matrix"
)

func newSheetsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sheets",
		Short: "List the sheets of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				names, err := a.Engine.Sheets(ctx, "")
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, names)
				}
				tw := newTable(out, "SHEET", "DATES", "LATEST", "SYMBOLS")
				for _, name := range names {
					h, err := a.Engine.Header(ctx, "", name)
					if err != nil {
						return err
					}
					m := matrix.FromHeader(h.Cells)
					latest, _ := m.Latest()
					row(tw, name, len(m.Labels()), orDash(latest), len(h.Keys))
				}
				return tw.Flush()
			})
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent engine runs from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				if a.Ledger == nil {
					return apperrors.NewNotFoundError("ledger")
				}
				runs, err := a.Ledger.Runs(ctx, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, runs)
				}
				tw := newTable(out, "STARTED", "OPERATION", "STATUS", "DURATION", "DETAIL", "RUN")
				for _, r := range runs {
					duration := "-"
					if r.FinishedAt != nil {
						duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
					}
					row(tw, r.StartedAt.Local().Format(time.DateTime), r.Operation, r.Status, duration, orDash(r.Detail), r.RunID)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func newProvenanceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provenance <sheet>",
		Short: "Show which formula version wrote each date column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				if a.Ledger == nil {
					return apperrors.NewNotFoundError("ledger")
				}
				cols, err := a.Ledger.Columns(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, cols)
				}

				// Consecutive dates written by the same version collapse into one line.
				tw := newTable(out, "VERSION", "DATES", "LAST RUN")
				var (
					version string
					dates   []string
					runID   string
				)
				flush := func() {
					if len(dates) > 0 {
						row(tw, version, dateRange(dates), runID)
					}
				}
				for _, c := range cols {
					if c.FormulaVersion != version {
						flush()
						version, dates = c.FormulaVersion, nil
					}
					dates = append(dates, c.Date)
					runID = c.RunID
				}
				flush()
				return tw.Flush()
			})
		},
	}
}
