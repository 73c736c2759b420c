package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"stockmatrix/internal/app"
	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/matrix"
)

func newRollbackCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Delete dates across sheets",
		Long: `Removes date columns from several sheets in one save.

Example:
  matrixctl rollback latest
  matrixctl rollback latest --sheets close,z20
  matrixctl rollback range 20240101 20240131 --exclude catalog,close`,
	}
	cmd.AddCommand(newRollbackLatestCmd(opts), newRollbackRangeCmd(opts))
	return cmd
}

func newRollbackLatestCmd(opts *rootOptions) *cobra.Command {
	var sheets []string

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Delete the newest date from sheets that agree on it",
		Long: `Deletes the newest date column from each listed sheet. All sheets
holding a date must agree on the newest one; otherwise nothing is
deleted and the date observed on each sheet is reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				result, err := a.Engine.RollbackLatest(ctx, "", sheets)
				out := cmd.OutOrStdout()
				if opts.jsonOut {
					if perr := printJSON(out, result); perr != nil {
						return perr
					}
					return err
				}

				if len(result.Observed) > 0 {
					tw := newTable(out, "SHEET", "LATEST")
					names := make([]string, 0, len(result.Observed))
					for s := range result.Observed {
						names = append(names, s)
					}
					sort.Strings(names)
					for _, s := range names {
						row(tw, s, orDash(result.Observed[s]))
					}
					if ferr := tw.Flush(); ferr != nil {
						return ferr
					}
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted %s from %d sheets\n", result.DeletedDate, len(result.DeletedSheets))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&sheets, "sheets", nil, "sheets to roll back (default: rollback.latest_sheets)")
	return cmd
}

func newRollbackRangeCmd(opts *rootOptions) *cobra.Command {
	var exclude []string

	cmd := &cobra.Command{
		Use:   "range <start> <end>",
		Short: "Delete every date within [start, end]",
		Long: `Deletes the date columns within the inclusive range from every sheet
except the excluded ones. Dates are YYYYMMDD or ISO.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, ok := matrix.ParseDateArg(args[0])
			if !ok {
				return apperrors.NewAppValidationError(fmt.Sprintf("invalid start date %q", args[0]))
			}
			end, ok := matrix.ParseDateArg(args[1])
			if !ok {
				return apperrors.NewAppValidationError(fmt.Sprintf("invalid end date %q", args[1]))
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				result, err := a.Engine.RollbackRange(ctx, "", start, end, exclude)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, result)
				}
				tw := newTable(out, "SHEET", "DELETED")
				names := make([]string, 0, len(result.PerSheet))
				for s := range result.PerSheet {
					names = append(names, s)
				}
				sort.Strings(names)
				for _, s := range names {
					row(tw, s, result.PerSheet[s])
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted %d columns between %s and %s\n", result.Total, result.Start, result.End)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "sheets to leave untouched (default: rollback.range_excluded)")
	return cmd
}
