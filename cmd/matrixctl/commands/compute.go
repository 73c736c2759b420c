package commands

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"stockmatrix/internal/app"
	"stockmatrix/pkg/contracts/domain"
)

func newComputeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compute [kind|all]",
		Short: "Extend indicator sheets with new dates",
		Long: `Computes the values of every date the source sheet has and the
indicator sheet lacks, and appends them. Existing columns are never
rewritten. Without an argument every indicator is computed.

Kinds: z20, z60, z120, gap, quant, std (and any configured z window).

Example:
  matrixctl compute
  matrixctl compute z20`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := "all"
			if len(args) == 1 {
				kind = args[0]
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				var reports []domain.UpdateReport
				if strings.EqualFold(kind, "all") {
					r, err := a.Engine.ComputeAll(ctx, "")
					if err != nil {
						return err
					}
					reports = r
				} else {
					r, err := a.Engine.ComputeIndicator(ctx, "", kind)
					if err != nil {
						return err
					}
					reports = []domain.UpdateReport{r}
				}
				return printReports(cmd, opts, reports)
			})
		},
	}
}

func printReports(cmd *cobra.Command, opts *rootOptions, reports []domain.UpdateReport) error {
	out := cmd.OutOrStdout()
	if opts.jsonOut {
		return printJSON(out, reports)
	}
	tw := newTable(out, "INDICATOR", "SHEET", "STATUS", "ADDED", "SYMBOLS", "VERSION")
	for _, r := range reports {
		row(tw, r.Indicator, r.Sheet, r.Status, dateRange(r.AddedDates), r.SymbolCount, orDash(r.FormulaVersion))
	}
	return tw.Flush()
}
