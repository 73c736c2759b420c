package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"stockmatrix/internal/app"
	"stockmatrix/internal/exporter"
)

type exportOptions struct {
	out       string
	bom       bool
	decimals  int
	datedOnly bool
	symbol    string
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	eo := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export <sheet> [sheet...]",
		Short: "Write sheets to CSV",
		Long: `Writes one sheet as a CSV table: a header row, then one row per
symbol with absent cells left empty.

With --symbol the history of one symbol is written instead: a "date"
column followed by one column per listed sheet.

Example:
  matrixctl export z20 --out z20.csv --bom
  matrixctl export close z20 gap --symbol 005930 --out samsung.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if eo.symbol == "" && len(args) > 1 {
				return fmt.Errorf("exporting several sheets requires --symbol")
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				csvWriter := exporter.NewCSVWriter(a.Logger)
				if eo.symbol != "" {
					return exportSymbol(ctx, cmd, a, csvWriter, eo, args)
				}
				return exportSheet(ctx, cmd, a, csvWriter, eo, args[0])
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&eo.out, "out", "o", "-", `output file, "-" for stdout`)
	f.BoolVar(&eo.bom, "bom", false, "prefix the file with a UTF-8 byte order mark")
	f.IntVar(&eo.decimals, "decimals", -1, "fixed decimal places for numbers (-1 keeps stored values)")
	f.BoolVar(&eo.datedOnly, "dated-only", false, "drop header columns that are not dates")
	f.StringVar(&eo.symbol, "symbol", "", "export the history of one symbol across the listed sheets")
	return cmd
}

func exportSheet(ctx context.Context, cmd *cobra.Command, a *app.Application, w *exporter.CSVWriter, eo *exportOptions, sheet string) error {
	m, err := a.Engine.Matrix(ctx, "", sheet)
	if err != nil {
		return err
	}

	mx := exporter.NewMatrixExporter(w)
	options := exporter.MatrixOptions{
		NameHeader: a.Config.Store.NameHeader,
		KeyHeader:  a.Config.Store.KeyHeader,
		Decimals:   eo.decimals,
		DatedOnly:  eo.datedOnly,
		BOMPrefix:  eo.bom,
	}
	if eo.out == "-" {
		return mx.Export(cmd.OutOrStdout(), m, options)
	}
	if err := mx.ExportFile(eo.out, m, options); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d symbols)\n", eo.out, len(m.Rows))
	return nil
}

func exportSymbol(ctx context.Context, cmd *cobra.Command, a *app.Application, w *exporter.CSVWriter, eo *exportOptions, sheets []string) error {
	named := make([]exporter.NamedMatrix, 0, len(sheets))
	for _, s := range sheets {
		m, err := a.Engine.Matrix(ctx, "", s)
		if err != nil {
			return err
		}
		named = append(named, exporter.NamedMatrix{Sheet: s, Matrix: m})
	}

	sx := exporter.NewSymbolExporter(w)
	if eo.out == "-" {
		return sx.Export(cmd.OutOrStdout(), eo.symbol, named, eo.decimals, eo.bom)
	}
	if err := sx.ExportFile(eo.out, eo.symbol, named, eo.decimals, eo.bom); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", eo.out)
	return nil
}
