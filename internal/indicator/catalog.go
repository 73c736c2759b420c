package indicator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind names an indicator and, by default, its sheet.
type Kind string

const (
	KindGap   Kind = "gap"
	KindQuant Kind = "quant"
	KindStd   Kind = "std"
)

// ZKind is the kind of the Z-score over window, e.g. "z20".
func ZKind(window int) Kind { return Kind("z" + strconv.Itoa(window)) }

// Source fields the indicators read.
const (
	FieldClose  = "close"
	FieldVolume = "volume"
)

// Revisions of each formula. Bump when a calculator's output changes so
// the ledger can tell old columns from new ones.
const (
	zscoreRevision     = 1
	gapRevision        = 1
	quantRevision      = 1
	volatilityRevision = 1
)

// Spec binds an indicator to its source field, target sheet and calculator.
type Spec struct {
	Kind           Kind
	SourceField    string
	Sheet          string
	Calculator     Calculator
	FormulaVersion string
}

// Params are the window lengths and sheet names an indicator set is built from.
type Params struct {
	ZWindows      []int
	GapWindow     int
	QuantWindow   int
	StdWindow     int
	StdMeanWindow int
	// Sheets overrides the sheet of a kind; unset kinds use the kind name.
	Sheets map[Kind]string
}

// DefaultParams matches the stock layout: z20, z60, z120, gap, quant, std.
func DefaultParams() Params {
	return Params{
		ZWindows:      []int{20, 60, 120},
		GapWindow:     20,
		QuantWindow:   60,
		StdWindow:     20,
		StdMeanWindow: 20,
	}
}

func (p Params) sheet(k Kind) string {
	if s, ok := p.Sheets[k]; ok && s != "" {
		return s
	}
	return string(k)
}

// Catalog returns every indicator in computation order: Z-scores by
// ascending window, then gap, quant and std.
func Catalog(p Params) []Spec {
	windows := append([]int(nil), p.ZWindows...)
	sort.Ints(windows)

	specs := make([]Spec, 0, len(windows)+3)
	for _, w := range windows {
		k := ZKind(w)
		specs = append(specs, Spec{
			Kind:           k,
			SourceField:    FieldClose,
			Sheet:          p.sheet(k),
			Calculator:     ZScore{Window: w},
			FormulaVersion: fmt.Sprintf("zscore.v%d(window=%d)", zscoreRevision, w),
		})
	}
	specs = append(specs,
		Spec{
			Kind:           KindGap,
			SourceField:    FieldClose,
			Sheet:          p.sheet(KindGap),
			Calculator:     GapRatio{Window: p.GapWindow},
			FormulaVersion: fmt.Sprintf("gap.v%d(window=%d)", gapRevision, p.GapWindow),
		},
		Spec{
			Kind:           KindQuant,
			SourceField:    FieldVolume,
			Sheet:          p.sheet(KindQuant),
			Calculator:     QuantRatio{Window: p.QuantWindow},
			FormulaVersion: fmt.Sprintf("quant.v%d(window=%d)", quantRevision, p.QuantWindow),
		},
		Spec{
			Kind:        KindStd,
			SourceField: FieldClose,
			Sheet:       p.sheet(KindStd),
			Calculator:  VolatilityRatio{StdWindow: p.StdWindow, MeanWindow: p.StdMeanWindow},
			FormulaVersion: fmt.Sprintf("std.v%d(window=%d,mean=%d)",
				volatilityRevision, p.StdWindow, p.StdMeanWindow),
		},
	)
	return specs
}

// Lookup finds kind in specs. Matching ignores case.
func Lookup(specs []Spec, kind string) (Spec, bool) {
	for _, s := range specs {
		if strings.EqualFold(string(s.Kind), strings.TrimSpace(kind)) {
			return s, true
		}
	}
	return Spec{}, false
}

// Kinds lists the kinds of specs in order.
func Kinds(specs []Spec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = string(s.Kind)
	}
	return out
}
