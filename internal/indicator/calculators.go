// Package indicator holds the rolling statistics computed over a symbol's
// series. Calculators are pure; they never touch the store.
package indicator

// Result is a calculator output. Defined is false where the window cannot
// be filled, which the store records as an absent cell.
type Result struct {
	Value   float64
	Defined bool
}

var undefined = Result{}

func defined(v float64) Result { return Result{Value: v, Defined: true} }

// Calculator evaluates one statistic at position idx of a series.
type Calculator interface {
	// Offset is the first index at which a value can exist.
	Offset() int
	Compute(s Series, idx int) Result
}

// ZScore scores the last value against the window's sample mean and
// deviation, scaled by 50 and rounded to an integer.
type ZScore struct{ Window int }

func (z ZScore) Offset() int { return z.Window - 1 }

func (z ZScore) Compute(s Series, idx int) Result {
	w, ok := s.Window(idx, z.Window)
	if !ok || z.Window < 2 {
		return undefined
	}
	m := mean(w)
	sd := stddev(w, m, 1)
	if sd == 0 {
		return defined(0)
	}
	v, ok := roundHalfAway(50*((w[len(w)-1]-m)/sd), 0)
	if !ok {
		return undefined
	}
	return defined(v)
}

// GapRatio is the last value as a percentage of the window mean.
type GapRatio struct{ Window int }

func (g GapRatio) Offset() int { return g.Window - 1 }

func (g GapRatio) Compute(s Series, idx int) Result {
	return ratio(s, idx, g.Window, func(last, m float64) float64 { return 100 * (last / m) })
}

// QuantRatio is half the last value's percentage of the window mean,
// used on volume.
type QuantRatio struct{ Window int }

func (q QuantRatio) Offset() int { return q.Window - 1 }

func (q QuantRatio) Compute(s Series, idx int) Result {
	return ratio(s, idx, q.Window, func(last, m float64) float64 { return ((last / m) * 100) / 2 })
}

func ratio(s Series, idx, window int, f func(last, mean float64) float64) Result {
	w, ok := s.Window(idx, window)
	if !ok {
		return undefined
	}
	m := mean(w)
	if m == 0 {
		return defined(0)
	}
	v, ok := roundHalfAway(f(w[len(w)-1], m), 0)
	if !ok {
		return undefined
	}
	return defined(v)
}

// VolatilityRatio compares today's population deviation over StdWindow
// values with the average of that deviation over the last MeanWindow
// days, as a percentage change rounded to two decimals.
type VolatilityRatio struct {
	StdWindow  int
	MeanWindow int
}

func (v VolatilityRatio) Offset() int { return v.StdWindow + v.MeanWindow - 2 }

func (v VolatilityRatio) Compute(s Series, idx int) Result {
	if idx < v.Offset() || v.StdWindow < 1 || v.MeanWindow < 1 {
		return undefined
	}

	devs := make([]float64, 0, v.MeanWindow)
	for j := idx - v.MeanWindow + 1; j <= idx; j++ {
		w, ok := s.Window(j, v.StdWindow)
		if !ok {
			return undefined
		}
		devs = append(devs, stddev(w, mean(w), 0))
	}

	sum := 0.0
	for _, d := range devs {
		sum += d
	}
	avg := sum / float64(len(devs))
	if avg == 0 {
		return defined(0)
	}

	r, ok := roundHalfAway((devs[len(devs)-1]/avg-1)*100, 2)
	if !ok {
		return undefined
	}
	return defined(r)
}
