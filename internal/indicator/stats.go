package indicator

import (
	"math"

	"github.com/shopspring/decimal"
)

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev with ddof 0 for population, 1 for sample.
func stddev(xs []float64, m float64, ddof int) float64 {
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-ddof))
}

// roundHalfAway rounds on the shortest decimal form of x, so 2.675 goes
// to 2.68 rather than the 2.67 its binary value would suggest.
func roundHalfAway(x float64, places int32) (float64, bool) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64(), true
}
