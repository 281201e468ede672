// Package trend fits a linear model to monthly totals and extrapolates
// cumulative timelines forward.
package trend

import (
	"github.com/Deepak-Sangle/greenratchet/internal/carbon"
)

// Point is one cumulative value on a timeline.
type Point struct {
	MonthIndex  int     `json:"month_index"`
	Value       float64 `json:"value"`
	IsProjected bool    `json:"is_projected"`
}

// Fit is a closed-form ordinary least squares line y = Slope*x + Intercept.
type Fit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	Points    int     `json:"points"`
}

// At evaluates the fitted line at month m.
func (f Fit) At(m int) float64 {
	return f.Slope*float64(m) + f.Intercept
}

// Projection is a historical cumulative series optionally followed by
// projected cumulative points.
type Projection struct {
	Points []Point `json:"points"`

	// Fit is nil when fewer than MinTrendPoints months had positive values.
	Fit *Fit `json:"fit,omitempty"`

	// InsufficientData marks a historical-only result.
	InsufficientData bool `json:"insufficient_data"`
}

// Projected returns only the projected points.
func (p Projection) Projected() []Point {
	var out []Point
	for _, pt := range p.Points {
		if pt.IsProjected {
			out = append(out, pt)
		}
	}
	return out
}

// FitLinear fits monthly values against their month index. Only months with a
// positive value participate. It returns false when fewer than
// carbon.MinTrendPoints months qualify or all qualifying months share one x.
func FitLinear(monthly []float64) (Fit, bool) {
	var n, sumX, sumY, sumXY, sumXX float64
	for i, v := range monthly {
		if v <= 0 {
			continue
		}
		x := float64(i)
		n++
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	if int(n) < carbon.MinTrendPoints {
		return Fit{}, false
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return Fit{}, false
	}
	slope := (n*sumXY - sumX*sumY) / denom
	return Fit{
		Slope:     slope,
		Intercept: (sumY - slope*sumX) / n,
		Points:    int(n),
	}, true
}

// Project turns monthly totals into a cumulative timeline and, when enough
// data exists, appends months projected points. Negative projected monthly
// values are clamped to zero. Values are rounded to two decimals.
func Project(monthly []float64, months int) Projection {
	out := Projection{Points: make([]Point, 0, len(monthly)+max(months, 0))}

	var cumulative float64
	for i, v := range monthly {
		cumulative += v
		out.Points = append(out.Points, Point{MonthIndex: i, Value: carbon.Round2(cumulative)})
	}

	fit, ok := FitLinear(monthly)
	if !ok {
		out.InsufficientData = true
		return out
	}
	out.Fit = &fit

	last := len(monthly) - 1
	for i := 1; i <= months; i++ {
		m := last + i
		cumulative += max(0, fit.At(m))
		out.Points = append(out.Points, Point{MonthIndex: m, Value: carbon.Round2(cumulative), IsProjected: true})
	}
	return out
}
