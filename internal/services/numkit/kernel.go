// Package numkit holds the dependency-free numeric primitives shared by the
// risk calculator, optimizer and stress tester. All functions are pure; short
// series degrade to zero instead of failing (insufficient data is a WARN
// condition for callers, not a fatal one).
package numkit

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"RiskPulse/internal/domain/models"
)

// TradingDaysPerYear is the annualization base for daily series.
const TradingDaysPerYear = 252

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the population variance, 0 for fewer than two points.
func Variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation.
func StdDev(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}

// Covariance returns the population covariance of two equal-length series.
func Covariance(xs, ys []float64) (float64, error) {
	if len(xs) != len(ys) {
		return 0, &models.DimensionMismatchError{Name: "covariance", Want: len(xs), Got: len(ys)}
	}
	if len(xs) < 2 {
		return 0, nil
	}
	mx, my := Mean(xs), Mean(ys)
	sum := 0.0
	for i := range xs {
		sum += (xs[i] - mx) * (ys[i] - my)
	}
	return sum / float64(len(xs)), nil
}

// Percentile returns the value at the p-quantile of an already-sorted series
// using the floor-index convention, so Percentile(s, 0.05) on 252 sorted
// daily returns is the 12th-worst observation.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Floor(p * float64(n)))
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// AnnualizeVolatility scales a per-period stdev by sqrt(periodsPerYear).
func AnnualizeVolatility(stdev float64, periodsPerYear float64) float64 {
	return stdev * math.Sqrt(periodsPerYear)
}

// AnnualizeReturn compounds a per-period mean return over a year.
func AnnualizeReturn(periodMean float64, periodsPerYear float64) float64 {
	return math.Pow(1+periodMean, periodsPerYear) - 1
}

// CorrelationMatrix builds the pairwise correlation matrix of the given
// series. The result is symmetric with a unit diagonal and every entry
// clamped to [-1, 1]. All series must share the same length.
func CorrelationMatrix(series [][]float64) ([][]float64, error) {
	n := len(series)
	if n == 0 {
		return nil, nil
	}
	want := len(series[0])
	for _, s := range series {
		if len(s) != want {
			return nil, &models.DimensionMismatchError{Name: "correlation matrix", Want: want, Got: len(s)}
		}
	}

	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		out[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			rho := stat.Correlation(series[i], series[j], nil)
			if math.IsNaN(rho) {
				rho = 0
			}
			rho = Clamp(rho, -1, 1)
			out[i][j] = rho
			out[j][i] = rho
		}
	}
	return out, nil
}

// CovarianceMatrix builds the pairwise population covariance matrix.
func CovarianceMatrix(series [][]float64) ([][]float64, error) {
	n := len(series)
	if n == 0 {
		return nil, nil
	}
	want := len(series[0])
	for _, s := range series {
		if len(s) != want {
			return nil, &models.DimensionMismatchError{Name: "covariance matrix", Want: want, Got: len(s)}
		}
	}
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c, _ := Covariance(series[i], series[j])
			out[i][j] = c
			out[j][i] = c
		}
	}
	return out, nil
}

// PortfolioReturns collapses per-asset return series into one weighted
// portfolio return series. Series must share identical length and alignment.
func PortfolioReturns(series [][]float64, weights []float64) ([]float64, error) {
	if len(series) != len(weights) {
		return nil, &models.DimensionMismatchError{Name: "portfolio returns", Want: len(series), Got: len(weights)}
	}
	if len(series) == 0 {
		return nil, nil
	}
	periods := len(series[0])
	for _, s := range series {
		if len(s) != periods {
			return nil, &models.DimensionMismatchError{Name: "portfolio returns", Want: periods, Got: len(s)}
		}
	}
	out := make([]float64, periods)
	for t := 0; t < periods; t++ {
		sum := 0.0
		for i, s := range series {
			sum += weights[i] * s[t]
		}
		out[t] = sum
	}
	return out, nil
}

// MatVec computes m · v via gonum.
func MatVec(m [][]float64, v []float64) []float64 {
	n := len(m)
	if n == 0 || len(m[0]) != len(v) {
		return nil
	}
	flat := make([]float64, 0, n*len(v))
	for _, row := range m {
		flat = append(flat, row...)
	}
	dense := mat.NewDense(n, len(v), flat)
	var out mat.VecDense
	out.MulVec(dense, mat.NewVecDense(len(v), v))
	res := make([]float64, n)
	for i := range res {
		res[i] = out.AtVec(i)
	}
	return res
}

// QuadraticForm computes wᵀ·m·w, the portfolio variance form.
func QuadraticForm(w []float64, m [][]float64) float64 {
	mv := MatVec(m, w)
	if mv == nil {
		return 0
	}
	sum := 0.0
	for i, x := range mv {
		sum += w[i] * x
	}
	return sum
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
