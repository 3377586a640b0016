package numkit

import (
	"math"
	"sort"
	"testing"

	"RiskPulse/internal/domain/models"
)

func TestVarianceDegradesToZero(t *testing.T) {
	if got := Variance(nil); got != 0 {
		t.Fatalf("empty series variance = %v, want 0", got)
	}
	if got := Variance([]float64{0.01}); got != 0 {
		t.Fatalf("single-point variance = %v, want 0", got)
	}
	if got := StdDev([]float64{0.01}); got != 0 {
		t.Fatalf("single-point stdev = %v, want 0", got)
	}
}

func TestVarianceKnownValue(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	// population variance of 1..4 is 1.25
	if got := Variance(xs); math.Abs(got-1.25) > 1e-12 {
		t.Fatalf("variance = %v, want 1.25", got)
	}
}

func TestPercentileFloorIndex(t *testing.T) {
	s := make([]float64, 100)
	for i := range s {
		s[i] = float64(i)
	}
	if got := Percentile(s, 0.05); got != 5 {
		t.Fatalf("p05 = %v, want 5", got)
	}
	if got := Percentile(s, 0.0); got != 0 {
		t.Fatalf("p0 = %v, want 0", got)
	}
	if got := Percentile(s, 1.0); got != 99 {
		t.Fatalf("p100 clamps to last, got %v", got)
	}
}

func TestCorrelationMatrixProperties(t *testing.T) {
	series := [][]float64{
		{0.01, -0.02, 0.015, 0.005, -0.01},
		{0.02, -0.04, 0.030, 0.010, -0.02},
		{-0.01, 0.01, -0.005, 0.002, 0.008},
	}
	m, err := CorrelationMatrix(series)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range m {
		if math.Abs(m[i][i]-1) > 1e-12 {
			t.Fatalf("diagonal m[%d][%d] = %v, want 1", i, i, m[i][i])
		}
		for j := range m[i] {
			if m[i][j] != m[j][i] {
				t.Fatalf("matrix not symmetric at (%d,%d)", i, j)
			}
			if m[i][j] < -1 || m[i][j] > 1 {
				t.Fatalf("entry (%d,%d) = %v outside [-1,1]", i, j, m[i][j])
			}
		}
	}
	// Series 1 is exactly 2x series 0: perfect correlation.
	if math.Abs(m[0][1]-1) > 1e-9 {
		t.Fatalf("scaled series correlation = %v, want 1", m[0][1])
	}
}

func TestCorrelationMatrixDimensionMismatch(t *testing.T) {
	_, err := CorrelationMatrix([][]float64{{0.01, 0.02}, {0.01}})
	if !models.IsDimensionMismatch(err) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
}

func TestPortfolioReturnsWeightedSum(t *testing.T) {
	series := [][]float64{
		{0.10, 0.20},
		{-0.10, 0.00},
	}
	got, err := PortfolioReturns(series, []float64{0.5, 0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{0.0, 0.10}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("period %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPortfolioReturnsMisalignedSeries(t *testing.T) {
	_, err := PortfolioReturns([][]float64{{0.1, 0.2}, {0.1, 0.2, 0.3}}, []float64{0.5, 0.5})
	if !models.IsDimensionMismatch(err) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
}

func TestQuadraticFormNonNegativeForCovariance(t *testing.T) {
	series := [][]float64{
		{0.01, -0.02, 0.015, 0.005},
		{0.02, 0.01, -0.030, 0.010},
		{-0.01, 0.01, -0.005, 0.002},
	}
	cov, err := CovarianceMatrix(series)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	weights := [][]float64{
		{1.0 / 3, 1.0 / 3, 1.0 / 3},
		{0.5, 0.25, 0.25},
		{0, 0, 1},
		{0.9, 0.05, 0.05},
	}
	for _, w := range weights {
		if v := QuadraticForm(w, cov); v < 0 {
			t.Fatalf("portfolio variance %v < 0 for weights %v", v, w)
		}
	}
}

func TestAnnualize(t *testing.T) {
	if got := AnnualizeVolatility(0.03, TradingDaysPerYear); math.Abs(got-0.03*math.Sqrt(252)) > 1e-12 {
		t.Fatalf("annualized vol = %v", got)
	}
	got := AnnualizeReturn(0.001, TradingDaysPerYear)
	want := math.Pow(1.001, 252) - 1
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("annualized return = %v, want %v", got, want)
	}
}

func TestPercentileMatchesSortedTail(t *testing.T) {
	raw := []float64{0.02, -0.03, 0.01, -0.01, 0.00, -0.02, 0.03, 0.015, -0.025, 0.005}
	sorted := append([]float64(nil), raw...)
	sort.Float64s(sorted)
	got := Percentile(sorted, 0.1)
	if got != sorted[1] {
		t.Fatalf("p10 = %v, want %v", got, sorted[1])
	}
}
