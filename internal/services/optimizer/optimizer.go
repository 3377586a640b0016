// Package optimizer blends four allocation methods into a single
// constrained recommended weight vector.
package optimizer

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/numkit"
	applogger "RiskPulse/pkg/logger"
)

// Method names used in MethodWeights and config.
const (
	MethodMeanVariance   = "mean_variance"
	MethodMinVariance    = "min_variance"
	MethodRiskParity     = "risk_parity"
	MethodBlackLitterman = "black_litterman"
)

const (
	gradientSteps    = 200
	gradientRate     = 0.05
	riskParityRounds = 50
)

// Config carries the optimizer tunables. Zero values fall back to the
// documented defaults in Normalize.
type Config struct {
	MethodWeights      map[string]float64
	RiskTolerance      float64 // lambda in w·mu - lambda*w'Sigma w
	Tau                float64 // Black-Litterman prior uncertainty
	ViewConfidence     float64 // Black-Litterman view blend
	MinPosition        float64
	MaxPosition        float64
	TotalExposure      float64
	CashReserve        float64
	RebalanceThreshold float64
}

// Normalize fills defaults and rescales method weights to sum to one.
func (c *Config) Normalize() {
	if len(c.MethodWeights) == 0 {
		c.MethodWeights = map[string]float64{
			MethodMeanVariance:   0.30,
			MethodMinVariance:    0.25,
			MethodRiskParity:     0.25,
			MethodBlackLitterman: 0.20,
		}
	}
	sum := 0.0
	for _, w := range c.MethodWeights {
		sum += w
	}
	if sum > 0 && math.Abs(sum-1) > 1e-9 {
		for k, w := range c.MethodWeights {
			c.MethodWeights[k] = w / sum
		}
	}
	if c.RiskTolerance <= 0 {
		c.RiskTolerance = 0.5
	}
	if c.Tau <= 0 {
		c.Tau = 0.025
	}
	if c.ViewConfidence <= 0 {
		c.ViewConfidence = 0.5
	}
	if c.MinPosition <= 0 {
		c.MinPosition = 0.001
	}
	if c.MaxPosition <= 0 {
		c.MaxPosition = 0.10
	}
	if c.TotalExposure <= 0 {
		c.TotalExposure = 0.95
	}
	if c.CashReserve <= 0 {
		c.CashReserve = 0.05
	}
	if c.RebalanceThreshold <= 0 {
		c.RebalanceThreshold = 0.05
	}
}

// Blended runs all four methods and mixes their outputs.
type Blended struct {
	cfg    Config
	logger *applogger.Logger
}

func NewBlended(cfg Config, l *applogger.Logger) *Blended {
	cfg.Normalize()
	return &Blended{cfg: cfg, logger: l}
}

// Optimize produces the recommended weight vector for the snapshot. Symbols
// without a usable return series are excluded from the candidate set; their
// capital flows back into the constrained renormalization.
func (b *Blended) Optimize(ctx context.Context, snap *models.PortfolioSnapshot, series map[string]models.ReturnSeries) (*models.OptimizationResult, error) {
	if snap == nil || len(snap.Positions) == 0 {
		return nil, models.ErrInsufficientData
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbols, returns := usableSeries(snap, series)
	if len(symbols) == 0 {
		return nil, models.ErrInsufficientData
	}
	if len(symbols) < len(snap.Positions) && b.logger != nil {
		b.logger.Warn("optimizing over subset of portfolio",
			applogger.Int("usable", len(symbols)),
			applogger.Int("positions", len(snap.Positions)))
	}

	mu := make([]float64, len(symbols))
	for i, r := range returns {
		mu[i] = numkit.Mean(r)
	}
	cov, err := numkit.CovarianceMatrix(returns)
	if err != nil {
		return nil, err
	}
	sigma := denseFrom(cov)

	current := currentWeights(snap, symbols)

	candidates := map[string][]float64{
		MethodMeanVariance:   b.meanVariance(mu, sigma),
		MethodMinVariance:    b.meanVariance(make([]float64, len(mu)), sigma),
		MethodRiskParity:     b.riskParity(sigma),
		MethodBlackLitterman: b.blackLitterman(mu, sigma, current),
	}

	blended := make([]float64, len(symbols))
	for method, w := range candidates {
		mw := b.cfg.MethodWeights[method]
		for i := range blended {
			blended[i] += mw * w[i]
		}
	}
	blended = b.applyConstraints(blended)

	expReturn, expRisk := b.expectedStats(blended, mu, sigma)
	result := &models.OptimizationResult{
		RecommendedWeights: toMap(symbols, blended),
		CurrentWeights:     toMap(symbols, current),
		MethodWeights:      copyMap(b.cfg.MethodWeights),
		ExpectedReturn:     expReturn,
		ExpectedRisk:       expRisk,
		RebalanceNeeded:    maxDeviation(blended, current) > b.cfg.RebalanceThreshold,
		Timestamp:          time.Now(),
	}
	if expRisk > 0 {
		result.SharpeRatio = expReturn / expRisk
	}
	return result, nil
}

// meanVariance runs projected gradient ascent on w·mu - lambda*w'Sigma*w over
// the simplex scaled to the exposure budget. With mu = 0 it degenerates to
// the minimum-variance program.
func (b *Blended) meanVariance(mu []float64, sigma *mat.SymDense) []float64 {
	n := len(mu)
	w := make([]float64, n)
	for i := range w {
		w[i] = b.cfg.TotalExposure / float64(n)
	}
	grad := make([]float64, n)
	for step := 0; step < gradientSteps; step++ {
		sw := matVec(sigma, w)
		for i := range grad {
			grad[i] = mu[i] - 2*b.cfg.RiskTolerance*sw[i]
		}
		for i := range w {
			w[i] += gradientRate * grad[i]
		}
		b.project(w)
	}
	return w
}

// riskParity iterates w_i proportional to the inverse of each asset's
// marginal risk contribution until the contributions even out.
func (b *Blended) riskParity(sigma *mat.SymDense) []float64 {
	n := sigma.SymmetricDim()
	w := make([]float64, n)
	for i := range w {
		w[i] = b.cfg.TotalExposure / float64(n)
	}
	for round := 0; round < riskParityRounds; round++ {
		sw := matVec(sigma, w)
		next := make([]float64, n)
		sum := 0.0
		for i := range next {
			marginal := sw[i]
			if marginal <= 0 {
				marginal = 1e-12
			}
			next[i] = w[i] / marginal
			sum += next[i]
		}
		if sum == 0 {
			break
		}
		for i := range next {
			next[i] = next[i] / sum * b.cfg.TotalExposure
		}
		w = next
		b.project(w)
	}
	return w
}

// blackLitterman shrinks the market-implied equilibrium returns toward the
// sample-mean views and feeds the posterior back into mean-variance.
func (b *Blended) blackLitterman(mu []float64, sigma *mat.SymDense, current []float64) []float64 {
	// Equilibrium returns implied by the currently held weights.
	pi := matVec(sigma, current)
	for i := range pi {
		pi[i] *= 2 * b.cfg.RiskTolerance
	}
	blend := b.cfg.ViewConfidence * (1 + b.cfg.Tau) / (1 + 2*b.cfg.Tau)
	posterior := make([]float64, len(mu))
	for i := range posterior {
		posterior[i] = (1-blend)*pi[i] + blend*mu[i]
	}
	return b.meanVariance(posterior, sigma)
}

// project clamps weights to [0, MaxPosition] and rescales onto the exposure
// budget, iterating because rescaling can push a weight back over the cap.
func (b *Blended) project(w []float64) {
	for pass := 0; pass < 8; pass++ {
		sum := 0.0
		for i := range w {
			w[i] = numkit.Clamp(w[i], 0, b.cfg.MaxPosition)
			sum += w[i]
		}
		if sum <= b.cfg.TotalExposure || sum == 0 {
			return
		}
		scale := b.cfg.TotalExposure / sum
		for i := range w {
			w[i] *= scale
		}
	}
}

// applyConstraints finalizes a blended vector: sub-minimum dust positions
// drop to zero and the cash reserve is honored.
func (b *Blended) applyConstraints(w []float64) []float64 {
	out := append([]float64(nil), w...)
	b.project(out)
	for i, v := range out {
		if v < b.cfg.MinPosition {
			out[i] = 0
		}
	}
	sum := 0.0
	for _, v := range out {
		sum += v
	}
	limit := math.Min(b.cfg.TotalExposure, 1-b.cfg.CashReserve)
	if sum > limit && sum > 0 {
		scale := limit / sum
		for i := range out {
			out[i] *= scale
		}
	}
	return out
}

func (b *Blended) expectedStats(w, mu []float64, sigma *mat.SymDense) (expReturn, expRisk float64) {
	sw := matVec(sigma, w)
	variance := 0.0
	for i := range w {
		expReturn += w[i] * mu[i]
		variance += w[i] * sw[i]
	}
	if variance < 0 {
		variance = 0
	}
	expReturn = numkit.AnnualizeReturn(expReturn, numkit.TradingDaysPerYear)
	expRisk = numkit.AnnualizeVolatility(math.Sqrt(variance), numkit.TradingDaysPerYear)
	return expReturn, expRisk
}

// usableSeries filters the snapshot down to symbols with aligned histories.
func usableSeries(snap *models.PortfolioSnapshot, series map[string]models.ReturnSeries) ([]string, [][]float64) {
	want := 0
	for _, pos := range snap.Positions {
		if s, ok := series[pos.Symbol]; ok && s.Len() > want {
			want = s.Len()
		}
	}
	if want < 2 {
		return nil, nil
	}
	var symbols []string
	var returns [][]float64
	for _, pos := range snap.Positions {
		if s, ok := series[pos.Symbol]; ok && s.Len() == want {
			symbols = append(symbols, pos.Symbol)
			returns = append(returns, s.Returns)
		}
	}
	return symbols, returns
}

func currentWeights(snap *models.PortfolioSnapshot, symbols []string) []float64 {
	bySymbol := make(map[string]float64, len(snap.Positions))
	if snap.TotalValue > 0 {
		for _, pos := range snap.Positions {
			bySymbol[pos.Symbol] = pos.Value / snap.TotalValue
		}
	}
	out := make([]float64, len(symbols))
	for i, sym := range symbols {
		out[i] = bySymbol[sym]
	}
	return out
}

func denseFrom(cov [][]float64) *mat.SymDense {
	n := len(cov)
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, cov[i][j])
		}
	}
	return s
}

func matVec(sigma *mat.SymDense, w []float64) []float64 {
	n := len(w)
	var out mat.VecDense
	out.MulVec(sigma, mat.NewVecDense(n, w))
	res := make([]float64, n)
	for i := 0; i < n; i++ {
		res[i] = out.AtVec(i)
	}
	return res
}

func toMap(symbols []string, w []float64) map[string]float64 {
	out := make(map[string]float64, len(symbols))
	for i, s := range symbols {
		out[s] = w[i]
	}
	return out
}

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func maxDeviation(a, b []float64) float64 {
	max := 0.0
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if d > max {
			max = d
		}
	}
	return max
}
