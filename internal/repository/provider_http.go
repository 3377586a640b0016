package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"RiskPulse/internal/domain/models"
	drepo "RiskPulse/internal/domain/repository"
	apphttp "RiskPulse/pkg/http"
)

// ProviderClient is the raw HTTP client for the portfolio/market-data
// provider. It carries no resilience of its own; the gateway layers retry,
// breaker and cache on top.
type ProviderClient struct {
	baseURL string
	apiKey  string
	http    *apphttp.Client
}

// NewProviderClient creates the raw client.
func NewProviderClient(baseURL, apiKey string, timeout time.Duration) *ProviderClient {
	return &ProviderClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    apphttp.NewClient(apphttp.WithTimeout(timeout)),
	}
}

var _ drepo.MarketData = (*ProviderClient)(nil)

type providerPosition struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
	Price    float64 `json:"price"`
}

type providerPortfolio struct {
	Positions []providerPosition `json:"positions"`
	Cash      float64            `json:"cash"`
	AsOf      int64              `json:"as_of"` // unix ms
}

// GetPortfolio fetches the current book.
func (c *ProviderClient) GetPortfolio(ctx context.Context) (*models.PortfolioSnapshot, error) {
	var raw providerPortfolio
	if err := c.get(ctx, "/api/v1/portfolio", nil, &raw); err != nil {
		return nil, err
	}
	snap := &models.PortfolioSnapshot{
		Cash: raw.Cash,
		AsOf: time.UnixMilli(raw.AsOf),
	}
	for _, p := range raw.Positions {
		snap.Positions = append(snap.Positions, models.Position{
			Symbol:       p.Symbol,
			Quantity:     p.Quantity,
			AvgPrice:     p.AvgPrice,
			CurrentPrice: p.Price,
		})
	}
	snap.Finalize()
	return snap, nil
}

type providerSeries struct {
	Symbol  string    `json:"symbol"`
	Returns []float64 `json:"returns"`
	AsOf    int64     `json:"as_of"`
}

// GetReturnSeries fetches daily return histories for the given symbols.
func (c *ProviderClient) GetReturnSeries(ctx context.Context, symbols []string, lookback int) (map[string]models.ReturnSeries, error) {
	var raw []providerSeries
	params := map[string][]string{
		"symbols":  {strings.Join(symbols, ",")},
		"lookback": {strconv.Itoa(lookback)},
	}
	if err := c.get(ctx, "/api/v1/returns", params, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]models.ReturnSeries, len(raw))
	for _, s := range raw {
		out[s.Symbol] = models.ReturnSeries{
			Symbol:  s.Symbol,
			Returns: s.Returns,
			AsOf:    time.UnixMilli(s.AsOf),
		}
	}
	return out, nil
}

// GetMarketProxySeries fetches the benchmark return series used for beta.
func (c *ProviderClient) GetMarketProxySeries(ctx context.Context, lookback int) (models.ReturnSeries, error) {
	var raw providerSeries
	params := map[string][]string{"lookback": {strconv.Itoa(lookback)}}
	if err := c.get(ctx, "/api/v1/market", params, &raw); err != nil {
		return models.ReturnSeries{}, err
	}
	return models.ReturnSeries{
		Symbol:  raw.Symbol,
		Returns: raw.Returns,
		AsOf:    time.UnixMilli(raw.AsOf),
	}, nil
}

type providerLiquidity struct {
	Symbol      string  `json:"symbol"`
	DepthUSD    float64 `json:"depth_usd"`
	SpreadBps   float64 `json:"spread_bps"`
	DailyVolume float64 `json:"daily_volume"`
	Observed    int64   `json:"observed"`
}

// GetLiquidityInfo fetches order-book depth and spread per symbol.
func (c *ProviderClient) GetLiquidityInfo(ctx context.Context, symbols []string) (map[string]models.LiquidityInfo, error) {
	var raw []providerLiquidity
	params := map[string][]string{"symbols": {strings.Join(symbols, ",")}}
	if err := c.get(ctx, "/api/v1/liquidity", params, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]models.LiquidityInfo, len(raw))
	for _, l := range raw {
		out[l.Symbol] = models.LiquidityInfo{
			Symbol:       l.Symbol,
			DepthUSD:     l.DepthUSD,
			SpreadBps:    l.SpreadBps,
			DailyVolume:  l.DailyVolume,
			LastObserved: l.Observed,
		}
	}
	return out, nil
}

func (c *ProviderClient) get(ctx context.Context, path string, params map[string][]string, dest interface{}) error {
	opts := &apphttp.RequestOptions{
		Method:      apphttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: params,
		Headers:     map[string]string{"X-API-Key": c.apiKey},
	}
	if err := c.http.SendAndParse(ctx, opts, dest); err != nil {
		return fmt.Errorf("provider %s: %w", path, err)
	}
	return nil
}
