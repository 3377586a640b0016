package stress

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"RiskPulse/internal/domain/models"
)

// defaultScenarios is the embedded scenario library, used when no scenario
// file is configured or the configured file cannot be read.
func defaultScenarios() []models.StressScenario {
	return []models.StressScenario{
		{
			ID: "market_crash_2008", Name: "2008-style Market Crash",
			Description:          "Broad deleveraging with correlations collapsing to one",
			MarketShock:          -0.40,
			VolatilityMultiplier: 4.0,
			CorrelationShock:     0.9,
			DurationDays:         252,
			Probability:          0.05,
			Severity:             models.SeverityCritical,
		},
		{
			ID: "flash_crash", Name: "Flash Crash",
			Description:          "Minutes-long liquidity vacuum and forced unwinds",
			MarketShock:          -0.25,
			VolatilityMultiplier: 8.0,
			CorrelationShock:     1.0,
			DurationDays:         1,
			Probability:          0.10,
			Severity:             models.SeverityHigh,
		},
		{
			ID: "crypto_winter", Name: "Crypto Winter",
			Description:          "Prolonged bear market across the asset class",
			MarketShock:          -0.60,
			VolatilityMultiplier: 3.0,
			CorrelationShock:     0.8,
			DurationDays:         365,
			Probability:          0.15,
			Severity:             models.SeverityCritical,
		},
		{
			ID: "regulatory_crackdown", Name: "Regulatory Crackdown",
			Description:          "Major jurisdiction restricts trading and custody",
			MarketShock:          -0.35,
			VolatilityMultiplier: 2.5,
			CorrelationShock:     0.7,
			DurationDays:         90,
			Probability:          0.20,
			Severity:             models.SeverityHigh,
		},
		{
			ID: "liquidity_crisis", Name: "Liquidity Crisis",
			Description:          "Market depth evaporates, spreads blow out",
			MarketShock:          -0.20,
			VolatilityMultiplier: 3.5,
			LiquidityShock:       5.0,
			DurationDays:         30,
			Probability:          0.12,
			Severity:             models.SeverityHigh,
		},
		{
			ID: "exchange_hack", Name: "Major Exchange Hack",
			Description:          "Top-tier venue compromised, contagion selling",
			MarketShock:          -0.15,
			VolatilityMultiplier: 2.0,
			DurationDays:         7,
			Probability:          0.08,
			Severity:             models.SeverityMedium,
		},
		{
			ID: "stable_coin_depeg", Name: "Stablecoin Depeg",
			Description:          "Major stablecoin loses its peg, funding markets seize",
			MarketShock:          -0.30,
			VolatilityMultiplier: 4.0,
			CorrelationShock:     0.9,
			DurationDays:         14,
			Probability:          0.10,
			Severity:             models.SeverityHigh,
		},
		{
			ID: "fed_rate_shock", Name: "Fed Rate Shock",
			Description:          "Surprise hike repricing every risk asset",
			MarketShock:          -0.18,
			VolatilityMultiplier: 2.2,
			DurationDays:         21,
			Probability:          0.25,
			Severity:             models.SeverityMedium,
		},
		{
			ID: "geopolitical_crisis", Name: "Geopolitical Crisis",
			Description:          "Armed conflict or sanctions wave hits risk appetite",
			MarketShock:          -0.22,
			VolatilityMultiplier: 2.8,
			DurationDays:         60,
			Probability:          0.15,
			Severity:             models.SeverityHigh,
		},
		{
			ID: "inflation_spike", Name: "Inflation Spike",
			Description:          "Persistent inflation surprise erodes real returns",
			MarketShock:          -0.12,
			VolatilityMultiplier: 1.8,
			DurationDays:         90,
			Probability:          0.30,
			Severity:             models.SeverityMedium,
		},
	}
}

// LoadScenarios reads a scenario library from a YAML file. The file replaces
// the embedded set entirely; partial overrides are not supported.
func LoadScenarios(path string) ([]models.StressScenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios %s: %w", path, err)
	}
	var doc struct {
		Scenarios []models.StressScenario `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode scenarios %s: %w", path, err)
	}
	if len(doc.Scenarios) == 0 {
		return nil, fmt.Errorf("scenarios %s: empty scenario set", path)
	}
	for i, sc := range doc.Scenarios {
		if sc.ID == "" {
			return nil, fmt.Errorf("scenarios %s: entry %d missing id", path, i)
		}
		if sc.Probability < 0 || sc.Probability > 1 {
			return nil, fmt.Errorf("scenarios %s: %s probability %v out of [0,1]", path, sc.ID, sc.Probability)
		}
	}
	return doc.Scenarios, nil
}
