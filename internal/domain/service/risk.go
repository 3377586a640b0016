package service

import (
	"context"

	"RiskPulse/internal/domain/models"
)

// Classifier scores a risk-feature vector into a qualitative level. Advisory
// only: it is layered on top of the analytic metrics, not a replacement.
type Classifier interface {
	Classify(features []float64) (models.Assessment, error)
}

// Optimizer produces a blended recommended weight vector on its own cadence.
type Optimizer interface {
	Optimize(ctx context.Context, snap *models.PortfolioSnapshot, series map[string]models.ReturnSeries) (*models.OptimizationResult, error)
}

// StressTester applies the configured scenario library to a snapshot.
type StressTester interface {
	Run(ctx context.Context, snap *models.PortfolioSnapshot) (*models.StressReport, error)
	Scenarios() []models.StressScenario
}
