// Package analytics talks to the optional model-serving sidecar. The sidecar
// trains the risk classifier offline and serves the current parameter set;
// the engine only ever reads from it.
package analytics

import (
	"context"
	"fmt"
	"time"

	"RiskPulse/internal/services/risk"
	xhttp "RiskPulse/pkg/http"
)

const defaultFetchTimeout = 3 * time.Second

// RemoteWeightStore fetches classifier weights from the model service.
// It satisfies the classifier's store contract so the same classifier can be
// backed by a file in development and by the sidecar in production.
type RemoteWeightStore struct {
	baseURL string
	timeout time.Duration
	client  *xhttp.Client
}

func NewRemoteWeightStore(baseURL string, timeout time.Duration) *RemoteWeightStore {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &RemoteWeightStore{
		baseURL: baseURL,
		timeout: timeout,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// Load fetches the current weight set. A failed fetch is returned as an
// error; the classifier falls back to untrained initialization.
func (s *RemoteWeightStore) Load() (*risk.WeightSet, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("model service url not configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var ws risk.WeightSet
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    s.baseURL + "/model/weights",
	}, &ws)
	if err != nil {
		return nil, fmt.Errorf("fetch weights: %w", err)
	}
	if len(ws.Layers) == 0 {
		return nil, fmt.Errorf("model service returned empty weight set")
	}
	return &ws, nil
}

var _ risk.WeightStore = (*RemoteWeightStore)(nil)
