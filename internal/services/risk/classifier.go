package risk

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/features"
	applogger "RiskPulse/pkg/logger"
)

// layerSizes fixes the network topology. The output width must match the
// number of risk levels.
var layerSizes = []int{features.Dim, 150, 100, 50, 25, len(models.RiskLevels)}

// WeightSet is the serialized form of the network parameters.
type WeightSet struct {
	Layers  []LayerWeights `json:"layers"`
	Trained bool           `json:"trained"`
	Version string         `json:"version,omitempty"`
}

// LayerWeights holds one dense layer: Weights[out][in] plus a bias per
// output unit.
type LayerWeights struct {
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
}

// WeightStore loads persisted network parameters.
type WeightStore interface {
	Load() (*WeightSet, error)
}

// FileWeightStore reads a WeightSet from a JSON file.
type FileWeightStore struct {
	Path string
}

func (s FileWeightStore) Load() (*WeightSet, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read weights %s: %w", s.Path, err)
	}
	var ws WeightSet
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("decode weights %s: %w", s.Path, err)
	}
	return &ws, nil
}

// NeuralClassifier is a feed-forward network mapping the feature vector to a
// probability per risk level. With no persisted weights it runs on Xavier
// initialization and marks its output uncalibrated; callers must treat such
// assessments as advisory.
type NeuralClassifier struct {
	mu         sync.RWMutex
	layers     []LayerWeights
	calibrated bool
	logger     *applogger.Logger
}

// NewNeuralClassifier builds the network. When store is non-nil and load
// succeeds with trained weights, the classifier is calibrated; any load
// failure falls back to Xavier initialization with a WARN.
func NewNeuralClassifier(store WeightStore, seed int64, l *applogger.Logger) *NeuralClassifier {
	c := &NeuralClassifier{logger: l}
	if store != nil {
		if ws, err := store.Load(); err == nil {
			if initErr := c.setWeights(ws); initErr == nil {
				return c
			} else if l != nil {
				l.Warn("rejecting persisted classifier weights", applogger.Error(initErr))
			}
		} else if l != nil {
			l.Warn("classifier weights unavailable, using untrained network", applogger.Error(err))
		}
	}
	c.layers = xavierLayers(seed)
	c.calibrated = false
	return c
}

// setWeights validates the topology of a loaded WeightSet and installs it.
func (c *NeuralClassifier) setWeights(ws *WeightSet) error {
	if len(ws.Layers) != len(layerSizes)-1 {
		return fmt.Errorf("weight set has %d layers, want %d", len(ws.Layers), len(layerSizes)-1)
	}
	for i, layer := range ws.Layers {
		in, out := layerSizes[i], layerSizes[i+1]
		if len(layer.Weights) != out || len(layer.Biases) != out {
			return fmt.Errorf("layer %d has %d units, want %d", i, len(layer.Weights), out)
		}
		for _, row := range layer.Weights {
			if len(row) != in {
				return fmt.Errorf("layer %d expects %d inputs, got %d", i, in, len(row))
			}
		}
	}
	c.mu.Lock()
	c.layers = ws.Layers
	c.calibrated = ws.Trained
	c.mu.Unlock()
	return nil
}

// xavierLayers draws initial weights uniformly in ±sqrt(6/(fanIn+fanOut)).
func xavierLayers(seed int64) []LayerWeights {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	layers := make([]LayerWeights, len(layerSizes)-1)
	for i := range layers {
		in, out := layerSizes[i], layerSizes[i+1]
		limit := math.Sqrt(6 / float64(in+out))
		w := make([][]float64, out)
		for o := range w {
			row := make([]float64, in)
			for k := range row {
				row[k] = (rng.Float64()*2 - 1) * limit
			}
			w[o] = row
		}
		layers[i] = LayerWeights{Weights: w, Biases: make([]float64, out)}
	}
	return layers
}

// Classify runs a forward pass. Dropout is a training-time concern and is
// never applied here.
func (c *NeuralClassifier) Classify(input []float64) (models.Assessment, error) {
	if len(input) != features.Dim {
		return models.Assessment{}, &models.DimensionMismatchError{
			Name: "classifier input", Want: features.Dim, Got: len(input),
		}
	}

	c.mu.RLock()
	layers := c.layers
	calibrated := c.calibrated
	c.mu.RUnlock()

	act := input
	for i, layer := range layers {
		next := make([]float64, len(layer.Weights))
		for o, row := range layer.Weights {
			sum := layer.Biases[o]
			for k, w := range row {
				sum += w * act[k]
			}
			next[o] = sum
		}
		if i < len(layers)-1 {
			relu(next)
		}
		act = next
	}
	probs := softmax(act)

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}

	out := models.Assessment{
		Level:         models.RiskLevels[best],
		Confidence:    probs[best],
		Probabilities: make(map[models.RiskLevel]float64, len(probs)),
		Calibrated:    calibrated,
		Timestamp:     time.Now(),
	}
	for i, p := range probs {
		out.Probabilities[models.RiskLevels[i]] = p
	}
	return out, nil
}

func relu(v []float64) {
	for i, x := range v {
		if x < 0 {
			v[i] = 0
		}
	}
}

// softmax subtracts the max logit first so large activations cannot
// overflow.
func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, x := range logits {
		if x > max {
			max = x
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, x := range logits {
		out[i] = math.Exp(x - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
