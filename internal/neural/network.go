// Package neural implements the two-layer link-scoring network and the
// Scorer that persists it across sessions.
package neural

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"
)

const (
	defaultInputSize  = 24
	defaultHiddenSize = 16
	defaultOutputSize = 1
	defaultLearnRate  = 0.1
)

// DimensionError reports a feature vector whose length does not match the
// network's input size.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("neural: expected %d features, got %d", e.Want, e.Got)
}

// Network is a fully-connected input→hidden→output net with sigmoid
// activation at both layers.
type Network struct {
	inputSize  int
	hiddenSize int
	outputSize int

	weightsIH [][]float64 // [hidden][input]
	weightsHO [][]float64 // [output][hidden]
	biasH     []float64
	biasO     []float64

	learningRate float64
	generation   uint64
}

// State is the JSON-serializable form of a Network, persisted as one unit
// under a logical model key.
type State struct {
	InputSize    int         `json:"input_size"`
	HiddenSize   int         `json:"hidden_size"`
	OutputSize   int         `json:"output_size"`
	WeightsIH    [][]float64 `json:"weights_ih"`
	WeightsHO    [][]float64 `json:"weights_ho"`
	BiasH        []float64   `json:"bias_h"`
	BiasO        []float64   `json:"bias_o"`
	LearningRate float64     `json:"learning_rate"`
	Generation   uint64      `json:"generation"`
}

// NewNetwork creates a generation-0 network with zero-mean Gaussian
// weights scaled by 1/sqrt(fan-in) per layer and zero biases. A nil rng
// seeds from the global source.
func NewNetwork(rng *rand.Rand) *Network {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	n := &Network{
		inputSize:    defaultInputSize,
		hiddenSize:   defaultHiddenSize,
		outputSize:   defaultOutputSize,
		learningRate: defaultLearnRate,
	}

	ihScale := 1 / math.Sqrt(float64(n.inputSize))
	n.weightsIH = make([][]float64, n.hiddenSize)
	for j := range n.weightsIH {
		row := make([]float64, n.inputSize)
		for i := range row {
			row[i] = rng.NormFloat64() * ihScale
		}
		n.weightsIH[j] = row
	}

	hoScale := 1 / math.Sqrt(float64(n.hiddenSize))
	n.weightsHO = make([][]float64, n.outputSize)
	for k := range n.weightsHO {
		row := make([]float64, n.hiddenSize)
		for j := range row {
			row[j] = rng.NormFloat64() * hoScale
		}
		n.weightsHO[k] = row
	}

	n.biasH = make([]float64, n.hiddenSize)
	n.biasO = make([]float64, n.outputSize)
	return n
}

// Generation returns the number of training steps applied.
func (n *Network) Generation() uint64 { return n.generation }

// InputSize returns the configured feature width.
func (n *Network) InputSize() int { return n.inputSize }

// Predict runs a forward pass and returns a probability in (0,1). No
// mutation; safe for concurrent callers as long as nothing trains the
// same instance.
func (n *Network) Predict(features []float64) (float64, error) {
	if len(features) != n.inputSize {
		return 0, &DimensionError{Want: n.inputSize, Got: len(features)}
	}
	_, output := n.forward(features)
	return output, nil
}

// Train applies one backpropagation step toward target and increments the
// generation by exactly one.
//
// The hidden-layer error uses the raw output error, not the output delta.
// Persisted models were trained under this arithmetic; changing it would
// silently skew every stored weight set.
func (n *Network) Train(features []float64, target float64) error {
	if len(features) != n.inputSize {
		return &DimensionError{Want: n.inputSize, Got: len(features)}
	}

	hidden, output := n.forward(features)

	outputError := target - output
	outputDelta := outputError * output * (1 - output) * n.learningRate

	// Hidden layer first, so the errors read the pre-update output weights.
	for j := 0; j < n.hiddenSize; j++ {
		hiddenError := n.weightsHO[0][j] * outputError
		hiddenDelta := hiddenError * hidden[j] * (1 - hidden[j]) * n.learningRate

		for i, x := range features {
			n.weightsIH[j][i] += hiddenDelta * x
		}
		n.biasH[j] += hiddenDelta
	}

	for j, h := range hidden {
		n.weightsHO[0][j] += outputDelta * h
	}
	n.biasO[0] += outputDelta

	n.generation++
	return nil
}

func (n *Network) forward(features []float64) (hidden []float64, output float64) {
	hidden = make([]float64, n.hiddenSize)
	for j := 0; j < n.hiddenSize; j++ {
		sum := n.biasH[j]
		for i, x := range features {
			sum += n.weightsIH[j][i] * x
		}
		hidden[j] = sigmoid(sum)
	}

	sum := n.biasO[0]
	for j, h := range hidden {
		sum += n.weightsHO[0][j] * h
	}
	return hidden, sigmoid(sum)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Snapshot returns a deep copy of the network as persistable State.
func (n *Network) Snapshot() State {
	return State{
		InputSize:    n.inputSize,
		HiddenSize:   n.hiddenSize,
		OutputSize:   n.outputSize,
		WeightsIH:    copyMatrix(n.weightsIH),
		WeightsHO:    copyMatrix(n.weightsHO),
		BiasH:        append([]float64(nil), n.biasH...),
		BiasO:        append([]float64(nil), n.biasO...),
		LearningRate: n.learningRate,
		Generation:   n.generation,
	}
}

// RestoreNetwork rebuilds a Network from persisted State, validating that
// every matrix matches the state's declared dimensions.
func RestoreNetwork(s State) (*Network, error) {
	if s.InputSize <= 0 || s.HiddenSize <= 0 || s.OutputSize <= 0 {
		return nil, eris.Errorf("neural: invalid dimensions %d/%d/%d", s.InputSize, s.HiddenSize, s.OutputSize)
	}
	if len(s.WeightsIH) != s.HiddenSize {
		return nil, eris.Errorf("neural: weights_ih has %d rows, want %d", len(s.WeightsIH), s.HiddenSize)
	}
	for j, row := range s.WeightsIH {
		if len(row) != s.InputSize {
			return nil, eris.Errorf("neural: weights_ih row %d has %d cols, want %d", j, len(row), s.InputSize)
		}
	}
	if len(s.WeightsHO) != s.OutputSize {
		return nil, eris.Errorf("neural: weights_ho has %d rows, want %d", len(s.WeightsHO), s.OutputSize)
	}
	for k, row := range s.WeightsHO {
		if len(row) != s.HiddenSize {
			return nil, eris.Errorf("neural: weights_ho row %d has %d cols, want %d", k, len(row), s.HiddenSize)
		}
	}
	if len(s.BiasH) != s.HiddenSize || len(s.BiasO) != s.OutputSize {
		return nil, eris.Errorf("neural: bias lengths %d/%d, want %d/%d", len(s.BiasH), len(s.BiasO), s.HiddenSize, s.OutputSize)
	}

	lr := s.LearningRate
	if lr <= 0 {
		lr = defaultLearnRate
	}

	return &Network{
		inputSize:    s.InputSize,
		hiddenSize:   s.HiddenSize,
		outputSize:   s.OutputSize,
		weightsIH:    copyMatrix(s.WeightsIH),
		weightsHO:    copyMatrix(s.WeightsHO),
		biasH:        append([]float64(nil), s.BiasH...),
		biasO:        append([]float64(nil), s.BiasO...),
		learningRate: lr,
		generation:   s.Generation,
	}, nil
}

func (n *Network) clone() *Network {
	return &Network{
		inputSize:    n.inputSize,
		hiddenSize:   n.hiddenSize,
		outputSize:   n.outputSize,
		weightsIH:    copyMatrix(n.weightsIH),
		weightsHO:    copyMatrix(n.weightsHO),
		biasH:        append([]float64(nil), n.biasH...),
		biasO:        append([]float64(nil), n.biasO...),
		learningRate: n.learningRate,
		generation:   n.generation,
	}
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
