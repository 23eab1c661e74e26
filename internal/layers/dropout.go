package layers

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Dropout zeroes each element with probability rate during training and
// scales the survivors by 1/(1-rate). Outside training it is the identity.
//
// Layers start in inference mode; call SetTraining(true) to enable masking.
type Dropout[B tensor.Backend] struct {
	rate     float64
	rng      *rand.Rand
	training bool
}

// NewDropout creates a dropout layer drawing masks from rng.
//
// Panics if rate is outside [0, 1]. A nil rng uses a source seeded with 1.
func NewDropout[B tensor.Backend](rate float64, rng *rand.Rand) *Dropout[B] {
	if rate < 0 || rate > 1 {
		panic(fmt.Sprintf("dropout: rate %v outside [0, 1]", rate))
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1)) //nolint:gosec // masks do not need a CSPRNG
	}
	return &Dropout[B]{rate: rate, rng: rng}
}

// Forward applies the dropout mask in training mode.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.rate == 0 {
		return input
	}
	backend := input.Backend()
	shape := input.Shape().Clone()
	if d.rate >= 1 {
		return input.Mul(tensor.Zeros[float32](shape, backend))
	}

	keep := 1 - d.rate
	scale := float32(1 / keep)
	mask := make([]float32, shape.NumElements())
	for i := range mask {
		if d.rng.Float64() < keep {
			mask[i] = scale
		}
	}
	m, err := tensor.FromSlice(mask, shape, backend)
	if err != nil {
		panic(fmt.Sprintf("dropout: failed to create mask: %v", err))
	}
	return input.Mul(m)
}

// SetTraining switches between training (masking) and inference (identity).
func (d *Dropout[B]) SetTraining(training bool) { d.training = training }

// Training reports whether masking is active.
func (d *Dropout[B]) Training() bool { return d.training }

// Rate returns the drop probability.
func (d *Dropout[B]) Rate() float64 { return d.rate }

// Parameters returns nil; dropout has no trainable parameters.
func (d *Dropout[B]) Parameters() []*nn.Parameter[B] { return nil }

// String returns a string representation of the layer.
func (d *Dropout[B]) String() string {
	return fmt.Sprintf("Dropout(rate=%g)", d.rate)
}
