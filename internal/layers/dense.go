package layers

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Dense is a fully connected layer followed by an activation.
//
// Input shape:  [batch, in_features]
// Output shape: [batch, out_features]
type Dense[B tensor.Backend] struct {
	linear     *nn.Linear[B]
	activation Activation
}

// NewDense creates a Dense layer with Xavier weights and zero bias.
func NewDense[B tensor.Backend](inFeatures, outFeatures int, activation Activation, backend B) *Dense[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("dense: invalid sizes in=%d, out=%d", inFeatures, outFeatures))
	}
	return &Dense[B]{
		linear:     nn.NewLinear(inFeatures, outFeatures, backend),
		activation: activation,
	}
}

// Forward computes activation(x @ W.T + b).
func (d *Dense[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return Activate(d.activation, d.linear.Forward(input))
}

// Parameters returns [weight, bias].
func (d *Dense[B]) Parameters() []*nn.Parameter[B] {
	return d.linear.Parameters()
}

// StateDict returns the layer weights keyed "weight" and "bias".
func (d *Dense[B]) StateDict() map[string]*tensor.RawTensor {
	return d.named().stateDict()
}

// LoadStateDict restores weights written by StateDict.
func (d *Dense[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return d.named().loadStateDict(state)
}

func (d *Dense[B]) named() *namedParams[B] {
	n := &namedParams[B]{}
	n.add("weight", d.linear.Weight())
	n.add("bias", d.linear.Bias())
	return n
}

// InFeatures returns the input width.
func (d *Dense[B]) InFeatures() int { return d.linear.InFeatures() }

// OutFeatures returns the output width.
func (d *Dense[B]) OutFeatures() int { return d.linear.OutFeatures() }

// Activation returns the activation applied after the affine map.
func (d *Dense[B]) Activation() Activation { return d.activation }

// String returns a string representation of the layer.
func (d *Dense[B]) String() string {
	return fmt.Sprintf("Dense(in=%d, out=%d, activation=%s)", d.InFeatures(), d.OutFeatures(), d.activation)
}
