// Package layers implements the sequence layers used by the text classifiers.
//
// Born ships 2D vision layers (Conv2D, MaxPool2D) plus Linear and Embedding.
// This package builds the 1D and recurrent pieces on top of them:
//   - Conv1D: valid 1D convolution over [batch, seq, channels]
//   - MaxPool1D, GlobalMaxPool1D: max pooling over the sequence axis
//   - LSTM: long short-term memory with optional reversed processing
//   - ReverseTime: reversal along the sequence axis
//   - Dropout: inverted dropout, active only in training mode
//   - Dense: Linear followed by an Activation
//
// All layers operate on channel-last tensors [batch, seq, channels], the
// layout Keras uses for text models.
package layers

import (
	"fmt"
	"strings"

	"github.com/born-ml/born/tensor"
)

// Activation is a closed set of element-wise activation functions.
//
// The zero value is Linear (identity).
type Activation int

// Supported activations.
const (
	Linear Activation = iota
	ReLU
	Tanh
	Sigmoid
	Softmax
	SiLU
)

var activationNames = [...]string{
	Linear:  "linear",
	ReLU:    "relu",
	Tanh:    "tanh",
	Sigmoid: "sigmoid",
	Softmax: "softmax",
	SiLU:    "silu",
}

// String returns the canonical lowercase name.
func (a Activation) String() string {
	if a < 0 || int(a) >= len(activationNames) {
		return fmt.Sprintf("Activation(%d)", int(a))
	}
	return activationNames[a]
}

// ParseActivation maps a name to an Activation.
//
// Names are case-insensitive; "swish" is accepted for SiLU and "identity"
// for Linear.
func ParseActivation(name string) (Activation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear", "identity":
		return Linear, nil
	case "relu":
		return ReLU, nil
	case "tanh":
		return Tanh, nil
	case "sigmoid":
		return Sigmoid, nil
	case "softmax":
		return Softmax, nil
	case "silu", "swish":
		return SiLU, nil
	}
	return Linear, fmt.Errorf("unknown activation %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (a Activation) MarshalText() ([]byte, error) {
	if a < 0 || int(a) >= len(activationNames) {
		return nil, fmt.Errorf("unknown activation %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Activation) UnmarshalText(text []byte) error {
	parsed, err := ParseActivation(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// reluBackend is implemented by backends with a native ReLU (autodiff).
type reluBackend interface {
	ReLU(*tensor.RawTensor) *tensor.RawTensor
}

// sigmoidBackend is implemented by backends with a native Sigmoid (autodiff).
type sigmoidBackend interface {
	Sigmoid(*tensor.RawTensor) *tensor.RawTensor
}

// tanhBackend is implemented by backends with a native Tanh (autodiff).
type tanhBackend interface {
	Tanh(*tensor.RawTensor) *tensor.RawTensor
}

// Activate applies a to x element-wise. Softmax normalizes over the last axis.
//
// Backends that record gradients (autodiff.Backend) provide ReLU, Sigmoid and
// Tanh natively and those are used. Other backends get compositions of
// elementary tensor ops.
func Activate[B tensor.Backend](a Activation, x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	switch a {
	case Linear:
		return x
	case ReLU:
		return relu(x)
	case Tanh:
		return tanh(x)
	case Sigmoid:
		return sigmoid(x)
	case Softmax:
		return x.Softmax(len(x.Shape()) - 1)
	case SiLU:
		return x.Mul(sigmoid(x))
	}
	panic(fmt.Sprintf("layers: unsupported activation %v", a))
}

func relu[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := x.Backend()
	if rb, ok := any(backend).(reluBackend); ok {
		return tensor.New[float32, B](rb.ReLU(x.Raw()), backend)
	}
	zeros := tensor.Zeros[float32](x.Shape().Clone(), backend)
	return tensor.Where(x.Greater(zeros), x, zeros)
}

func sigmoid[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := x.Backend()
	if sb, ok := any(backend).(sigmoidBackend); ok {
		return tensor.New[float32, B](sb.Sigmoid(x.Raw()), backend)
	}
	// 1 / (1 + exp(-x))
	denom := x.MulScalar(-1).Exp().AddScalar(1)
	return tensor.Ones[float32](x.Shape().Clone(), backend).Div(denom)
}

func tanh[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := x.Backend()
	if tb, ok := any(backend).(tanhBackend); ok {
		return tensor.New[float32, B](tb.Tanh(x.Raw()), backend)
	}
	// tanh(x) = 2*sigmoid(2x) - 1
	return sigmoid(x.MulScalar(2)).MulScalar(2).SubScalar(1)
}
