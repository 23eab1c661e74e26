package layers

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// LSTM is a long short-term memory layer that returns the full sequence of
// hidden states.
//
// For each step t (zero initial h and c):
//
//	z   = x_t @ W + h_{t-1} @ U + b        // [batch, 4*units]
//	i, f, g, o = split(z, 4)
//	c_t = sigmoid(f) * c_{t-1} + sigmoid(i) * tanh(g)
//	h_t = sigmoid(o) * tanh(c_t)
//
// Gate order is input, forget, cell, output. The forget slice of the bias
// starts at 1.
//
// With goBackwards the sequence is consumed from the last position to the
// first and the outputs are returned in processing order, so output step 0
// corresponds to input step seq_len-1. Apply ReverseTime to realign.
//
// Input shape:  [batch, seq_len, in_features]
// Output shape: [batch, seq_len, units]
type LSTM[B tensor.Backend] struct {
	inFeatures  int
	units       int
	goBackwards bool

	kernel    *nn.Parameter[B] // [in_features, 4*units]
	recurrent *nn.Parameter[B] // [units, 4*units]
	bias      *nn.Parameter[B] // [4*units]

	backend B
}

// NewLSTM creates an LSTM layer. Panics if a size is not positive.
func NewLSTM[B tensor.Backend](inFeatures, units int, goBackwards bool, backend B) *LSTM[B] {
	if inFeatures <= 0 || units <= 0 {
		panic(fmt.Sprintf("lstm: invalid sizes in=%d, units=%d", inFeatures, units))
	}

	gates := 4 * units
	kernel := nn.Xavier(inFeatures, gates, tensor.Shape{inFeatures, gates}, backend)
	recurrent := nn.Xavier(units, gates, tensor.Shape{units, gates}, backend)

	biasData := make([]float32, gates)
	for i := units; i < 2*units; i++ {
		biasData[i] = 1
	}
	bias, err := tensor.FromSlice(biasData, tensor.Shape{gates}, backend)
	if err != nil {
		panic(fmt.Sprintf("lstm: failed to create bias: %v", err))
	}

	return &LSTM[B]{
		inFeatures:  inFeatures,
		units:       units,
		goBackwards: goBackwards,
		kernel:      nn.NewParameter("lstm.kernel", kernel),
		recurrent:   nn.NewParameter("lstm.recurrent_kernel", recurrent),
		bias:        nn.NewParameter("lstm.bias", bias),
		backend:     backend,
	}
}

// Forward runs the recurrence over input [batch, seq_len, in_features].
func (l *LSTM[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("lstm: expected 3D input [batch, seq, features], got shape %v", shape))
	}
	if shape[2] != l.inFeatures {
		panic(fmt.Sprintf("lstm: input features %d != expected %d", shape[2], l.inFeatures))
	}
	batch, seqLen := shape[0], shape[1]

	steps := TimeSteps(input)
	w := l.kernel.Tensor()
	u := l.recurrent.Tensor()
	b := l.bias.Tensor().Reshape(1, 4*l.units)

	h := tensor.Zeros[float32](tensor.Shape{batch, l.units}, l.backend)
	c := tensor.Zeros[float32](tensor.Shape{batch, l.units}, l.backend)

	outputs := make([]*tensor.Tensor[float32, B], 0, seqLen)
	for i := 0; i < seqLen; i++ {
		t := i
		if l.goBackwards {
			t = seqLen - 1 - i
		}
		xt := steps[t].Reshape(batch, l.inFeatures)

		z := xt.MatMul(w).Add(h.MatMul(u)).Add(b)
		gates := z.Chunk(4, 1)
		in := Activate(Sigmoid, gates[0])
		forget := Activate(Sigmoid, gates[1])
		cell := Activate(Tanh, gates[2])
		out := Activate(Sigmoid, gates[3])

		c = forget.Mul(c).Add(in.Mul(cell))
		h = out.Mul(Activate(Tanh, c))
		outputs = append(outputs, h.Reshape(batch, 1, l.units))
	}

	if len(outputs) == 1 {
		return outputs[0]
	}
	return tensor.Cat(outputs, 1)
}

// Parameters returns [kernel, recurrent_kernel, bias].
func (l *LSTM[B]) Parameters() []*nn.Parameter[B] {
	return []*nn.Parameter[B]{l.kernel, l.recurrent, l.bias}
}

// StateDict returns the layer weights keyed "kernel", "recurrent_kernel" and "bias".
func (l *LSTM[B]) StateDict() map[string]*tensor.RawTensor {
	return l.named().stateDict()
}

// LoadStateDict restores weights written by StateDict.
func (l *LSTM[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return l.named().loadStateDict(state)
}

func (l *LSTM[B]) named() *namedParams[B] {
	n := &namedParams[B]{}
	n.add("kernel", l.kernel)
	n.add("recurrent_kernel", l.recurrent)
	n.add("bias", l.bias)
	return n
}

// Units returns the hidden state size.
func (l *LSTM[B]) Units() int { return l.units }

// GoBackwards reports whether the layer consumes the sequence in reverse.
func (l *LSTM[B]) GoBackwards() bool { return l.goBackwards }

// String returns a string representation of the layer.
func (l *LSTM[B]) String() string {
	return fmt.Sprintf("LSTM(in_features=%d, units=%d, go_backwards=%v)", l.inFeatures, l.units, l.goBackwards)
}
