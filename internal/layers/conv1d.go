package layers

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Conv1D is a 1D convolution over the sequence axis with valid padding.
//
// Input shape:  [batch, seq_len, in_channels]
// Output shape: [batch, seq_len - kernel_size + 1, out_channels]
//
// The convolution runs on Born's Conv2D: the input is viewed as a single
// plane of height seq_len and width in_channels, and the kernel spans
// kernel_size rows and the full width, so each filter slides only along
// the sequence axis.
//
// Example:
//
//	conv := layers.NewConv1D(128, 50, 3, backend)
//	x := tensor.Zeros[float32](tensor.Shape{2, 300, 128}, backend)
//	y := conv.Forward(x) // [2, 298, 50]
type Conv1D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	conv        *nn.Conv2D[B]
}

// NewConv1D creates a Conv1D with Xavier-initialized weights and zero bias.
//
// Panics if any size is not positive.
func NewConv1D[B tensor.Backend](inChannels, outChannels, kernelSize int, backend B) *Conv1D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv1d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv1d: invalid kernel size %d", kernelSize))
	}
	return &Conv1D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		conv:        nn.NewConv2D(1, outChannels, kernelSize, inChannels, 1, 0, true, backend),
	}
}

// Forward convolves input [batch, seq_len, in_channels].
func (c *Conv1D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("conv1d: expected 3D input [batch, seq, channels], got shape %v", shape))
	}
	if shape[2] != c.inChannels {
		panic(fmt.Sprintf("conv1d: input channels %d != expected %d", shape[2], c.inChannels))
	}
	batch, seqLen := shape[0], shape[1]
	outLen := c.OutputLength(seqLen)
	if outLen <= 0 {
		panic(fmt.Sprintf("conv1d: sequence length %d shorter than kernel %d", seqLen, c.kernelSize))
	}

	plane := input.Reshape(batch, 1, seqLen, c.inChannels)
	out := c.conv.Forward(plane)                   // [batch, out, outLen, 1]
	out = out.Reshape(batch, c.outChannels, outLen) // [batch, out, outLen]
	return out.Transpose(0, 2, 1)                   // [batch, outLen, out]
}

// OutputLength returns the output sequence length for an input of seqLen.
func (c *Conv1D[B]) OutputLength(seqLen int) int {
	return seqLen - c.kernelSize + 1
}

// Parameters returns [weight, bias].
func (c *Conv1D[B]) Parameters() []*nn.Parameter[B] {
	return c.conv.Parameters()
}

// StateDict returns the layer weights keyed "weight" and "bias".
func (c *Conv1D[B]) StateDict() map[string]*tensor.RawTensor {
	return c.named().stateDict()
}

// LoadStateDict restores weights written by StateDict.
func (c *Conv1D[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return c.named().loadStateDict(state)
}

func (c *Conv1D[B]) named() *namedParams[B] {
	params := c.conv.Parameters()
	n := &namedParams[B]{}
	n.add("weight", params[0])
	if len(params) > 1 {
		n.add("bias", params[1])
	}
	return n
}

// InChannels returns the number of input channels.
func (c *Conv1D[B]) InChannels() int { return c.inChannels }

// OutChannels returns the number of filters.
func (c *Conv1D[B]) OutChannels() int { return c.outChannels }

// KernelSize returns the window width along the sequence axis.
func (c *Conv1D[B]) KernelSize() int { return c.kernelSize }

// String returns a string representation of the layer.
func (c *Conv1D[B]) String() string {
	return fmt.Sprintf("Conv1D(in_channels=%d, out_channels=%d, kernel_size=%d)",
		c.inChannels, c.outChannels, c.kernelSize)
}
