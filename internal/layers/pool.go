package layers

import (
	"fmt"

	"github.com/born-ml/born/tensor"
)

// MaxPool1D takes the maximum over non-overlapping windows of the sequence axis.
//
// Stride equals the pool size and padding is valid, so
//
//	out_len = (seq_len - pool_size) / pool_size + 1
//
// Input shape:  [batch, seq_len, channels]
// Output shape: [batch, out_len, channels]
type MaxPool1D[B tensor.Backend] struct {
	poolSize int
}

// NewMaxPool1D creates a pooling layer. Panics if poolSize < 1.
func NewMaxPool1D[B tensor.Backend](poolSize int) *MaxPool1D[B] {
	if poolSize < 1 {
		panic(fmt.Sprintf("maxpool1d: invalid pool size %d", poolSize))
	}
	return &MaxPool1D[B]{poolSize: poolSize}
}

// Forward pools input [batch, seq_len, channels].
func (m *MaxPool1D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("maxpool1d: expected 3D input [batch, seq, channels], got shape %v", shape))
	}
	if shape[1] < m.poolSize {
		panic(fmt.Sprintf("maxpool1d: sequence length %d shorter than pool size %d", shape[1], m.poolSize))
	}

	steps := TimeSteps(input)
	outLen := m.OutputLength(shape[1])
	windows := make([]*tensor.Tensor[float32, B], outLen)
	for i := range windows {
		windows[i] = maxOf(steps[i*m.poolSize : (i+1)*m.poolSize])
	}
	if outLen == 1 {
		return windows[0]
	}
	return tensor.Cat(windows, 1)
}

// OutputLength returns the pooled length for an input of seqLen.
func (m *MaxPool1D[B]) OutputLength(seqLen int) int {
	return (seqLen-m.poolSize)/m.poolSize + 1
}

// PoolSize returns the window size.
func (m *MaxPool1D[B]) PoolSize() int { return m.poolSize }

// String returns a string representation of the layer.
func (m *MaxPool1D[B]) String() string {
	return fmt.Sprintf("MaxPool1D(pool_size=%d)", m.poolSize)
}

// GlobalMaxPool1D reduces [batch, seq_len, channels] to [batch, channels]
// by taking the element-wise maximum across all positions.
func GlobalMaxPool1D[B tensor.Backend](input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("globalmaxpool1d: expected 3D input [batch, seq, channels], got shape %v", shape))
	}
	return maxOf(TimeSteps(input)).Reshape(shape[0], shape[2])
}

// TimeSteps splits [batch, seq_len, C] into seq_len tensors of [batch, 1, C].
func TimeSteps[B tensor.Backend](input *tensor.Tensor[float32, B]) []*tensor.Tensor[float32, B] {
	seqLen := input.Shape()[1]
	if seqLen == 1 {
		return []*tensor.Tensor[float32, B]{input}
	}
	return input.Chunk(seqLen, 1)
}

// ReverseTime reverses [batch, seq_len, C] along the sequence axis.
func ReverseTime[B tensor.Backend](input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("reverse: expected 3D input [batch, seq, channels], got shape %v", shape))
	}
	if shape[1] == 1 {
		return input
	}
	steps := TimeSteps(input)
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return tensor.Cat(steps, 1)
}

// maxOf folds same-shaped tensors with an element-wise maximum.
// Ties keep the earlier tensor.
func maxOf[B tensor.Backend](ts []*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	acc := ts[0]
	for _, t := range ts[1:] {
		acc = tensor.Where(t.Greater(acc), t, acc)
	}
	return acc
}
