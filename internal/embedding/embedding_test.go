package embedding

import (
	"errors"
	"strings"
	"testing"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func ids(t *testing.T, backend *cpu.Backend, shape tensor.Shape, data ...int32) *tensor.Tensor[int32, *cpu.Backend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, backend)
	require.NoError(t, err)
	return x
}

func TestNew_FromMatrix(t *testing.T) {
	backend := cpu.New()
	matrix := mat.NewDense(3, 2, []float64{
		0, 0,
		0.5, -0.5,
		1, 2,
	})

	lookup, err := New(Options{Matrix: matrix, MaxSeqLen: 2}, backend)
	require.NoError(t, err)
	assert.Equal(t, 3, lookup.VocabSize())
	assert.Equal(t, 2, lookup.Dim())
	assert.False(t, lookup.Trainable())
	assert.Empty(t, lookup.Parameters(), "frozen table exposes no parameters")
	assert.Contains(t, lookup.StateDict(), "weight")

	out, err := lookup.Forward(ids(t, backend, tensor.Shape{1, 2}, 2, 0))
	require.NoError(t, err)
	assert.True(t, out.Shape().Equal(tensor.Shape{1, 2, 2}))
	assert.Equal(t, []float32{1, 2, 0, 0}, out.Data())

	// The table is a copy.
	matrix.Set(2, 0, 99)
	out, err = lookup.Forward(ids(t, backend, tensor.Shape{1, 2}, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, float32(1), out.Data()[0])
}

func TestNew_TrainableMatrix(t *testing.T) {
	backend := cpu.New()
	lookup, err := New(Options{Matrix: mat.NewDense(4, 3, nil), Trainable: true}, backend)
	require.NoError(t, err)
	assert.Len(t, lookup.Parameters(), 1)
}

func TestNew_Scratch(t *testing.T) {
	backend := cpu.New()
	lookup, err := New(Options{Dim: 8, VocabSize: 50, Trainable: true}, backend)
	require.NoError(t, err)
	assert.Equal(t, 50, lookup.VocabSize())
	assert.Equal(t, 8, lookup.Dim())
	require.Len(t, lookup.Parameters(), 1)
	assert.True(t, lookup.Parameters()[0].Tensor().Shape().Equal(tensor.Shape{50, 8}))
}

func TestNew_Errors(t *testing.T) {
	backend := cpu.New()
	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"scratch without vocab size", Options{Dim: 8, Trainable: true}, ErrMissingVocabSize},
		{"frozen scratch", Options{Dim: 8, VocabSize: 10}, ErrFrozenScratch},
		{"scratch without dim", Options{VocabSize: 10, Trainable: true}, ErrInvalidDim},
		{"single row matrix", Options{Matrix: mat.NewDense(1, 4, nil)}, ErrMatrixShape},
		{"dim disagrees", Options{Matrix: mat.NewDense(5, 4, nil), Dim: 3}, ErrMatrixShape},
		{"vocab disagrees", Options{Matrix: mat.NewDense(5, 4, nil), VocabSize: 6}, ErrMatrixShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup, err := New(tt.opts, backend)
			assert.Nil(t, lookup)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLookup_ForwardErrors(t *testing.T) {
	backend := cpu.New()
	lookup, err := New(Options{Matrix: mat.NewDense(3, 2, nil), MaxSeqLen: 2}, backend)
	require.NoError(t, err)

	_, err = lookup.Forward(ids(t, backend, tensor.Shape{1, 2}, 1, 3))
	assert.ErrorIs(t, err, ErrTokenRange)

	_, err = lookup.Forward(ids(t, backend, tensor.Shape{1, 2}, -1, 0))
	assert.ErrorIs(t, err, ErrTokenRange)

	_, err = lookup.Forward(ids(t, backend, tensor.Shape{1, 3}, 0, 0, 0))
	assert.ErrorContains(t, err, "expected ids of shape")
}

func TestLookup_StateDict(t *testing.T) {
	backend := cpu.New()
	src, err := New(Options{Matrix: mat.NewDense(3, 2, []float64{0, 0, 1, 1, 2, 3})}, backend)
	require.NoError(t, err)
	dst, err := New(Options{Dim: 2, VocabSize: 3, Trainable: true}, backend)
	require.NoError(t, err)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	assert.Equal(t, src.Weight().Tensor().Data(), dst.Weight().Tensor().Data())

	wrong, err := New(Options{Dim: 3, VocabSize: 3, Trainable: true}, backend)
	require.NoError(t, err)
	assert.Error(t, wrong.LoadStateDict(src.StateDict()))
	assert.Error(t, wrong.LoadStateDict(nil))
}

type mapIndex map[string]int

func (m mapIndex) Size() int { return len(m) }

func (m mapIndex) Index(token string) (int, bool) {
	i, ok := m[token]
	return i, ok
}

func TestLoadVectors(t *testing.T) {
	idx := mapIndex{"<PAD>": 0, "<UNK>": 1, "good": 2, "bad": 3, "new york": 4}
	input := strings.Join([]string{
		"4 2",
		"good 0.1 0.2",
		"unrelated 9 9",
		"new york -1 1",
		"bad 0.3 0.4",
		"good 7 7",
		"",
	}, "\n")

	m, err := LoadVectors(strings.NewReader(input), idx, 2, 1)
	require.NoError(t, err)

	rows, cols := m.Dims()
	require.Equal(t, 5, rows)
	require.Equal(t, 2, cols)

	assert.Equal(t, []float64{0, 0}, mat.Row(nil, 0, m))
	assert.Equal(t, []float64{0.1, 0.2}, mat.Row(nil, 2, m), "first occurrence wins")
	assert.Equal(t, []float64{0.3, 0.4}, mat.Row(nil, 3, m))
	assert.Equal(t, []float64{-1, 1}, mat.Row(nil, 4, m))

	for _, v := range mat.Row(nil, 1, m) {
		assert.LessOrEqual(t, v, InitScale)
		assert.GreaterOrEqual(t, v, -InitScale)
	}

	again, err := LoadVectors(strings.NewReader(input), idx, 2, 1)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, again), "same seed gives the same matrix")
}

func TestLoadVectors_Errors(t *testing.T) {
	idx := mapIndex{"<PAD>": 0, "<UNK>": 1, "a": 2}

	_, err := LoadVectors(strings.NewReader("a 1\n"), idx, 2, 0)
	assert.True(t, errors.Is(err, ErrVectorsFormat), "short line: %v", err)

	_, err = LoadVectors(strings.NewReader("a 1 x\n"), idx, 2, 0)
	assert.ErrorIs(t, err, ErrVectorsFormat)

	_, err = LoadVectors(strings.NewReader(""), idx, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidDim)

	_, err = LoadVectors(strings.NewReader(""), mapIndex{"<PAD>": 0}, 2, 0)
	assert.ErrorIs(t, err, ErrMatrixShape)
}
