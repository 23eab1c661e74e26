// Package embedding builds token lookup tables for the text classifiers.
//
// A table is either seeded from a pre-trained matrix (row 0 reserved for
// padding, row 1 for unknown tokens) or created from scratch with a given
// vocabulary size. Pre-trained tables are frozen unless marked trainable;
// scratch tables must be trainable.
package embedding

import (
	"errors"
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/textcls/internal/layers"
)

// Common errors.
var (
	ErrMissingVocabSize = errors.New("embedding vocab size must be set when no embedding matrix is given")
	ErrFrozenScratch    = errors.New("embedding must be trainable when no embedding matrix is given")
	ErrMatrixShape      = errors.New("embedding matrix shape mismatch")
	ErrInvalidDim       = errors.New("embedding dimension must be positive")
	ErrTokenRange       = errors.New("token id out of vocabulary range")
)

// Options configures New.
type Options struct {
	// Matrix holds pre-trained vectors, one row per token id. Optional.
	Matrix *mat.Dense
	// Dim is the vector size. Inferred from Matrix when zero.
	Dim int
	// VocabSize is the number of rows. Inferred from Matrix when zero.
	VocabSize int
	// Trainable exposes the table through Parameters.
	Trainable bool
	// MaxSeqLen, when positive, is the required second input dimension.
	MaxSeqLen int
}

// Lookup maps int32 token ids to float32 vectors.
type Lookup[B tensor.Backend] struct {
	table     *nn.Embedding[B]
	trainable bool
	maxSeqLen int
}

// New builds a Lookup from opts.
func New[B tensor.Backend](opts Options, backend B) (*Lookup[B], error) {
	if opts.Matrix == nil {
		switch {
		case opts.VocabSize <= 0:
			return nil, ErrMissingVocabSize
		case !opts.Trainable:
			return nil, ErrFrozenScratch
		case opts.Dim <= 0:
			return nil, fmt.Errorf("%w: got %d", ErrInvalidDim, opts.Dim)
		}
		return &Lookup[B]{
			table:     nn.NewEmbedding(opts.VocabSize, opts.Dim, backend),
			trainable: true,
			maxSeqLen: opts.MaxSeqLen,
		}, nil
	}

	rows, cols := opts.Matrix.Dims()
	if rows < 2 {
		return nil, fmt.Errorf("%w: %d rows, need padding and unknown rows", ErrMatrixShape, rows)
	}
	if opts.Dim != 0 && opts.Dim != cols {
		return nil, fmt.Errorf("%w: matrix has %d columns, embedding dim is %d", ErrMatrixShape, cols, opts.Dim)
	}
	if opts.VocabSize != 0 && opts.VocabSize != rows {
		return nil, fmt.Errorf("%w: matrix has %d rows, vocab size is %d", ErrMatrixShape, rows, opts.VocabSize)
	}

	data := make([]float32, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			data[r*cols+c] = float32(opts.Matrix.At(r, c))
		}
	}
	weight, err := tensor.FromSlice(data, tensor.Shape{rows, cols}, backend)
	if err != nil {
		return nil, fmt.Errorf("embedding weight: %w", err)
	}
	return &Lookup[B]{
		table:     nn.NewEmbeddingWithWeight(weight),
		trainable: opts.Trainable,
		maxSeqLen: opts.MaxSeqLen,
	}, nil
}

// Forward looks up ids [batch, seq_len] and returns [batch, seq_len, dim].
//
// Ids outside [0, VocabSize) are rejected with ErrTokenRange.
func (l *Lookup[B]) Forward(ids *tensor.Tensor[int32, B]) (*tensor.Tensor[float32, B], error) {
	shape := ids.Shape()
	if l.maxSeqLen > 0 && (len(shape) != 2 || shape[1] != l.maxSeqLen) {
		return nil, fmt.Errorf("embedding: expected ids of shape [batch, %d], got %v", l.maxSeqLen, shape)
	}
	vocab := int32(l.table.NumEmbed)
	for i, id := range ids.Data() {
		if id < 0 || id >= vocab {
			return nil, fmt.Errorf("%w: id %d at flat index %d, vocab size %d", ErrTokenRange, id, i, vocab)
		}
	}
	return l.table.Forward(ids), nil
}

// Parameters returns the table weight when trainable, nil when frozen.
func (l *Lookup[B]) Parameters() []*nn.Parameter[B] {
	if !l.trainable {
		return nil
	}
	return []*nn.Parameter[B]{l.table.Weight}
}

// Weight returns the table parameter regardless of trainability.
func (l *Lookup[B]) Weight() *nn.Parameter[B] { return l.table.Weight }

// StateDict returns the table keyed "weight". Frozen tables are included.
func (l *Lookup[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{"weight": l.table.Weight.Tensor().Raw()}
}

// LoadStateDict restores the table written by StateDict.
func (l *Lookup[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	raw, ok := state["weight"]
	if !ok {
		return errors.New("missing weight in state dict")
	}
	if err := layers.CopyInto(l.table.Weight, raw); err != nil {
		return fmt.Errorf("weight: %w", err)
	}
	return nil
}

// VocabSize returns the number of rows.
func (l *Lookup[B]) VocabSize() int { return l.table.NumEmbed }

// Dim returns the vector size.
func (l *Lookup[B]) Dim() int { return l.table.EmbedDim }

// Trainable reports whether the table is exposed to optimizers.
func (l *Lookup[B]) Trainable() bool { return l.trainable }

// String returns a string representation of the layer.
func (l *Lookup[B]) String() string {
	return fmt.Sprintf("Embedding(vocab_size=%d, dim=%d, trainable=%v)", l.VocabSize(), l.Dim(), l.trainable)
}
