package vocab

import (
	"errors"
	"fmt"

	"github.com/born-ml/born/tensor"
	"github.com/born-ml/born/tokenizer"
)

// ErrSeqLen is returned for a non-positive sequence length.
var ErrSeqLen = errors.New("sequence length must be positive")

// Encoder maps text to token ids in [0, VocabSize()).
type Encoder interface {
	Encode(text string) ([]int32, error)
	VocabSize() int
}

// WordEncoder encodes with Tokenize and a Vocabulary.
type WordEncoder struct {
	vocab *Vocabulary
}

// NewWordEncoder returns an encoder over v.
func NewWordEncoder(v *Vocabulary) *WordEncoder {
	return &WordEncoder{vocab: v}
}

// Encode maps every token of text, unknown tokens to UnkID.
func (e *WordEncoder) Encode(text string) ([]int32, error) {
	toks := Tokenize(text)
	ids := make([]int32, len(toks))
	for i, tok := range toks {
		ids[i] = e.vocab.ID(tok)
	}
	return ids, nil
}

// VocabSize returns the vocabulary size.
func (e *WordEncoder) VocabSize() int { return e.vocab.Size() }

// Vocabulary returns the underlying vocabulary.
func (e *WordEncoder) Vocabulary() *Vocabulary { return e.vocab }

// reservedIDs is the number of ids kept for padding and unknown tokens.
const reservedIDs = 2

// SubwordEncoder wraps a BPE tokenizer and shifts its ids past the
// reserved ones.
type SubwordEncoder struct {
	tok  tokenizer.Tokenizer
	name string
}

// NewSubwordEncoder loads a tiktoken encoding such as "cl100k_base".
func NewSubwordEncoder(encoding string) (*SubwordEncoder, error) {
	tok, err := tokenizer.NewTikToken(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer %s: %w", encoding, err)
	}
	return NewSubwordEncoderFrom(encoding, tok), nil
}

// NewSubwordEncoderFrom wraps an already loaded tokenizer.
func NewSubwordEncoderFrom(name string, tok tokenizer.Tokenizer) *SubwordEncoder {
	return &SubwordEncoder{tok: tok, name: name}
}

// Encode tokenizes text and shifts every id by two.
func (e *SubwordEncoder) Encode(text string) ([]int32, error) {
	ids, err := e.tok.Encode(text)
	if err != nil {
		return nil, err
	}
	for i := range ids {
		ids[i] += reservedIDs
	}
	return ids, nil
}

// VocabSize returns the tokenizer size plus the reserved ids.
func (e *SubwordEncoder) VocabSize() int { return e.tok.VocabSize() + reservedIDs }

// Name returns the encoding name.
func (e *SubwordEncoder) Name() string { return e.name }

// Fit truncates ids to seqLen or right-pads them with PadID.
func Fit(ids []int32, seqLen int) []int32 {
	row := make([]int32, seqLen)
	copy(row, ids)
	return row
}

// EncodeRows encodes every text and fits it to seqLen.
func EncodeRows(enc Encoder, texts []string, seqLen int) ([][]int32, error) {
	if seqLen <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrSeqLen, seqLen)
	}
	rows := make([][]int32, len(texts))
	for i, text := range texts {
		ids, err := enc.Encode(text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		rows[i] = Fit(ids, seqLen)
	}
	return rows, nil
}

// RowsTensor packs equal-length rows into a [len(rows), seqLen] tensor.
func RowsTensor[B tensor.Backend](rows [][]int32, seqLen int, backend B) (*tensor.Tensor[int32, B], error) {
	if seqLen <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrSeqLen, seqLen)
	}
	if len(rows) == 0 {
		return nil, errors.New("no rows to encode")
	}
	flat := make([]int32, 0, len(rows)*seqLen)
	for i, row := range rows {
		if len(row) != seqLen {
			return nil, fmt.Errorf("row %d has %d ids, want %d", i, len(row), seqLen)
		}
		flat = append(flat, row...)
	}
	return tensor.FromSlice(flat, tensor.Shape{len(rows), seqLen}, backend)
}

// EncodeBatch encodes texts into a [len(texts), seqLen] id tensor.
func EncodeBatch[B tensor.Backend](enc Encoder, texts []string, seqLen int, backend B) (*tensor.Tensor[int32, B], error) {
	rows, err := EncodeRows(enc, texts, seqLen)
	if err != nil {
		return nil, err
	}
	return RowsTensor(rows, seqLen, backend)
}
