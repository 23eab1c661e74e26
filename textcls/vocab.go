// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package textcls

import (
	"io"

	"github.com/born-ml/born/tensor"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/textcls/internal/embedding"
	"github.com/born-ml/textcls/internal/vocab"
)

// Reserved token ids.
const (
	PadID = vocab.PadID
	UnkID = vocab.UnkID
)

// Vocabulary is an ordered token list with <PAD> and <UNK> first.
type Vocabulary = vocab.Vocabulary

// BuildOptions controls BuildVocabulary.
type BuildOptions = vocab.BuildOptions

// NewVocabulary returns a vocabulary holding the reserved tokens followed by tokens.
func NewVocabulary(tokens ...string) (*Vocabulary, error) {
	return vocab.New(tokens...)
}

// BuildVocabulary counts the tokens of texts and keeps the most frequent ones.
func BuildVocabulary(texts []string, opts BuildOptions) *Vocabulary {
	return vocab.Build(texts, opts)
}

// LoadVocabulary reads a one-token-per-line vocabulary file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	return vocab.LoadFile(path)
}

// Tokenize lowercases text and splits it on non-alphanumeric runs.
func Tokenize(text string) []string {
	return vocab.Tokenize(text)
}

// Encoder maps text to token ids.
type Encoder = vocab.Encoder

// WordEncoder encodes through a Vocabulary.
type WordEncoder = vocab.WordEncoder

// NewWordEncoder returns an encoder over v.
func NewWordEncoder(v *Vocabulary) *WordEncoder {
	return vocab.NewWordEncoder(v)
}

// SubwordEncoder encodes with a tiktoken BPE encoding.
type SubwordEncoder = vocab.SubwordEncoder

// NewSubwordEncoder loads a tiktoken encoding such as "cl100k_base".
func NewSubwordEncoder(encoding string) (*SubwordEncoder, error) {
	return vocab.NewSubwordEncoder(encoding)
}

// EncodeBatch encodes texts into a [len(texts), seqLen] id tensor,
// truncating or right-padding each row.
func EncodeBatch[B tensor.Backend](enc Encoder, texts []string, seqLen int, backend B) (*tensor.Tensor[int32, B], error) {
	return vocab.EncodeBatch(enc, texts, seqLen, backend)
}

// LoadVectors reads GloVe or word2vec text vectors into a matrix aligned to v.
// Rows for tokens absent from r are drawn uniformly from a small range using seed.
func LoadVectors(r io.Reader, v *Vocabulary, dim int, seed int64) (*mat.Dense, error) {
	return embedding.LoadVectors(r, v, dim, seed)
}
