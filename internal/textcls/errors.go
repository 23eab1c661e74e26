package textcls

import (
	"errors"

	"github.com/born-ml/textcls/internal/embedding"
)

// Configuration errors. Every constructor error wraps ErrInvalidConfig and,
// where one applies, a more specific sentinel.
var (
	ErrInvalidConfig          = errors.New("invalid model configuration")
	ErrMissingVocabSize       = embedding.ErrMissingVocabSize
	ErrFrozenScratchEmbedding = embedding.ErrFrozenScratch
	ErrPoolWindow             = errors.New("filter size leaves a non-positive pooling window")
)

// Call-time errors.
var (
	ErrInputRank  = errors.New("expected rank 2 input")
	ErrInputShape = errors.New("input sequence length mismatch")
	ErrTokenRange = embedding.ErrTokenRange
)

// ErrCheckpointType is returned when a checkpoint was written by another architecture.
var ErrCheckpointType = errors.New("checkpoint model type mismatch")
