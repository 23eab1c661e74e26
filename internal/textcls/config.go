package textcls

import (
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/textcls/internal/layers"
)

// PoolingStrategy names how sequence features are reduced.
//
// The value is validated and recorded; both architectures reduce with max.
type PoolingStrategy int

// Supported pooling strategies.
const (
	ReduceMax PoolingStrategy = iota
	ReduceMean
)

// String returns the configuration name of the strategy.
func (p PoolingStrategy) String() string {
	switch p {
	case ReduceMax:
		return "REDUCE_MAX"
	case ReduceMean:
		return "REDUCE_MEAN"
	default:
		return fmt.Sprintf("PoolingStrategy(%d)", int(p))
	}
}

// ParsePoolingStrategy maps "REDUCE_MAX" or "REDUCE_MEAN" (any case) to a strategy.
func ParsePoolingStrategy(name string) (PoolingStrategy, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "REDUCE_MAX":
		return ReduceMax, nil
	case "REDUCE_MEAN":
		return ReduceMean, nil
	default:
		return 0, fmt.Errorf("%w: unknown pooling strategy %q", ErrInvalidConfig, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p PoolingStrategy) MarshalText() ([]byte, error) {
	if p != ReduceMax && p != ReduceMean {
		return nil, fmt.Errorf("%w: unknown pooling strategy %d", ErrInvalidConfig, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PoolingStrategy) UnmarshalText(text []byte) error {
	v, err := ParsePoolingStrategy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Config holds the hyperparameters shared by both architectures.
type Config struct {
	NumClasses int

	// EmbeddingMatrix seeds the lookup table. Row 0 is padding, row 1 unknown.
	// When set, EmbeddingDim and EmbeddingVocabSize may be zero or must
	// match its shape.
	EmbeddingMatrix    *mat.Dense
	EmbeddingDim       int
	EmbeddingVocabSize int
	EmbeddingTrainable bool

	PoolingStrategy  PoolingStrategy
	MaxSeqLen        int
	NumHiddenUnits   []int
	HiddenActivation layers.Activation
	Dropout          float64
	MultiLabel       bool

	// Seed drives dropout masks.
	Seed int64
}

// CNNConfig configures a TextCNN.
type CNNConfig struct {
	Config
	NumFilters  int
	FilterSizes []int
}

// RCNNConfig configures a TextRCNN.
type RCNNConfig struct {
	Config
	RNNHiddenUnits  int
	ConvHiddenUnits int
}

// DefaultConfig returns the shared defaults. EmbeddingVocabSize or
// EmbeddingMatrix must still be provided.
func DefaultConfig(numClasses int) Config {
	return Config{
		NumClasses:       numClasses,
		EmbeddingDim:     128,
		PoolingStrategy:  ReduceMax,
		MaxSeqLen:        300,
		HiddenActivation: layers.ReLU,
		Dropout:          0.5,
		MultiLabel:       true,
	}
}

// DefaultCNNConfig returns TextCNN defaults: 50 filters of widths 2 to 5
// and no hidden layers.
func DefaultCNNConfig(numClasses int) CNNConfig {
	return CNNConfig{
		Config:      DefaultConfig(numClasses),
		NumFilters:  50,
		FilterSizes: []int{2, 3, 4, 5},
	}
}

// DefaultRCNNConfig returns TextRCNN defaults: 100 recurrent units,
// 100 convolution units and one hidden layer of 100.
func DefaultRCNNConfig(numClasses int) RCNNConfig {
	cfg := DefaultConfig(numClasses)
	cfg.NumHiddenUnits = []int{100}
	return RCNNConfig{
		Config:          cfg,
		RNNHiddenUnits:  100,
		ConvHiddenUnits: 100,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks the shared fields.
func (c Config) Validate() error {
	if c.NumClasses <= 0 {
		return invalid("num_classes must be positive, got %d", c.NumClasses)
	}
	if c.MaxSeqLen <= 0 {
		return invalid("max_seq_len must be positive, got %d", c.MaxSeqLen)
	}
	if !(c.Dropout >= 0 && c.Dropout <= 1) {
		return invalid("dropout must be in [0, 1], got %g", c.Dropout)
	}
	if c.PoolingStrategy != ReduceMax && c.PoolingStrategy != ReduceMean {
		return invalid("unknown pooling strategy %d", int(c.PoolingStrategy))
	}
	if c.HiddenActivation < layers.Linear || c.HiddenActivation > layers.SiLU {
		return invalid("unknown hidden activation %d", int(c.HiddenActivation))
	}
	for i, units := range c.NumHiddenUnits {
		if units <= 0 {
			return invalid("hidden layer %d must have positive units, got %d", i, units)
		}
	}

	if c.EmbeddingMatrix == nil {
		if c.EmbeddingVocabSize <= 0 {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrMissingVocabSize)
		}
		if !c.EmbeddingTrainable {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrFrozenScratchEmbedding)
		}
		if c.EmbeddingDim <= 0 {
			return invalid("embedding_dim must be positive, got %d", c.EmbeddingDim)
		}
		return nil
	}

	rows, cols := c.EmbeddingMatrix.Dims()
	if rows < 2 {
		return invalid("embedding matrix needs padding and unknown rows, got %d rows", rows)
	}
	if c.EmbeddingDim != 0 && c.EmbeddingDim != cols {
		return invalid("embedding_dim %d does not match matrix width %d", c.EmbeddingDim, cols)
	}
	if c.EmbeddingVocabSize != 0 && c.EmbeddingVocabSize != rows {
		return invalid("embedding_vocab_size %d does not match matrix height %d", c.EmbeddingVocabSize, rows)
	}
	return nil
}

// Validate checks the shared fields and the convolution branches.
func (c CNNConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.NumFilters <= 0 {
		return invalid("num_filters must be positive, got %d", c.NumFilters)
	}
	if len(c.FilterSizes) == 0 {
		return invalid("filter_sizes must not be empty")
	}
	for _, w := range c.FilterSizes {
		if w <= 0 {
			return invalid("filter size must be positive, got %d", w)
		}
		if pool := c.MaxSeqLen - w + 1; pool <= 0 {
			return fmt.Errorf("%w: %w: filter size %d with max_seq_len %d gives window %d",
				ErrInvalidConfig, ErrPoolWindow, w, c.MaxSeqLen, pool)
		}
	}
	return nil
}

// Validate checks the shared fields and the recurrent sizes.
func (c RCNNConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.RNNHiddenUnits <= 0 {
		return invalid("rnn_hidden_units must be positive, got %d", c.RNNHiddenUnits)
	}
	if c.ConvHiddenUnits <= 0 {
		return invalid("conv_hidden_units must be positive, got %d", c.ConvHiddenUnits)
	}
	return nil
}

// clone detaches slices and the matrix from the caller.
func (c Config) clone() Config {
	c.NumHiddenUnits = slices.Clone(c.NumHiddenUnits)
	if c.EmbeddingMatrix != nil {
		c.EmbeddingMatrix = mat.DenseCopyOf(c.EmbeddingMatrix)
	}
	return c
}

// embeddingDim returns the effective vector size.
func (c Config) embeddingDim() int {
	if c.EmbeddingMatrix != nil {
		_, cols := c.EmbeddingMatrix.Dims()
		return cols
	}
	return c.EmbeddingDim
}
