package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/textcls/internal/layers"
	"github.com/born-ml/textcls/internal/textcls"
)

// Architectures.
const (
	TextCNN  = "textcnn"
	TextRCNN = "textrcnn"
)

// ErrModelFile wraps every model file error.
var ErrModelFile = errors.New("invalid model file")

// File is a model file.
type File struct {
	Architecture    string         `yaml:"architecture"`
	NumClasses      int            `yaml:"num_classes"`
	Labels          []string       `yaml:"labels,omitempty"`
	Embedding       EmbeddingBlock `yaml:"embedding"`
	MaxSeqLen       int            `yaml:"max_seq_len,omitempty"`
	PoolingStrategy string         `yaml:"pooling_strategy,omitempty"`
	Hidden          HiddenBlock    `yaml:"hidden,omitempty"`
	Dropout         *float64       `yaml:"dropout,omitempty"`
	MultiLabel      *bool          `yaml:"multi_label,omitempty"`
	CNN             CNNBlock       `yaml:"cnn,omitempty"`
	RCNN            RCNNBlock      `yaml:"rcnn,omitempty"`
	Vocabulary      string         `yaml:"vocabulary,omitempty"`
	Tokenizer       string         `yaml:"tokenizer,omitempty"`
	Weights         string         `yaml:"weights,omitempty"`
	Seed            int64          `yaml:"seed,omitempty"`

	// Dir is the directory relative paths were resolved against.
	Dir string `yaml:"-"`
}

// EmbeddingBlock configures the lookup table.
type EmbeddingBlock struct {
	Dim       int    `yaml:"dim,omitempty"`
	VocabSize int    `yaml:"vocab_size,omitempty"`
	Trainable *bool  `yaml:"trainable,omitempty"`
	Vectors   string `yaml:"vectors,omitempty"`
}

// HiddenBlock configures the dense layers before the output.
type HiddenBlock struct {
	Units      []int  `yaml:"units,omitempty"`
	Activation string `yaml:"activation,omitempty"`
}

// CNNBlock holds TextCNN settings.
type CNNBlock struct {
	NumFilters  int   `yaml:"num_filters,omitempty"`
	FilterSizes []int `yaml:"filter_sizes,omitempty"`
}

// RCNNBlock holds TextRCNN settings.
type RCNNBlock struct {
	RNNHiddenUnits  int `yaml:"rnn_hidden_units,omitempty"`
	ConvHiddenUnits int `yaml:"conv_hidden_units,omitempty"`
}

// LoadFile reads and checks the model file at path. Relative paths inside
// it are resolved against its directory.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(bytes.NewReader(data), filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a model file. Unknown keys are rejected.
func Parse(r io.Reader, dir string) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrModelFile)
		}
		return nil, fmt.Errorf("%w: %w", ErrModelFile, err)
	}
	f.Architecture = strings.ToLower(strings.TrimSpace(f.Architecture))
	f.Dir = dir
	f.Embedding.Vectors = resolve(dir, f.Embedding.Vectors)
	f.Vocabulary = resolve(dir, f.Vocabulary)
	f.Weights = resolve(dir, f.Weights)
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

func resolve(dir, path string) string {
	if path == "" || dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func (f *File) check() error {
	switch f.Architecture {
	case TextCNN, TextRCNN:
	case "":
		return fmt.Errorf("%w: architecture is required", ErrModelFile)
	default:
		return fmt.Errorf("%w: unknown architecture %q", ErrModelFile, f.Architecture)
	}
	if f.NumClasses <= 0 {
		return fmt.Errorf("%w: num_classes must be positive", ErrModelFile)
	}
	if len(f.Labels) != 0 && len(f.Labels) != f.NumClasses {
		return fmt.Errorf("%w: %d labels for %d classes", ErrModelFile, len(f.Labels), f.NumClasses)
	}
	seen := make(map[string]bool, len(f.Labels))
	for _, l := range f.Labels {
		if seen[l] {
			return fmt.Errorf("%w: duplicate label %q", ErrModelFile, l)
		}
		seen[l] = true
	}
	if f.Vocabulary != "" && f.Tokenizer != "" {
		return fmt.Errorf("%w: vocabulary and tokenizer are exclusive", ErrModelFile)
	}
	if f.Embedding.Vectors != "" && f.Vocabulary == "" {
		return fmt.Errorf("%w: embedding vectors need a vocabulary", ErrModelFile)
	}
	return nil
}

// ClassLabels returns the labels, or class_<i> names when none are given.
func (f *File) ClassLabels() []string {
	if len(f.Labels) > 0 {
		return append([]string(nil), f.Labels...)
	}
	labels := make([]string, f.NumClasses)
	for i := range labels {
		labels[i] = fmt.Sprintf("class_%d", i)
	}
	return labels
}

// ModelConfig maps the shared fields onto textcls defaults. The embedding
// matrix is not loaded here.
func (f *File) ModelConfig() (textcls.Config, error) {
	cfg := textcls.DefaultConfig(f.NumClasses)
	if err := f.apply(&cfg); err != nil {
		return textcls.Config{}, fmt.Errorf("%w: %w", ErrModelFile, err)
	}
	return cfg, nil
}

func (f *File) apply(cfg *textcls.Config) error {
	if f.Embedding.Dim != 0 {
		cfg.EmbeddingDim = f.Embedding.Dim
	}
	cfg.EmbeddingVocabSize = f.Embedding.VocabSize
	if f.Embedding.Trainable != nil {
		cfg.EmbeddingTrainable = *f.Embedding.Trainable
	} else if f.Embedding.Vectors == "" {
		cfg.EmbeddingTrainable = true
	}
	if f.MaxSeqLen != 0 {
		cfg.MaxSeqLen = f.MaxSeqLen
	}
	if f.PoolingStrategy != "" {
		p, err := textcls.ParsePoolingStrategy(f.PoolingStrategy)
		if err != nil {
			return err
		}
		cfg.PoolingStrategy = p
	}
	if f.Hidden.Units != nil {
		cfg.NumHiddenUnits = append([]int(nil), f.Hidden.Units...)
	}
	if f.Hidden.Activation != "" {
		a, err := layers.ParseActivation(f.Hidden.Activation)
		if err != nil {
			return err
		}
		cfg.HiddenActivation = a
	}
	if f.Dropout != nil {
		cfg.Dropout = *f.Dropout
	}
	if f.MultiLabel != nil {
		cfg.MultiLabel = *f.MultiLabel
	}
	cfg.Seed = f.Seed
	return nil
}

// CNNConfig returns the TextCNN configuration.
func (f *File) CNNConfig() (textcls.CNNConfig, error) {
	cfg := textcls.DefaultCNNConfig(f.NumClasses)
	if err := f.apply(&cfg.Config); err != nil {
		return textcls.CNNConfig{}, fmt.Errorf("%w: %w", ErrModelFile, err)
	}
	if f.CNN.NumFilters != 0 {
		cfg.NumFilters = f.CNN.NumFilters
	}
	if f.CNN.FilterSizes != nil {
		cfg.FilterSizes = append([]int(nil), f.CNN.FilterSizes...)
	}
	return cfg, nil
}

// RCNNConfig returns the TextRCNN configuration.
func (f *File) RCNNConfig() (textcls.RCNNConfig, error) {
	cfg := textcls.DefaultRCNNConfig(f.NumClasses)
	if err := f.apply(&cfg.Config); err != nil {
		return textcls.RCNNConfig{}, fmt.Errorf("%w: %w", ErrModelFile, err)
	}
	if f.RCNN.RNNHiddenUnits != 0 {
		cfg.RNNHiddenUnits = f.RCNN.RNNHiddenUnits
	}
	if f.RCNN.ConvHiddenUnits != 0 {
		cfg.ConvHiddenUnits = f.RCNN.ConvHiddenUnits
	}
	return cfg, nil
}

// Write encodes f as YAML.
func (f *File) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}
