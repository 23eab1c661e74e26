// Package pipeline assembles a ready-to-serve classifier from a model file:
// text encoder, embedding vectors, model and weights.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/textcls/internal/config"
	"github.com/born-ml/textcls/internal/embedding"
	"github.com/born-ml/textcls/internal/textcls"
	"github.com/born-ml/textcls/internal/vocab"
)

// Common errors.
var (
	ErrNoInput    = errors.New("no input to classify")
	ErrNoEncoder  = errors.New("model has no vocabulary or tokenizer for text input")
	ErrVocabRange = errors.New("embedding vocab size smaller than the encoder vocabulary")
)

// Result is the prediction for one input row.
type Result struct {
	Scores map[string]float32 `json:"scores"`
	Top    string             `json:"top"`
}

// Info describes a loaded classifier.
type Info struct {
	Name         string   `json:"name"`
	Architecture string   `json:"architecture"`
	Labels       []string `json:"labels"`
	MaxSeqLen    int      `json:"max_seq_len"`
	VocabSize    int      `json:"vocab_size"`
	EmbeddingDim int      `json:"embedding_dim"`
	MultiLabel   bool     `json:"multi_label"`
	Parameters   int      `json:"parameters"`
	Encoder      string   `json:"encoder,omitempty"`
}

// Service is what the HTTP server and CLI need from a classifier.
type Service interface {
	Info() Info
	Summary() []textcls.LayerSummary
	ClassifyTexts(texts []string) ([]Result, error)
	ClassifyIDs(ids [][]int32) ([]Result, error)
}

// Classifier runs a model behind an encoder. Calls are serialized.
type Classifier[B tensor.Backend] struct {
	mu      sync.Mutex
	model   textcls.Model[B]
	encoder vocab.Encoder
	labels  []string
	backend B
	info    Info
}

// New wraps a built model. encoder may be nil, in which case only
// ClassifyIDs is available.
func New[B tensor.Backend](model textcls.Model[B], encoder vocab.Encoder, labels []string, backend B) (*Classifier[B], error) {
	if len(labels) != model.NumClasses() {
		return nil, fmt.Errorf("%d labels for %d classes", len(labels), model.NumClasses())
	}
	c := &Classifier[B]{
		model:   model,
		encoder: encoder,
		labels:  append([]string(nil), labels...),
		backend: backend,
	}
	c.info = Info{
		Name:       model.Name(),
		Labels:     c.labels,
		MaxSeqLen:  model.MaxSeqLen(),
		Parameters: textcls.TotalParams(model),
	}
	switch enc := encoder.(type) {
	case *vocab.WordEncoder:
		c.info.Encoder = "words"
	case *vocab.SubwordEncoder:
		c.info.Encoder = enc.Name()
	}
	return c, nil
}

// Open builds the classifier described by f. Weights are loaded from
// weights when non-empty, otherwise from f.Weights when set.
func Open[B tensor.Backend](f *config.File, weights string, backend B) (*Classifier[B], error) {
	encoder, err := openEncoder(f)
	if err != nil {
		return nil, err
	}

	shared, err := f.ModelConfig()
	if err != nil {
		return nil, err
	}
	if err := embeddingSource(f, encoder, &shared); err != nil {
		return nil, err
	}

	model, err := Build(f, shared, backend)
	if err != nil {
		return nil, err
	}

	if weights == "" {
		weights = f.Weights
	}
	if weights != "" {
		if _, err := textcls.Load(model, weights, backend); err != nil {
			return nil, err
		}
	}

	c, err := New(model, encoder, f.ClassLabels(), backend)
	if err != nil {
		return nil, err
	}
	c.info.Architecture = f.Architecture
	c.info.MultiLabel = shared.MultiLabel
	c.info.EmbeddingDim = shared.EmbeddingDim
	c.info.VocabSize = shared.EmbeddingVocabSize
	if shared.EmbeddingMatrix != nil {
		c.info.VocabSize, c.info.EmbeddingDim = shared.EmbeddingMatrix.Dims()
	}
	return c, nil
}

// Build constructs the architecture of f. Only the embedding source of
// shared (matrix and vocab size) is taken over; every other setting comes
// from the architecture defaults of f.
func Build[B tensor.Backend](f *config.File, shared textcls.Config, backend B) (textcls.Model[B], error) {
	switch f.Architecture {
	case config.TextCNN:
		cfg, err := f.CNNConfig()
		if err != nil {
			return nil, err
		}
		useEmbedding(&cfg.Config, shared)
		m, err := textcls.NewTextCNN(cfg, backend)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.TextRCNN:
		cfg, err := f.RCNNConfig()
		if err != nil {
			return nil, err
		}
		useEmbedding(&cfg.Config, shared)
		m, err := textcls.NewTextRCNN(cfg, backend)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown architecture %q", config.ErrModelFile, f.Architecture)
	}
}

func useEmbedding(cfg *textcls.Config, shared textcls.Config) {
	cfg.EmbeddingMatrix = shared.EmbeddingMatrix
	cfg.EmbeddingVocabSize = shared.EmbeddingVocabSize
}

func openEncoder(f *config.File) (vocab.Encoder, error) {
	switch {
	case f.Vocabulary != "":
		v, err := vocab.LoadFile(f.Vocabulary)
		if err != nil {
			return nil, err
		}
		return vocab.NewWordEncoder(v), nil
	case f.Tokenizer != "":
		enc, err := vocab.NewSubwordEncoder(f.Tokenizer)
		if err != nil {
			return nil, err
		}
		return enc, nil
	default:
		return nil, nil
	}
}

// embeddingSource fills in the matrix or the vocab size of cfg.
func embeddingSource(f *config.File, encoder vocab.Encoder, cfg *textcls.Config) error {
	if f.Embedding.Vectors != "" {
		words, ok := encoder.(*vocab.WordEncoder)
		if !ok {
			return fmt.Errorf("%w: embedding vectors need a vocabulary", config.ErrModelFile)
		}
		file, err := os.Open(f.Embedding.Vectors)
		if err != nil {
			return err
		}
		defer file.Close()
		matrix, err := embedding.LoadVectors(file, words.Vocabulary(), cfg.EmbeddingDim, f.Seed)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Embedding.Vectors, err)
		}
		cfg.EmbeddingMatrix = matrix
		cfg.EmbeddingVocabSize = 0
		return nil
	}

	if encoder == nil {
		return nil
	}
	switch {
	case cfg.EmbeddingVocabSize == 0:
		cfg.EmbeddingVocabSize = encoder.VocabSize()
	case cfg.EmbeddingVocabSize < encoder.VocabSize():
		return fmt.Errorf("%w: %d < %d", ErrVocabRange, cfg.EmbeddingVocabSize, encoder.VocabSize())
	}
	return nil
}

// Info describes the classifier.
func (c *Classifier[B]) Info() Info {
	info := c.info
	info.Labels = append([]string(nil), c.labels...)
	return info
}

// Model returns the underlying model.
func (c *Classifier[B]) Model() textcls.Model[B] { return c.model }

// Save writes the model weights with the labels and architecture as metadata.
func (c *Classifier[B]) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	metadata := map[string]string{
		"labels":      strings.Join(c.labels, ","),
		"max_seq_len": strconv.Itoa(c.model.MaxSeqLen()),
	}
	if c.info.Architecture != "" {
		metadata["architecture"] = c.info.Architecture
	}
	return textcls.Save(c.model, path, metadata)
}

// Summary lists the model layers.
func (c *Classifier[B]) Summary() []textcls.LayerSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.Summary()
}

// ClassifyTexts encodes and classifies texts.
func (c *Classifier[B]) ClassifyTexts(texts []string) ([]Result, error) {
	if c.encoder == nil {
		return nil, ErrNoEncoder
	}
	if len(texts) == 0 {
		return nil, ErrNoInput
	}
	rows, err := vocab.EncodeRows(c.encoder, texts, c.model.MaxSeqLen())
	if err != nil {
		return nil, err
	}
	return c.classify(rows)
}

// ClassifyIDs classifies pre-encoded rows. Short rows are padded and long
// rows truncated to the model sequence length.
func (c *Classifier[B]) ClassifyIDs(ids [][]int32) ([]Result, error) {
	if len(ids) == 0 {
		return nil, ErrNoInput
	}
	seqLen := c.model.MaxSeqLen()
	rows := make([][]int32, len(ids))
	for i, row := range ids {
		rows[i] = vocab.Fit(row, seqLen)
	}
	return c.classify(rows)
}

func (c *Classifier[B]) classify(rows [][]int32) ([]Result, error) {
	ids, err := vocab.RowsTensor(rows, c.model.MaxSeqLen(), c.backend)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	out, err := c.model.Call(ids)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	probs := out.Data()
	classes := len(c.labels)
	results := make([]Result, len(rows))
	for i := range results {
		row := probs[i*classes : (i+1)*classes]
		scores := make(map[string]float32, classes)
		top := 0
		for j, p := range row {
			scores[c.labels[j]] = p
			if p > row[top] {
				top = j
			}
		}
		results[i] = Result{Scores: scores, Top: c.labels[top]}
	}
	return results, nil
}

// Ranked returns the scores of r ordered from highest to lowest, ties by label.
func (r Result) Ranked() []Score {
	scores := make([]Score, 0, len(r.Scores))
	for label, p := range r.Scores {
		scores = append(scores, Score{Label: label, Value: p})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Value != scores[j].Value {
			return scores[i].Value > scores[j].Value
		}
		return strings.Compare(scores[i].Label, scores[j].Label) < 0
	})
	return scores
}

// Score is one label probability.
type Score struct {
	Label string
	Value float32
}
