// Package textcls implements the TextCNN and TextRCNN text classifiers.
//
// Both models map a batch of token id rows [batch, max_seq_len] to class
// probabilities [batch, num_classes]: independent sigmoids when the model
// is multi-label, a softmax otherwise. Layers are built once at
// construction and owned by the model instance.
//
// Example:
//
//	backend := cpu.New()
//	cfg := textcls.DefaultCNNConfig(3)
//	cfg.EmbeddingVocabSize = 20000
//	cfg.EmbeddingTrainable = true
//	model, err := textcls.NewTextCNN(cfg, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	probs, err := model.Call(ids)
package textcls

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/textcls/internal/embedding"
	"github.com/born-ml/textcls/internal/layers"
)

// Model is the contract shared by the classifiers.
type Model[B tensor.Backend] interface {
	// Name returns "TextCNN" or "TextRCNN".
	Name() string

	// Call maps ids [batch, max_seq_len] to probabilities [batch, num_classes].
	Call(ids *tensor.Tensor[int32, B]) (*tensor.Tensor[float32, B], error)

	// Parameters returns the trainable parameters. A frozen embedding
	// table is not included.
	Parameters() []*nn.Parameter[B]

	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(state map[string]*tensor.RawTensor) error

	NumClasses() int
	MaxSeqLen() int

	// SetTraining toggles dropout. Models start in inference mode.
	SetTraining(training bool)
	Training() bool

	// Summary lists the layers in call order.
	Summary() []LayerSummary
}

// LayerSummary describes one layer for display.
type LayerSummary struct {
	Name   string
	Layer  string
	Output tensor.Shape // without the batch dimension
	Params int
}

// base holds the pieces both architectures share.
type base[B tensor.Backend] struct {
	name     string
	cfg      Config
	embed    *embedding.Lookup[B]
	head     *head[B]
	training bool
}

func newBase[B tensor.Backend](name string, cfg Config, backend B) (*base[B], error) {
	embed, err := embedding.New(embedding.Options{
		Matrix:    cfg.EmbeddingMatrix,
		Dim:       cfg.EmbeddingDim,
		VocabSize: cfg.EmbeddingVocabSize,
		Trainable: cfg.EmbeddingTrainable,
		MaxSeqLen: cfg.MaxSeqLen,
	}, backend)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &base[B]{name: name, cfg: cfg, embed: embed}, nil
}

func (m *base[B]) Name() string    { return m.name }
func (m *base[B]) NumClasses() int { return m.cfg.NumClasses }
func (m *base[B]) MaxSeqLen() int  { return m.cfg.MaxSeqLen }
func (m *base[B]) Training() bool  { return m.training }

// Config returns a copy of the construction configuration.
func (m *base[B]) Config() Config { return m.cfg.clone() }

// Embedding returns the lookup table.
func (m *base[B]) Embedding() *embedding.Lookup[B] { return m.embed }

func (m *base[B]) SetTraining(training bool) {
	m.training = training
	m.head.setTraining(training)
}

// embedInput checks ids and returns their vectors [batch, max_seq_len, dim].
func (m *base[B]) embedInput(ids *tensor.Tensor[int32, B]) (*tensor.Tensor[float32, B], error) {
	shape := ids.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("%s: %w, got shape %v", m.name, ErrInputRank, shape)
	}
	if shape[1] != m.cfg.MaxSeqLen {
		return nil, fmt.Errorf("%s: %w: expected %d, got %d", m.name, ErrInputShape, m.cfg.MaxSeqLen, shape[1])
	}
	if shape[0] == 0 {
		return nil, fmt.Errorf("%s: %w: empty batch", m.name, ErrInputShape)
	}
	x, err := m.embed.Forward(ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}
	return x, nil
}

func (m *base[B]) embeddingSummary() LayerSummary {
	params := 0
	if m.embed.Trainable() {
		params = layers.CountParams(m.embed.Parameters())
	}
	return LayerSummary{
		Name:   "embedding",
		Layer:  m.embed.String(),
		Output: tensor.Shape{m.cfg.MaxSeqLen, m.embed.Dim()},
		Params: params,
	}
}

// head is the dense stack after feature extraction: optional input
// dropout, hidden layers each followed by dropout, then the output layer.
type head[B tensor.Backend] struct {
	inputDropout *layers.Dropout[B]
	hidden       []*layers.Dense[B]
	dropouts     []*layers.Dropout[B]
	output       *layers.Dense[B]
}

// newHead builds the stack for features of width in. Dropout layers are
// omitted when the rate is zero.
func newHead[B tensor.Backend](cfg Config, in int, inputDropout bool, backend B) *head[B] {
	rng := rand.New(rand.NewSource(cfg.Seed))
	h := &head[B]{}
	if inputDropout && cfg.Dropout > 0 {
		h.inputDropout = layers.NewDropout[B](cfg.Dropout, rng)
	}
	for _, units := range cfg.NumHiddenUnits {
		h.hidden = append(h.hidden, layers.NewDense(in, units, cfg.HiddenActivation, backend))
		var d *layers.Dropout[B]
		if cfg.Dropout > 0 {
			d = layers.NewDropout[B](cfg.Dropout, rng)
		}
		h.dropouts = append(h.dropouts, d)
		in = units
	}
	out := layers.Softmax
	if cfg.MultiLabel {
		out = layers.Sigmoid
	}
	h.output = layers.NewDense(in, cfg.NumClasses, out, backend)
	return h
}

func (h *head[B]) forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if h.inputDropout != nil {
		x = h.inputDropout.Forward(x)
	}
	for i, dense := range h.hidden {
		x = dense.Forward(x)
		if h.dropouts[i] != nil {
			x = h.dropouts[i].Forward(x)
		}
	}
	return h.output.Forward(x)
}

func (h *head[B]) setTraining(training bool) {
	if h.inputDropout != nil {
		h.inputDropout.SetTraining(training)
	}
	for _, d := range h.dropouts {
		if d != nil {
			d.SetTraining(training)
		}
	}
}

func (h *head[B]) parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, dense := range h.hidden {
		params = append(params, dense.Parameters()...)
	}
	return append(params, h.output.Parameters()...)
}

func (h *head[B]) stateDict(state map[string]*tensor.RawTensor) {
	for i, dense := range h.hidden {
		layers.MergeState(state, fmt.Sprintf("hidden.%d", i), dense.StateDict())
	}
	layers.MergeState(state, "output", h.output.StateDict())
}

func (h *head[B]) loadStateDict(state map[string]*tensor.RawTensor) error {
	for i, dense := range h.hidden {
		prefix := fmt.Sprintf("hidden.%d", i)
		if err := dense.LoadStateDict(layers.SubState(state, prefix)); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
	}
	if err := h.output.LoadStateDict(layers.SubState(state, "output")); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

func (h *head[B]) summary() []LayerSummary {
	var rows []LayerSummary
	if h.inputDropout != nil {
		rows = append(rows, LayerSummary{
			Name:   "dropout",
			Layer:  h.inputDropout.String(),
			Output: tensor.Shape{h.firstIn()},
		})
	}
	for i, dense := range h.hidden {
		rows = append(rows, LayerSummary{
			Name:   fmt.Sprintf("hidden.%d", i),
			Layer:  dense.String(),
			Output: tensor.Shape{dense.OutFeatures()},
			Params: layers.CountParams(dense.Parameters()),
		})
		if d := h.dropouts[i]; d != nil {
			rows = append(rows, LayerSummary{
				Name:   fmt.Sprintf("hidden.%d.dropout", i),
				Layer:  d.String(),
				Output: tensor.Shape{dense.OutFeatures()},
			})
		}
	}
	return append(rows, LayerSummary{
		Name:   "output",
		Layer:  h.output.String(),
		Output: tensor.Shape{h.output.OutFeatures()},
		Params: layers.CountParams(h.output.Parameters()),
	})
}

func (h *head[B]) firstIn() int {
	if len(h.hidden) > 0 {
		return h.hidden[0].InFeatures()
	}
	return h.output.InFeatures()
}

// loadEmbedding restores the table from the "embedding." entries.
func (m *base[B]) loadEmbedding(state map[string]*tensor.RawTensor) error {
	if err := m.embed.LoadStateDict(layers.SubState(state, "embedding")); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	return nil
}

// baseState returns the embedding and head entries.
func (m *base[B]) baseState() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	layers.MergeState(state, "embedding", m.embed.StateDict())
	m.head.stateDict(state)
	return state
}

// TotalParams returns the number of trainable scalars of m.
func TotalParams[B tensor.Backend](m Model[B]) int {
	return layers.CountParams(m.Parameters())
}
