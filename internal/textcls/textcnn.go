package textcls

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/textcls/internal/layers"
)

// TextCNN is a convolutional text classifier (Kim, 2014).
//
// Architecture:
//
//	ids [N, L] -> embedding [N, L, E]
//	  -> per filter size w: Conv1D(E -> F, w) + ReLU -> MaxPool1D(L-w+1) -> [N, F]
//	  -> concat [N, F*len(sizes)] -> dropout
//	  -> hidden dense layers (+dropout) -> output dense (sigmoid | softmax)
type TextCNN[B tensor.Backend] struct {
	*base[B]
	numFilters  int
	filterSizes []int
	branches    []cnnBranch[B]
}

type cnnBranch[B tensor.Backend] struct {
	conv *layers.Conv1D[B]
	pool *layers.MaxPool1D[B]
}

// NewTextCNN validates cfg and builds the model.
func NewTextCNN[B tensor.Backend](cfg CNNConfig, backend B) (*TextCNN[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	shared := cfg.Config.clone()
	b, err := newBase("TextCNN", shared, backend)
	if err != nil {
		return nil, err
	}

	m := &TextCNN[B]{
		base:        b,
		numFilters:  cfg.NumFilters,
		filterSizes: append([]int(nil), cfg.FilterSizes...),
	}
	dim := b.embed.Dim()
	for _, w := range m.filterSizes {
		m.branches = append(m.branches, cnnBranch[B]{
			conv: layers.NewConv1D(dim, cfg.NumFilters, w, backend),
			pool: layers.NewMaxPool1D[B](shared.MaxSeqLen - w + 1),
		})
	}
	m.head = newHead(shared, cfg.NumFilters*len(m.filterSizes), true, backend)
	return m, nil
}

// Call maps ids [batch, max_seq_len] to probabilities [batch, num_classes].
func (m *TextCNN[B]) Call(ids *tensor.Tensor[int32, B]) (*tensor.Tensor[float32, B], error) {
	x, err := m.embedInput(ids)
	if err != nil {
		return nil, err
	}
	batch := x.Shape()[0]

	features := make([]*tensor.Tensor[float32, B], len(m.branches))
	for i, br := range m.branches {
		h := layers.Activate(layers.ReLU, br.conv.Forward(x))
		features[i] = br.pool.Forward(h).Reshape(batch, m.numFilters)
	}
	merged := features[0]
	if len(features) > 1 {
		merged = tensor.Cat(features, 1)
	}
	return m.head.forward(merged), nil
}

// Parameters returns the trainable parameters in call order.
func (m *TextCNN[B]) Parameters() []*nn.Parameter[B] {
	params := m.embed.Parameters()
	for _, br := range m.branches {
		params = append(params, br.conv.Parameters()...)
	}
	return append(params, m.head.parameters()...)
}

// StateDict returns every weight, including a frozen embedding table.
//
// Keys: embedding.weight, conv.<i>.<w>.{weight,bias}, hidden.<i>.{weight,bias},
// output.{weight,bias}.
func (m *TextCNN[B]) StateDict() map[string]*tensor.RawTensor {
	state := m.baseState()
	for i, br := range m.branches {
		layers.MergeState(state, convPrefix(m.filterSizes[i], i), br.conv.StateDict())
	}
	return state
}

// LoadStateDict restores weights written by StateDict. state is checked in
// full before any weight is overwritten.
func (m *TextCNN[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := layers.CheckState(m.StateDict(), state); err != nil {
		return err
	}
	if err := m.loadEmbedding(state); err != nil {
		return err
	}
	for i, br := range m.branches {
		prefix := convPrefix(m.filterSizes[i], i)
		if err := br.conv.LoadStateDict(layers.SubState(state, prefix)); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
	}
	return m.head.loadStateDict(state)
}

// convPrefix keys a branch by position and width so repeated sizes stay distinct.
func convPrefix(size, index int) string {
	return fmt.Sprintf("conv.%d.%d", index, size)
}

// FilterSizes returns the convolution widths in branch order.
func (m *TextCNN[B]) FilterSizes() []int {
	return append([]int(nil), m.filterSizes...)
}

// NumFilters returns the filters per branch.
func (m *TextCNN[B]) NumFilters() int { return m.numFilters }

// Summary lists the layers in call order.
func (m *TextCNN[B]) Summary() []LayerSummary {
	rows := []LayerSummary{m.embeddingSummary()}
	for i, br := range m.branches {
		w := m.filterSizes[i]
		rows = append(rows,
			LayerSummary{
				Name:   fmt.Sprintf("conv.%d", i),
				Layer:  br.conv.String() + " + relu",
				Output: tensor.Shape{m.cfg.MaxSeqLen - w + 1, m.numFilters},
				Params: layers.CountParams(br.conv.Parameters()),
			},
			LayerSummary{
				Name:   fmt.Sprintf("pool.%d", i),
				Layer:  br.pool.String(),
				Output: tensor.Shape{m.numFilters},
			},
		)
	}
	rows = append(rows, LayerSummary{
		Name:   "concat",
		Layer:  "Concatenate",
		Output: tensor.Shape{m.numFilters * len(m.branches)},
	})
	return append(rows, m.head.summary()...)
}

// String returns a string representation of the model.
func (m *TextCNN[B]) String() string {
	return fmt.Sprintf("TextCNN(classes=%d, seq_len=%d, filters=%d, sizes=%v)",
		m.cfg.NumClasses, m.cfg.MaxSeqLen, m.numFilters, m.filterSizes)
}
