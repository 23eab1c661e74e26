package textcls

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/textcls/internal/layers"
)

// TextRCNN is a recurrent convolutional text classifier (Lai et al., 2015).
//
// Each position is represented by its left context (forward LSTM), its own
// embedding and its right context (backward LSTM realigned in time):
//
//	ids [N, L] -> embedding [N, L, E]
//	  -> concat(forward LSTM, embedding, reversed backward LSTM) [N, L, 2R+E]
//	  -> Conv1D(kernel 1) + tanh [N, L, C] -> max over L [N, C]
//	  -> hidden dense layers (+dropout) -> output dense (sigmoid | softmax)
type TextRCNN[B tensor.Backend] struct {
	*base[B]
	rnnUnits  int
	convUnits int
	forward   *layers.LSTM[B]
	backward  *layers.LSTM[B]
	conv      *layers.Conv1D[B]
}

// NewTextRCNN validates cfg and builds the model.
func NewTextRCNN[B tensor.Backend](cfg RCNNConfig, backend B) (*TextRCNN[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	shared := cfg.Config.clone()
	b, err := newBase("TextRCNN", shared, backend)
	if err != nil {
		return nil, err
	}

	dim := b.embed.Dim()
	m := &TextRCNN[B]{
		base:      b,
		rnnUnits:  cfg.RNNHiddenUnits,
		convUnits: cfg.ConvHiddenUnits,
		forward:   layers.NewLSTM(dim, cfg.RNNHiddenUnits, false, backend),
		backward:  layers.NewLSTM(dim, cfg.RNNHiddenUnits, true, backend),
		conv:      layers.NewConv1D(2*cfg.RNNHiddenUnits+dim, cfg.ConvHiddenUnits, 1, backend),
	}
	m.head = newHead(shared, cfg.ConvHiddenUnits, false, backend)
	return m, nil
}

// Call maps ids [batch, max_seq_len] to probabilities [batch, num_classes].
func (m *TextRCNN[B]) Call(ids *tensor.Tensor[int32, B]) (*tensor.Tensor[float32, B], error) {
	x, err := m.embedInput(ids)
	if err != nil {
		return nil, err
	}

	h := layers.Activate(layers.Tanh, m.conv.Forward(m.context(x)))
	return m.head.forward(layers.GlobalMaxPool1D(h)), nil
}

// context joins, per position t, the forward state after x[0..t], the
// embedding x[t] and the backward state after x[t..end]:
// [batch, seq_len, 2*rnn_units+embedding_dim].
func (m *TextRCNN[B]) context(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	left := m.forward.Forward(x)
	right := layers.ReverseTime(m.backward.Forward(x))
	return tensor.Cat([]*tensor.Tensor[float32, B]{left, x, right}, 2)
}

// Parameters returns the trainable parameters in call order.
func (m *TextRCNN[B]) Parameters() []*nn.Parameter[B] {
	params := m.embed.Parameters()
	params = append(params, m.forward.Parameters()...)
	params = append(params, m.backward.Parameters()...)
	params = append(params, m.conv.Parameters()...)
	return append(params, m.head.parameters()...)
}

// StateDict returns every weight, including a frozen embedding table.
//
// Keys: embedding.weight, lstm_forward.*, lstm_backward.*, conv.*,
// hidden.<i>.*, output.*.
func (m *TextRCNN[B]) StateDict() map[string]*tensor.RawTensor {
	state := m.baseState()
	layers.MergeState(state, "lstm_forward", m.forward.StateDict())
	layers.MergeState(state, "lstm_backward", m.backward.StateDict())
	layers.MergeState(state, "conv", m.conv.StateDict())
	return state
}

// LoadStateDict restores weights written by StateDict. state is checked in
// full before any weight is overwritten.
func (m *TextRCNN[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := layers.CheckState(m.StateDict(), state); err != nil {
		return err
	}
	if err := m.loadEmbedding(state); err != nil {
		return err
	}
	parts := []struct {
		prefix string
		load   func(map[string]*tensor.RawTensor) error
	}{
		{"lstm_forward", m.forward.LoadStateDict},
		{"lstm_backward", m.backward.LoadStateDict},
		{"conv", m.conv.LoadStateDict},
	}
	for _, p := range parts {
		if err := p.load(layers.SubState(state, p.prefix)); err != nil {
			return fmt.Errorf("%s: %w", p.prefix, err)
		}
	}
	return m.head.loadStateDict(state)
}

// RNNHiddenUnits returns the units of each LSTM.
func (m *TextRCNN[B]) RNNHiddenUnits() int { return m.rnnUnits }

// ConvHiddenUnits returns the width of the kernel-1 convolution.
func (m *TextRCNN[B]) ConvHiddenUnits() int { return m.convUnits }

// Summary lists the layers in call order.
func (m *TextRCNN[B]) Summary() []LayerSummary {
	seqLen, dim := m.cfg.MaxSeqLen, m.embed.Dim()
	rows := []LayerSummary{
		m.embeddingSummary(),
		{
			Name:   "lstm_forward",
			Layer:  m.forward.String(),
			Output: tensor.Shape{seqLen, m.rnnUnits},
			Params: layers.CountParams(m.forward.Parameters()),
		},
		{
			Name:   "lstm_backward",
			Layer:  m.backward.String() + " + reverse",
			Output: tensor.Shape{seqLen, m.rnnUnits},
			Params: layers.CountParams(m.backward.Parameters()),
		},
		{
			Name:   "concat",
			Layer:  "Concatenate(forward, embedding, backward)",
			Output: tensor.Shape{seqLen, 2*m.rnnUnits + dim},
		},
		{
			Name:   "conv",
			Layer:  m.conv.String() + " + tanh",
			Output: tensor.Shape{seqLen, m.convUnits},
			Params: layers.CountParams(m.conv.Parameters()),
		},
		{
			Name:   "pool",
			Layer:  "GlobalMaxPool1D",
			Output: tensor.Shape{m.convUnits},
		},
	}
	return append(rows, m.head.summary()...)
}

// String returns a string representation of the model.
func (m *TextRCNN[B]) String() string {
	return fmt.Sprintf("TextRCNN(classes=%d, seq_len=%d, rnn=%d, conv=%d)",
		m.cfg.NumClasses, m.cfg.MaxSeqLen, m.rnnUnits, m.convUnits)
}
