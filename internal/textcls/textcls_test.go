package textcls

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/textcls/internal/embedding"
	"github.com/born-ml/textcls/internal/layers"
)

type cpuModel = Model[*cpu.Backend]

func smallCNN(numClasses int, multiLabel bool) CNNConfig {
	cfg := DefaultCNNConfig(numClasses)
	cfg.EmbeddingDim = 8
	cfg.EmbeddingVocabSize = 20
	cfg.EmbeddingTrainable = true
	cfg.MaxSeqLen = 10
	cfg.NumFilters = 4
	cfg.FilterSizes = []int{2, 3}
	cfg.MultiLabel = multiLabel
	return cfg
}

func smallRCNN(numClasses int, multiLabel bool) RCNNConfig {
	cfg := DefaultRCNNConfig(numClasses)
	cfg.EmbeddingDim = 4
	cfg.EmbeddingVocabSize = 12
	cfg.EmbeddingTrainable = true
	cfg.MaxSeqLen = 5
	cfg.RNNHiddenUnits = 8
	cfg.ConvHiddenUnits = 6
	cfg.NumHiddenUnits = []int{5}
	cfg.MultiLabel = multiLabel
	return cfg
}

func tokenIDs(t *testing.T, backend *cpu.Backend, shape tensor.Shape, data ...int32) *tensor.Tensor[int32, *cpu.Backend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, backend)
	require.NoError(t, err)
	return x
}

// checkProbabilities asserts sigmoid range or softmax row sums.
func checkProbabilities(t *testing.T, out *tensor.Tensor[float32, *cpu.Backend], batch, classes int, multiLabel bool) {
	t.Helper()
	require.True(t, out.Shape().Equal(tensor.Shape{batch, classes}), "got shape %v", out.Shape())
	data := out.Data()
	for row := 0; row < batch; row++ {
		var sum float64
		for c := 0; c < classes; c++ {
			v := data[row*classes+c]
			assert.GreaterOrEqual(t, v, float32(0))
			assert.LessOrEqual(t, v, float32(1))
			sum += float64(v)
		}
		if !multiLabel {
			assert.InDelta(t, 1, sum, 1e-5, "row %d", row)
		}
	}
}

func TestTextCNN_Scenario(t *testing.T) {
	backend := cpu.New()
	for _, multiLabel := range []bool{true, false} {
		name := "softmax"
		if multiLabel {
			name = "sigmoid"
		}
		t.Run(name, func(t *testing.T) {
			model, err := NewTextCNN(smallCNN(3, multiLabel), backend)
			require.NoError(t, err)
			assert.Equal(t, "TextCNN", model.Name())

			ids := tokenIDs(t, backend, tensor.Shape{2, 10},
				2, 5, 7, 1, 3, 0, 0, 0, 0, 0,
				19, 18, 4, 4, 4, 9, 11, 13, 2, 1,
			)
			out, err := model.Call(ids)
			require.NoError(t, err)
			checkProbabilities(t, out, 2, 3, multiLabel)
		})
	}
}

func TestTextRCNN_Scenario(t *testing.T) {
	backend := cpu.New()
	for _, multiLabel := range []bool{true, false} {
		model, err := NewTextRCNN(smallRCNN(4, multiLabel), backend)
		require.NoError(t, err)
		assert.Equal(t, "TextRCNN", model.Name())

		out, err := model.Call(tokenIDs(t, backend, tensor.Shape{1, 5}, 3, 7, 1, 0, 0))
		require.NoError(t, err)
		checkProbabilities(t, out, 1, 4, multiLabel)
	}
}

// TestTextRCNN_ContextAlignment checks that position t of the context holds
// the forward state, the embedding and the backward state of position t.
func TestTextRCNN_ContextAlignment(t *testing.T) {
	backend := cpu.New()
	cfg := smallRCNN(2, false)
	m, err := NewTextRCNN(cfg, backend)
	require.NoError(t, err)

	const batch, seqLen = 2, 5
	ids := tokenIDs(t, backend, tensor.Shape{batch, seqLen},
		3, 7, 1, 4, 0,
		9, 2, 2, 5, 11)
	x, err := m.embedInput(ids)
	require.NoError(t, err)

	units, dim := cfg.RNNHiddenUnits, cfg.EmbeddingDim
	width := 2*units + dim
	ctx := m.context(x)
	require.True(t, ctx.Shape().Equal(tensor.Shape{batch, seqLen, width}), "got shape %v", ctx.Shape())

	// A forward LSTM with the backward weights, run over the reversed
	// sequence, reaches position t at step seqLen-1-t.
	mirror := layers.NewLSTM(dim, units, false, backend)
	require.NoError(t, mirror.LoadStateDict(m.backward.StateDict()))

	left := m.forward.Forward(x).Data()
	emb := x.Data()
	right := mirror.Forward(layers.ReverseTime(x)).Data()
	got := ctx.Data()

	for b := 0; b < batch; b++ {
		for pos := 0; pos < seqLen; pos++ {
			row := got[(b*seqLen+pos)*width : (b*seqLen+pos+1)*width]
			mirrored := b*seqLen + seqLen - 1 - pos
			assert.InDeltaSlice(t, left[(b*seqLen+pos)*units:(b*seqLen+pos+1)*units], row[:units], 1e-6, "forward b=%d t=%d", b, pos)
			assert.InDeltaSlice(t, emb[(b*seqLen+pos)*dim:(b*seqLen+pos+1)*dim], row[units:units+dim], 1e-6, "embedding b=%d t=%d", b, pos)
			assert.InDeltaSlice(t, right[mirrored*units:(mirrored+1)*units], row[units+dim:], 1e-6, "backward b=%d t=%d", b, pos)
		}
	}
}

func TestModels_AllPaddingInput(t *testing.T) {
	backend := cpu.New()
	cnn, err := NewTextCNN(smallCNN(2, false), backend)
	require.NoError(t, err)
	rcnn, err := NewTextRCNN(smallRCNN(2, true), backend)
	require.NoError(t, err)

	for _, m := range []cpuModel{cnn, rcnn} {
		t.Run(m.Name(), func(t *testing.T) {
			ids := tensor.Zeros[int32](tensor.Shape{3, m.MaxSeqLen()}, backend)
			out, err := m.Call(ids)
			require.NoError(t, err)
			checkProbabilities(t, out, 3, m.NumClasses(), m == cpuModel(rcnn))
		})
	}
}

func TestModels_DefaultConfigs(t *testing.T) {
	backend := cpu.New()

	cnnCfg := DefaultCNNConfig(2)
	cnnCfg.EmbeddingDim = 6
	cnnCfg.EmbeddingVocabSize = 10
	cnnCfg.EmbeddingTrainable = true
	cnnCfg.MaxSeqLen = 8
	cnnCfg.NumFilters = 3
	cnn, err := NewTextCNN(cnnCfg, backend)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4, 5}, cnn.FilterSizes())

	out, err := cnn.Call(tensor.Zeros[int32](tensor.Shape{1, 8}, backend))
	require.NoError(t, err)
	checkProbabilities(t, out, 1, 2, true)
}

func TestNew_ConfigErrors(t *testing.T) {
	backend := cpu.New()

	noVocab := smallCNN(2, false)
	noVocab.EmbeddingVocabSize = 0
	_, err := NewTextCNN(noVocab, backend)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, ErrMissingVocabSize)

	frozen := smallRCNN(2, false)
	frozen.EmbeddingTrainable = false
	_, err = NewTextRCNN(frozen, backend)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, ErrFrozenScratchEmbedding)

	wide := smallCNN(2, false)
	wide.FilterSizes = []int{3, 11}
	model, err := NewTextCNN(wide, backend)
	assert.Nil(t, model)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, ErrPoolWindow)

	exact := smallCNN(2, false)
	exact.FilterSizes = []int{10}
	_, err = NewTextCNN(exact, backend)
	assert.NoError(t, err, "filter equal to max_seq_len leaves a window of one")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CNNConfig)
	}{
		{"zero classes", func(c *CNNConfig) { c.NumClasses = 0 }},
		{"zero seq len", func(c *CNNConfig) { c.MaxSeqLen = 0 }},
		{"negative dropout", func(c *CNNConfig) { c.Dropout = -0.1 }},
		{"dropout above one", func(c *CNNConfig) { c.Dropout = 1.5 }},
		{"NaN dropout", func(c *CNNConfig) { c.Dropout = math.NaN() }},
		{"bad pooling", func(c *CNNConfig) { c.PoolingStrategy = 7 }},
		{"bad activation", func(c *CNNConfig) { c.HiddenActivation = 42 }},
		{"zero hidden units", func(c *CNNConfig) { c.NumHiddenUnits = []int{4, 0} }},
		{"zero embedding dim", func(c *CNNConfig) { c.EmbeddingDim = 0 }},
		{"zero filters", func(c *CNNConfig) { c.NumFilters = 0 }},
		{"no filter sizes", func(c *CNNConfig) { c.FilterSizes = nil }},
		{"zero filter size", func(c *CNNConfig) { c.FilterSizes = []int{0} }},
		{"single row matrix", func(c *CNNConfig) { c.EmbeddingMatrix = mat.NewDense(1, 8, nil) }},
		{"matrix width mismatch", func(c *CNNConfig) { c.EmbeddingMatrix = mat.NewDense(20, 5, nil) }},
		{"matrix height mismatch", func(c *CNNConfig) { c.EmbeddingMatrix = mat.NewDense(21, 8, nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallCNN(2, false)
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	nan := smallCNN(2, false)
	nan.Dropout = math.NaN()
	m, err := NewTextCNN(nan, cpu.New())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, m)

	rcnn := smallRCNN(2, false)
	rcnn.RNNHiddenUnits = 0
	assert.ErrorIs(t, rcnn.Validate(), ErrInvalidConfig)
	rcnn = smallRCNN(2, false)
	rcnn.ConvHiddenUnits = -1
	assert.ErrorIs(t, rcnn.Validate(), ErrInvalidConfig)

	assert.NoError(t, smallCNN(2, false).Validate())
	assert.NoError(t, smallRCNN(2, false).Validate())
}

func TestModels_CallShapeErrors(t *testing.T) {
	backend := cpu.New()
	cnn, err := NewTextCNN(smallCNN(2, true), backend)
	require.NoError(t, err)
	rcnn, err := NewTextRCNN(smallRCNN(2, true), backend)
	require.NoError(t, err)

	for _, m := range []cpuModel{cnn, rcnn} {
		t.Run(m.Name(), func(t *testing.T) {
			seqLen := m.MaxSeqLen()

			_, err := m.Call(tensor.Zeros[int32](tensor.Shape{seqLen}, backend))
			assert.ErrorIs(t, err, ErrInputRank, "rank 1")

			_, err = m.Call(tensor.Zeros[int32](tensor.Shape{1, seqLen, 1}, backend))
			assert.ErrorIs(t, err, ErrInputRank, "rank 3")

			_, err = m.Call(tensor.Zeros[int32](tensor.Shape{1, seqLen + 1}, backend))
			assert.ErrorIs(t, err, ErrInputShape)

			bad := make([]int32, seqLen)
			bad[0] = 1000
			_, err = m.Call(tokenIDs(t, backend, tensor.Shape{1, seqLen}, bad...))
			assert.ErrorIs(t, err, ErrTokenRange)
		})
	}
}

func TestTextCNN_PretrainedMatrix(t *testing.T) {
	backend := cpu.New()
	matrix := mat.NewDense(6, 3, nil)
	for r := 1; r < 6; r++ {
		matrix.SetRow(r, []float64{float64(r), -float64(r), 0.5})
	}

	cfg := smallCNN(2, false)
	cfg.EmbeddingMatrix = matrix
	cfg.EmbeddingDim = 0
	cfg.EmbeddingVocabSize = 0
	cfg.EmbeddingTrainable = false
	model, err := NewTextCNN(cfg, backend)
	require.NoError(t, err)

	assert.Equal(t, 6, model.Embedding().VocabSize())
	assert.Equal(t, 3, model.Embedding().Dim())
	for _, p := range model.Parameters() {
		assert.NotSame(t, model.Embedding().Weight(), p, "frozen table must not be trainable")
	}
	assert.Contains(t, model.StateDict(), "embedding.weight")

	// The model keeps its own copy.
	matrix.Set(1, 0, 100)
	assert.Equal(t, float32(1), model.Embedding().Weight().Tensor().Data()[3])
	assert.Equal(t, float64(1), model.Config().EmbeddingMatrix.At(1, 0))

	trainable := cfg
	trainable.EmbeddingTrainable = true
	withTable, err := NewTextCNN(trainable, backend)
	require.NoError(t, err)
	assert.Equal(t, len(model.Parameters())+1, len(withTable.Parameters()))
}

func TestModels_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	ids := tokenIDs(t, backend, tensor.Shape{1, 5}, 4, 2, 9, 1, 0)

	src, err := NewTextRCNN(smallRCNN(3, false), backend)
	require.NoError(t, err)
	dst, err := NewTextRCNN(smallRCNN(3, false), backend)
	require.NoError(t, err)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	want, err := src.Call(ids)
	require.NoError(t, err)
	got, err := dst.Call(ids)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-6)

	other, err := NewTextCNN(smallCNN(3, false), backend)
	require.NoError(t, err)
	assert.Error(t, other.LoadStateDict(src.StateDict()))
}

func TestCheckpoint_SaveLoad(t *testing.T) {
	backend := cpu.New()
	path := filepath.Join(t.TempDir(), "model.born")
	cfg := smallCNN(2, false)

	src, err := NewTextCNN(cfg, backend)
	require.NoError(t, err)
	require.NoError(t, Save[*cpu.Backend](src, path, map[string]string{"labels": "neg,pos"}))

	dst, err := NewTextCNN(cfg, backend)
	require.NoError(t, err)
	info, err := Load[*cpu.Backend](dst, path, backend)
	require.NoError(t, err)
	assert.Equal(t, "TextCNN", info.ModelType)
	assert.Equal(t, "neg,pos", info.Metadata["labels"])

	ids := tensor.Zeros[int32](tensor.Shape{1, 10}, backend)
	want, err := src.Call(ids)
	require.NoError(t, err)
	got, err := dst.Call(ids)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-6)

	rcnn, err := NewTextRCNN(smallRCNN(2, false), backend)
	require.NoError(t, err)
	_, err = Load[*cpu.Backend](rcnn, path, backend)
	assert.Error(t, err)

	_, err = Load[*cpu.Backend](dst, filepath.Join(t.TempDir(), "missing.born"), backend)
	assert.Error(t, err)
}

// renamed saves a model under another type name.
type renamed struct {
	cpuModel
}

func (renamed) Name() string { return "OtherModel" }

func fill(m interface{ Embedding() *embedding.Lookup[*cpu.Backend] }, v float32) {
	data := m.Embedding().Weight().Tensor().Data()
	for i := range data {
		data[i] = v
	}
}

func assertSameState(t *testing.T, want, got map[string]*tensor.RawTensor) {
	t.Helper()
	require.Equal(t, layers.StateKeys(want), layers.StateKeys(got))
	for name, raw := range want {
		assert.Equal(t, raw.AsFloat32(), got[name].AsFloat32(), name)
	}
}

func TestCheckpoint_FailedLoadKeepsWeights(t *testing.T) {
	backend := cpu.New()
	dir := t.TempDir()

	dst, err := NewTextCNN(smallCNN(2, false), backend)
	require.NoError(t, err)
	before, err := layers.CloneState(dst.StateDict())
	require.NoError(t, err)

	// Same embedding geometry, different architecture.
	rcnnCfg := smallRCNN(2, false)
	rcnnCfg.EmbeddingDim = 8
	rcnnCfg.EmbeddingVocabSize = 20
	rcnn, err := NewTextRCNN(rcnnCfg, backend)
	require.NoError(t, err)
	fill(rcnn, 7)
	rcnnPath := filepath.Join(dir, "rcnn.born")
	require.NoError(t, Save[*cpu.Backend](rcnn, rcnnPath, nil))

	_, err = Load[*cpu.Backend](dst, rcnnPath, backend)
	require.Error(t, err)
	assertSameState(t, before, dst.StateDict())

	// Same keys and shapes, different model type.
	other, err := NewTextCNN(smallCNN(2, false), backend)
	require.NoError(t, err)
	fill(other, 7)
	otherPath := filepath.Join(dir, "other.born")
	require.NoError(t, Save[*cpu.Backend](renamed{other}, otherPath, nil))

	info, err := Load[*cpu.Backend](dst, otherPath, backend)
	assert.ErrorIs(t, err, ErrCheckpointType)
	assert.Equal(t, "OtherModel", info.ModelType)
	assertSameState(t, before, dst.StateDict())
}

func TestModels_LoadStateDictChecksFirst(t *testing.T) {
	backend := cpu.New()
	m, err := NewTextRCNN(smallRCNN(2, false), backend)
	require.NoError(t, err)
	before, err := layers.CloneState(m.StateDict())
	require.NoError(t, err)

	state, err := layers.CloneState(m.StateDict())
	require.NoError(t, err)
	for _, raw := range state {
		for i := range raw.AsFloat32() {
			raw.AsFloat32()[i] = 3
		}
	}
	delete(state, "output.bias")

	assert.Error(t, m.LoadStateDict(state))
	assertSameState(t, before, m.StateDict())
}

func TestModels_Summary(t *testing.T) {
	backend := cpu.New()
	cnn, err := NewTextCNN(smallCNN(2, false), backend)
	require.NoError(t, err)
	rcnn, err := NewTextRCNN(smallRCNN(2, false), backend)
	require.NoError(t, err)

	for _, m := range []cpuModel{cnn, rcnn} {
		rows := m.Summary()
		require.NotEmpty(t, rows)
		assert.Equal(t, "embedding", rows[0].Name)
		last := rows[len(rows)-1]
		assert.Equal(t, "output", last.Name)
		assert.True(t, last.Output.Equal(tensor.Shape{m.NumClasses()}))

		total := 0
		for _, r := range rows {
			total += r.Params
		}
		assert.Equal(t, TotalParams(m), total, m.Name())
	}
}

func TestModels_TrainingMode(t *testing.T) {
	backend := cpu.New()
	model, err := NewTextCNN(smallCNN(2, false), backend)
	require.NoError(t, err)

	assert.False(t, model.Training())
	ids := tensor.Zeros[int32](tensor.Shape{1, 10}, backend)
	a, err := model.Call(ids)
	require.NoError(t, err)
	b, err := model.Call(ids)
	require.NoError(t, err)
	assert.Equal(t, a.Data(), b.Data(), "inference is deterministic")

	model.SetTraining(true)
	assert.True(t, model.Training())
	out, err := model.Call(ids)
	require.NoError(t, err)
	checkProbabilities(t, out, 1, 2, false)
}

func TestPoolingStrategy(t *testing.T) {
	p, err := ParsePoolingStrategy("reduce_mean")
	require.NoError(t, err)
	assert.Equal(t, ReduceMean, p)

	text, err := ReduceMax.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "REDUCE_MAX", string(text))

	var q PoolingStrategy
	require.NoError(t, q.UnmarshalText([]byte("REDUCE_MEAN")))
	assert.Equal(t, ReduceMean, q)

	_, err = ParsePoolingStrategy("REDUCE_SUM")
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	// Both strategies build the same architecture.
	backend := cpu.New()
	cfg := smallCNN(2, false)
	cfg.PoolingStrategy = ReduceMean
	model, err := NewTextCNN(cfg, backend)
	require.NoError(t, err)
	assert.Equal(t, ReduceMean, model.Config().PoolingStrategy)
}
