package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/textcls/internal/config"
)

const modelYAML = `
architecture: textcnn
num_classes: 2
labels: [neg, pos]
embedding: {dim: 4}
max_seq_len: 5
cnn: {num_filters: 2, filter_sizes: [2]}
vocabulary: vocab.txt
`

func writeModel(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte("<PAD>\n<UNK>\ngood\nbad\n"), 0o600))
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(modelYAML), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCLI()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version)

	out, err = run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestInitThenPredict(t *testing.T) {
	path := writeModel(t)
	weights := filepath.Join(filepath.Dir(path), "model.born")

	out, err := run(t, "init", "-c", path, "-o", weights)
	require.NoError(t, err)
	assert.Contains(t, out, "TextCNN")
	assert.FileExists(t, weights)

	out, err = run(t, "predict", "-c", path, "-w", weights, "good movie", "bad")
	require.NoError(t, err)
	assert.Contains(t, out, "LABEL")
	assert.Contains(t, out, "good movie")
	assert.Contains(t, out, "neg")
	assert.Contains(t, out, "pos")

	out, err = run(t, "predict", "-c", path, "-w", weights, "--ids", "--top", "1", "2,3", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "2,3")
	assert.Equal(t, 1, strings.Count(out, "2,3"))

	_, err = run(t, "predict", "-c", path, "--ids", "2,x")
	assert.ErrorContains(t, err, "invalid token id")

	out, err = run(t, "summary", "-c", path, "--device", "autodiff")
	require.NoError(t, err)
	for _, want := range []string{"PARAMS", "embedding", "conv", "output", "total"} {
		assert.Contains(t, out, want)
	}
}

func TestOpenSession_Errors(t *testing.T) {
	f, err := config.LoadFile(writeModel(t))
	require.NoError(t, err)

	_, _, err = openSession("tpu", f, "")
	assert.ErrorIs(t, err, ErrDevice)

	s, release, err := openSession("CPU", f, "")
	require.NoError(t, err)
	defer release()
	assert.Equal(t, "TextCNN", s.Info().Name)

	_, err = run(t, "summary", "-c", "")
	assert.ErrorContains(t, err, "TEXTCLS_CONFIG")
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"1, 2,3", "", "7"})
	require.NoError(t, err)
	assert.Equal(t, [][]int32{{1, 2, 3}, nil, {7}}, ids)

	_, err = parseIDs([]string{"99999999999"})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
}
