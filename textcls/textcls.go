// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package textcls

import (
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/textcls/internal/layers"
	"github.com/born-ml/textcls/internal/textcls"
)

// Model is the contract shared by TextCNN and TextRCNN.
type Model[B tensor.Backend] = textcls.Model[B]

// LayerSummary describes one layer for display.
type LayerSummary = textcls.LayerSummary

// Configuration

// Config holds the hyperparameters shared by both architectures.
type Config = textcls.Config

// CNNConfig configures a TextCNN.
type CNNConfig = textcls.CNNConfig

// RCNNConfig configures a TextRCNN.
type RCNNConfig = textcls.RCNNConfig

// DefaultConfig returns the shared defaults.
func DefaultConfig(numClasses int) Config {
	return textcls.DefaultConfig(numClasses)
}

// DefaultCNNConfig returns TextCNN defaults.
func DefaultCNNConfig(numClasses int) CNNConfig {
	return textcls.DefaultCNNConfig(numClasses)
}

// DefaultRCNNConfig returns TextRCNN defaults.
func DefaultRCNNConfig(numClasses int) RCNNConfig {
	return textcls.DefaultRCNNConfig(numClasses)
}

// PoolingStrategy names how sequence features are reduced.
type PoolingStrategy = textcls.PoolingStrategy

// Pooling strategies.
const (
	ReduceMax  = textcls.ReduceMax
	ReduceMean = textcls.ReduceMean
)

// ParsePoolingStrategy maps "REDUCE_MAX" or "REDUCE_MEAN" to a strategy.
func ParsePoolingStrategy(name string) (PoolingStrategy, error) {
	return textcls.ParsePoolingStrategy(name)
}

// Activation is the hidden layer activation.
type Activation = layers.Activation

// Activations.
const (
	Linear  = layers.Linear
	ReLU    = layers.ReLU
	Tanh    = layers.Tanh
	Sigmoid = layers.Sigmoid
	Softmax = layers.Softmax
	SiLU    = layers.SiLU
)

// ParseActivation maps a name such as "relu" to an Activation.
func ParseActivation(name string) (Activation, error) {
	return layers.ParseActivation(name)
}

// Models

// TextCNN is a convolutional text classifier.
type TextCNN[B tensor.Backend] = textcls.TextCNN[B]

// NewTextCNN validates cfg and builds a TextCNN.
//
// Example:
//
//	cfg := textcls.DefaultCNNConfig(3)
//	cfg.EmbeddingVocabSize = 20000
//	cfg.EmbeddingTrainable = true
//	model, err := textcls.NewTextCNN(cfg, cpu.New())
func NewTextCNN[B tensor.Backend](cfg CNNConfig, backend B) (*TextCNN[B], error) {
	return textcls.NewTextCNN(cfg, backend)
}

// TextRCNN is a recurrent convolutional text classifier.
type TextRCNN[B tensor.Backend] = textcls.TextRCNN[B]

// NewTextRCNN validates cfg and builds a TextRCNN.
func NewTextRCNN[B tensor.Backend](cfg RCNNConfig, backend B) (*TextRCNN[B], error) {
	return textcls.NewTextRCNN(cfg, backend)
}

// TotalParams returns the number of trainable scalars of m.
func TotalParams[B tensor.Backend](m Model[B]) int {
	return textcls.TotalParams(m)
}

// Checkpoints

// CheckpointInfo is the header of a saved model.
type CheckpointInfo = textcls.CheckpointInfo

// Save writes the weights of m to a .born file.
func Save[B tensor.Backend](m Model[B], path string, metadata map[string]string) error {
	return textcls.Save(m, path, metadata)
}

// Load restores weights saved by Save into m.
func Load[B tensor.Backend](m Model[B], path string, backend B) (CheckpointInfo, error) {
	return textcls.Load(m, path, backend)
}

// Errors returned by constructors, Call and Load. Use errors.Is.
var (
	ErrInvalidConfig          = textcls.ErrInvalidConfig
	ErrMissingVocabSize       = textcls.ErrMissingVocabSize
	ErrFrozenScratchEmbedding = textcls.ErrFrozenScratchEmbedding
	ErrPoolWindow             = textcls.ErrPoolWindow
	ErrInputRank              = textcls.ErrInputRank
	ErrInputShape             = textcls.ErrInputShape
	ErrTokenRange             = textcls.ErrTokenRange
	ErrCheckpointType         = textcls.ErrCheckpointType
)
