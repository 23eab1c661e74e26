// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package textcls provides neural text classifiers built on Born.
//
// # Overview
//
// This package contains:
//   - Models: TextCNN (Kim, 2014) and TextRCNN (Lai et al., 2015)
//   - Configuration: Config, CNNConfig, RCNNConfig and their defaults
//   - Text encoding: Vocabulary, WordEncoder, SubwordEncoder, EncodeBatch
//   - Pre-trained vectors: LoadVectors (GloVe and word2vec text format)
//   - Checkpoints: Save and Load in Born's .born format
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/born/backend/cpu"
//	    "github.com/born-ml/textcls/textcls"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    vocab := textcls.BuildVocabulary(corpus, textcls.BuildOptions{MinFreq: 2})
//
//	    cfg := textcls.DefaultCNNConfig(2)
//	    cfg.EmbeddingVocabSize = vocab.Size()
//	    cfg.EmbeddingTrainable = true
//	    cfg.MaxSeqLen = 100
//
//	    model, err := textcls.NewTextCNN(cfg, backend)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    ids, err := textcls.EncodeBatch(textcls.NewWordEncoder(vocab), texts, cfg.MaxSeqLen, backend)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    probs, err := model.Call(ids) // [len(texts), 2]
//	}
//
// # Token ids
//
// Id 0 is padding and id 1 the unknown token for every encoder. An
// embedding matrix passed in Config must reserve the same two rows.
//
// # Modes
//
// Models start in inference mode, where dropout is the identity. Call
// SetTraining(true) to enable dropout.
package textcls
