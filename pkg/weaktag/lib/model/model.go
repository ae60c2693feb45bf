// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/antflydb/weaktag/pkg/weaktag/lib/labels"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/vocab"
)

// VocabFileName is the vocabulary file inside a model directory.
const VocabFileName = "vocab.json"

// Model bundles a classifier with the configuration and vocabulary it
// was built from.
type Model struct {
	Classifier *Classifier
	Config     *Config
	Vocab      *vocab.Vocab
}

// New builds a classifier with fresh, seed-deterministic parameters.
func New(cfg *Config, vocabSize int, logger *zap.Logger) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vocabSize < 2 {
		return nil, fmt.Errorf("vocabulary of %d entries is too small", vocabSize)
	}
	indexer, err := labels.NewIndexer(cfg.Labels)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	embedder := NewEmbedder(vocabSize, cfg.EmbeddingDim, rng)
	generator, err := newGenerator(cfg.Generator, cfg, rng)
	if err != nil {
		return nil, err
	}
	var sampler Sampler
	if cfg.Sampler != "" {
		sampler, err = newSampler(cfg.Sampler, cfg, rng)
		if err != nil {
			return nil, err
		}
	}
	identifier, err := newIdentifier(cfg.Identifier, cfg, rng)
	if err != nil {
		return nil, err
	}

	return NewClassifier(ClassifierConfig{
		Embedder:   embedder,
		Generator:  generator,
		Sampler:    sampler,
		Identifier: identifier,
		Indexer:    indexer,
		Logger:     logger,
	})
}

// Init creates a model directory holding the configuration, the
// vocabulary, and a seeded parameter checkpoint.
func Init(modelDir string, cfg *Config, v *vocab.Vocab, logger *zap.Logger) (*Model, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	classifier, err := New(cfg, v.Size(), logger)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}
	if err := cfg.Save(modelDir); err != nil {
		return nil, err
	}
	if err := v.Save(filepath.Join(modelDir, VocabFileName)); err != nil {
		return nil, err
	}
	if err := classifier.SaveWeights(filepath.Join(modelDir, WeightsFileName)); err != nil {
		return nil, err
	}

	logger.Info("initialized model",
		zap.String("dir", modelDir),
		zap.Int("vocab_size", v.Size()),
		zap.Strings("labels", cfg.Labels))
	return &Model{Classifier: classifier, Config: cfg, Vocab: v}, nil
}

// Load reads a model directory written by Init.
func Load(modelDir string, logger *zap.Logger) (*Model, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := LoadConfig(modelDir)
	if err != nil {
		return nil, err
	}
	v, err := vocab.Load(filepath.Join(modelDir, VocabFileName))
	if err != nil {
		return nil, err
	}
	classifier, err := New(cfg, v.Size(), logger)
	if err != nil {
		return nil, err
	}
	if err := classifier.LoadWeights(filepath.Join(modelDir, WeightsFileName)); err != nil {
		return nil, err
	}

	logger.Info("loaded model",
		zap.String("dir", modelDir),
		zap.Int("vocab_size", v.Size()),
		zap.Strings("labels", cfg.Labels))
	return &Model{Classifier: classifier, Config: cfg, Vocab: v}, nil
}
