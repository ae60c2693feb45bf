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

package weaktag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/antflydb/weaktag/pkg/weaktag/lib/conll"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/fetch"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/labels"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/model"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/vocab"
)

// InitConfig configures model initialization from a training corpus.
type InitConfig struct {
	// ModelDir receives the configuration, vocabulary, and weights.
	ModelDir string

	// CorpusURI is the corpus the vocabulary is fit on.
	CorpusURI string

	// Model is the configuration to initialize with.
	Model *model.Config

	// FeatureLabels lists extra tag columns carried while reading.
	FeatureLabels []string

	// MaskVocabPath optionally marks tokens from a mask vocabulary
	// file during the read.
	MaskVocabPath string

	// Resolver maps the corpus URI to a local file.
	Resolver *fetch.Resolver

	// Logger for initialization events.
	Logger *zap.Logger
}

// InitModel fits a vocabulary over the corpus and writes a fresh model
// directory: configuration, vocabulary, and seeded weights.
func InitModel(ctx context.Context, config InitConfig) (*model.Model, error) {
	// Validate config
	if config.ModelDir == "" {
		return nil, fmt.Errorf("init model dir is required")
	}
	if config.CorpusURI == "" {
		return nil, fmt.Errorf("init corpus is required")
	}
	if config.Model == nil {
		return nil, fmt.Errorf("init model configuration is required")
	}
	if config.Resolver == nil {
		return nil, fmt.Errorf("init resolver is required")
	}

	// Apply defaults for zero values
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	if err := config.Model.Validate(); err != nil {
		return nil, err
	}

	path, err := config.Resolver.Resolve(ctx, config.CorpusURI)
	if err != nil {
		return nil, err
	}

	indexer, err := labels.NewIndexer(config.Model.Labels)
	if err != nil {
		return nil, err
	}
	readerConfig := conll.ReaderConfig{
		TagLabel:          config.Model.Reader.TagLabel,
		CodingScheme:      config.Model.Reader.CodingScheme,
		ConvertNumbers:    config.Model.Reader.ConvertNumbers,
		MaxSentenceLength: config.Model.Reader.MaxSentenceLength,
		FeatureLabels:     config.FeatureLabels,
		Indexer:           indexer,
		Logger:            config.Logger,
	}
	if config.MaskVocabPath != "" {
		mask, err := conll.LoadMaskVocab(config.MaskVocabPath)
		if err != nil {
			return nil, err
		}
		readerConfig.MaskVocab = mask
	}
	reader, err := conll.NewReader(readerConfig)
	if err != nil {
		return nil, err
	}
	instances, stats, err := reader.Read(path)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("corpus %s produced no instances", config.CorpusURI)
	}

	sequences := make([][]string, len(instances))
	for i, inst := range instances {
		sequences[i] = inst.Tokens
	}
	v := vocab.Fit(sequences, config.Model.MinCount)

	config.Logger.Info("fit vocabulary",
		zap.String("corpus", config.CorpusURI),
		zap.Int("sentences", stats.Sentences),
		zap.Int("instances", len(instances)),
		zap.Int("vocab_size", v.Size()))

	return model.Init(config.ModelDir, config.Model, v, config.Logger)
}
