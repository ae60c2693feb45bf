// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/antflydb/weaktag/pkg/weaktag"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/model"
)

var (
	initCorpus   string
	initModelDir string

	initLabels       []string
	initEmbeddingDim int
	initHiddenDim    int
	initGenerator    string
	initSampler      string
	initIdentifier   string
	initThreshold    float64
	initTemperature  float64
	initHardSample   bool
	initSeed         int64
	initMinCount     int
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a model directory from a corpus",
	Long: `Read a CoNLL corpus, fit a token vocabulary over it, and write a model
directory holding the configuration, the vocabulary, and seeded weights.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	def := model.DefaultConfig()

	initCmd.Flags().StringVar(&initCorpus, "corpus", "", "corpus path or URI (file, http(s), s3)")
	initCmd.Flags().StringVar(&initModelDir, "model-dir", "", "model directory to create")

	initCmd.Flags().StringSliceVar(&initLabels, "labels", def.Labels, "entity types in index order, O excluded")
	initCmd.Flags().IntVar(&initEmbeddingDim, "embedding-dim", def.EmbeddingDim, "token embedding width")
	initCmd.Flags().IntVar(&initHiddenDim, "hidden-dim", def.HiddenDim, "generator hidden width")
	initCmd.Flags().StringVar(&initGenerator, "generator", def.Generator, "attention generator type")
	initCmd.Flags().StringVar(&initSampler, "sampler", def.Sampler, "attention sampler type (empty disables sampling)")
	initCmd.Flags().StringVar(&initIdentifier, "identifier", def.Identifier, "label identifier type")
	initCmd.Flags().Float64Var(&initThreshold, "threshold", def.Threshold, "prediction probability threshold")
	initCmd.Flags().Float64Var(&initTemperature, "temperature", def.Temperature, "Gumbel-softmax temperature")
	initCmd.Flags().BoolVar(&initHardSample, "hard-sample", def.HardSample, "sample one-hot attention")
	initCmd.Flags().Int64Var(&initSeed, "seed", def.Seed, "parameter initialization seed")
	initCmd.Flags().IntVar(&initMinCount, "min-count", def.MinCount, "minimum token count kept in the vocabulary")

	addReaderFlags(initCmd)

	_ = initCmd.MarkFlagRequired("corpus")
	_ = initCmd.MarkFlagRequired("model-dir")
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create logger from config
	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	resolver, err := newResolver(logger)
	if err != nil {
		return err
	}

	cfg := model.DefaultConfig()
	cfg.Labels = initLabels
	cfg.EmbeddingDim = initEmbeddingDim
	cfg.HiddenDim = initHiddenDim
	cfg.Generator = initGenerator
	cfg.Sampler = initSampler
	cfg.Identifier = initIdentifier
	cfg.Threshold = initThreshold
	cfg.Temperature = initTemperature
	cfg.HardSample = initHardSample
	cfg.Seed = initSeed
	cfg.MinCount = initMinCount
	cfg.Reader = readerOptions()

	_, err = weaktag.InitModel(ctx, weaktag.InitConfig{
		ModelDir:      initModelDir,
		CorpusURI:     initCorpus,
		Model:         &cfg,
		FeatureLabels: readerFeatureLabels,
		MaskVocabPath: readerMaskVocab,
		Resolver:      resolver,
		Logger:        logger,
	})
	return err
}
