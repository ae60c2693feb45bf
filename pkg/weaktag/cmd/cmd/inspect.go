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
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/antflydb/weaktag/pkg/weaktag/lib/conll"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/labels"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/model"
)

var (
	inspectCorpus string
	inspectLabels []string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize a corpus without running a model",
	Long: `Read a CoNLL corpus with the same reader predict uses and print what it
yields: sentence and window counts, tag corrections, token totals, and the
per-type label distribution.`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectCorpus, "corpus", "", "corpus path or URI (file, http(s), s3)")
	inspectCmd.Flags().StringSliceVar(&inspectLabels, "labels", model.DefaultConfig().Labels, "entity types counted in the label distribution")

	addReaderFlags(inspectCmd)

	_ = inspectCmd.MarkFlagRequired("corpus")
}

func runInspect(cmd *cobra.Command, args []string) error {
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
	path, err := resolver.Resolve(ctx, inspectCorpus)
	if err != nil {
		return err
	}

	indexer, err := labels.NewIndexer(inspectLabels)
	if err != nil {
		return err
	}

	opts := readerOptions()
	readerConfig := conll.ReaderConfig{
		TagLabel:          opts.TagLabel,
		CodingScheme:      opts.CodingScheme,
		ConvertNumbers:    opts.ConvertNumbers,
		MaxSentenceLength: opts.MaxSentenceLength,
		FeatureLabels:     readerFeatureLabels,
		Indexer:           indexer,
		Logger:            logger,
	}
	if readerMaskVocab != "" {
		mask, err := conll.LoadMaskVocab(readerMaskVocab)
		if err != nil {
			return err
		}
		readerConfig.MaskVocab = mask
	}
	reader, err := conll.NewReader(readerConfig)
	if err != nil {
		return err
	}

	instances, stats, err := reader.Read(path)
	if err != nil {
		return err
	}

	tokens := 0
	longest := 0
	masked := 0
	empty := 0
	counts := make([]int, indexer.NumTags())
	for _, inst := range instances {
		tokens += len(inst.Tokens)
		if len(inst.Tokens) > longest {
			longest = len(inst.Tokens)
		}
		for _, m := range inst.AttnMask {
			masked += m
		}
		any := false
		for i, set := range inst.Labels {
			if set == 1 {
				counts[i]++
				any = true
			}
		}
		if !any {
			empty++
		}
	}

	fmt.Printf("corpus:       %s\n", inspectCorpus)
	fmt.Printf("sentences:    %d\n", stats.Sentences)
	fmt.Printf("instances:    %d\n", len(instances))
	fmt.Printf("corrections:  %d\n", stats.Corrections)
	fmt.Printf("tokens:       %d (longest instance %d)\n", tokens, longest)
	if masked > 0 {
		fmt.Printf("masked:       %d\n", masked)
	}
	fmt.Println("label distribution:")
	for i, tag := range indexer.Tags() {
		fmt.Printf("  %-8s %d\n", tag, counts[i])
	}
	fmt.Printf("  %-8s %d\n", "none", empty)
	return nil
}
