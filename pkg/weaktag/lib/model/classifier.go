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

// Package model implements the attention classifier: an embedding
// lookup feeding a per-tag attention generator, an optional stochastic
// sampler, and an identifier that thresholds attended contexts into
// multi-label predictions.
package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/antflydb/weaktag/pkg/weaktag/lib/labels"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/metrics"
)

var (
	// ErrDimension is returned when tensor shapes disagree. Shape
	// disagreements are pipeline bugs, never recoverable input errors.
	ErrDimension = errors.New("dimension mismatch")

	// ErrUnsupportedFeature is returned when a forward batch carries
	// auxiliary feature sequences no component consumes. The pipeline
	// rejects unrecognized inputs instead of silently ignoring them.
	ErrUnsupportedFeature = errors.New("unsupported auxiliary feature")
)

// Batch holds indexed instances padded to a common sequence length.
type Batch struct {
	// TokenIDs is B x S, padded with the vocabulary's padding id.
	TokenIDs [][]int

	// Mask is B x S with 1 on real tokens and 0 on padding.
	Mask [][]int

	// Labels optionally holds gold multi-label bit vectors, B x K.
	Labels [][]int

	// Features carries auxiliary per-token tag sequences by namespace.
	// The classifier consumes none of them and rejects a batch where
	// any are present.
	Features map[string][][]string
}

// NewBatch pads token id sequences to the longest one and derives the
// mask.
func NewBatch(ids [][]int, padID int) Batch {
	maxLen := 0
	for _, seq := range ids {
		if len(seq) > maxLen {
			maxLen = len(seq)
		}
	}

	batch := Batch{
		TokenIDs: make([][]int, len(ids)),
		Mask:     make([][]int, len(ids)),
	}
	for i, seq := range ids {
		padded := make([]int, maxLen)
		mask := make([]int, maxLen)
		for j, id := range seq {
			padded[j] = id
			mask[j] = 1
		}
		for j := len(seq); j < maxLen; j++ {
			padded[j] = padID
		}
		batch.TokenIDs[i] = padded
		batch.Mask[i] = mask
	}
	return batch
}

// Size returns the number of instances in the batch.
func (b *Batch) Size() int {
	return len(b.TokenIDs)
}

// Lengths returns each instance's unpadded length.
func (b *Batch) Lengths() []int {
	lengths := make([]int, len(b.Mask))
	for i, mask := range b.Mask {
		for _, m := range mask {
			if m != 0 {
				lengths[i]++
			}
		}
	}
	return lengths
}

// Output is one forward pass over a batch.
type Output struct {
	// Loss is the batch mean BCE. Valid only when HasLoss is set.
	Loss    float64
	HasLoss bool

	// Logits and LogProbs are B x K.
	Logits   [][]float64
	LogProbs [][]float64

	// Preds holds the thresholded 0/1 predictions, B x K.
	Preds [][]int

	// Attentions holds each instance's raw S x K attention; Samples
	// holds the sampled attention the identifier consumed. Without a
	// sampler the two are the same matrices.
	Attentions []*mat.Dense
	Samples    []*mat.Dense

	// Mask is carried through for decoding.
	Mask [][]int
}

// ClassifierConfig wires the classifier's components. All but Sampler
// and Logger are required.
type ClassifierConfig struct {
	Embedder   *Embedder
	Generator  Generator
	Sampler    Sampler
	Identifier Identifier
	Indexer    *labels.Indexer
	Logger     *zap.Logger
}

// Classifier composes the attention pipeline. Components are fixed at
// construction; there is no post-hoc attachment.
type Classifier struct {
	embedder   *Embedder
	generator  Generator
	sampler    Sampler // nil means sampled attention equals raw attention
	identifier Identifier
	indexer    *labels.Indexer

	metric *metrics.Classification
	logger *zap.Logger
}

// NewClassifier creates a classifier from explicit components.
func NewClassifier(config ClassifierConfig) (*Classifier, error) {
	if config.Embedder == nil {
		return nil, errors.New("classifier requires an embedder")
	}
	if config.Generator == nil {
		return nil, errors.New("classifier requires a generator")
	}
	if config.Identifier == nil {
		return nil, errors.New("classifier requires an identifier")
	}
	if config.Indexer == nil {
		return nil, errors.New("classifier requires a label indexer")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Classifier{
		embedder:   config.Embedder,
		generator:  config.Generator,
		sampler:    config.Sampler,
		identifier: config.Identifier,
		indexer:    config.Indexer,
		metric:     metrics.NewClassification(config.Indexer),
		logger:     config.Logger,
	}, nil
}

// Indexer returns the shared label indexer.
func (c *Classifier) Indexer() *labels.Indexer {
	return c.indexer
}

// Forward runs one batch through generator, sampler, and identifier.
// Batches carrying auxiliary features are rejected. With gold labels
// the output carries the batch loss and the running metric is updated.
func (c *Classifier) Forward(batch Batch) (Output, error) {
	if len(batch.Features) > 0 {
		names := make([]string, 0, len(batch.Features))
		for name := range batch.Features {
			names = append(names, name)
		}
		sort.Strings(names)
		return Output{}, fmt.Errorf("%w: %s", ErrUnsupportedFeature, strings.Join(names, ", "))
	}
	if batch.Labels != nil && len(batch.Labels) != len(batch.TokenIDs) {
		return Output{}, fmt.Errorf("%w: %d label rows for %d instances",
			ErrDimension, len(batch.Labels), len(batch.TokenIDs))
	}

	size := batch.Size()
	out := Output{
		Logits:     make([][]float64, size),
		LogProbs:   make([][]float64, size),
		Preds:      make([][]int, size),
		Attentions: make([]*mat.Dense, size),
		Samples:    make([]*mat.Dense, size),
		Mask:       batch.Mask,
	}

	var loss float64
	lossCount := 0
	for i := 0; i < size; i++ {
		emb, err := c.embedder.Embed(batch.TokenIDs[i])
		if err != nil {
			return Output{}, fmt.Errorf("instance %d: %w", i, err)
		}
		attn, err := c.generator.Attend(emb, batch.Mask[i])
		if err != nil {
			return Output{}, fmt.Errorf("instance %d: %w", i, err)
		}
		samples := attn
		if c.sampler != nil {
			samples = c.sampler.Sample(attn, batch.Mask[i])
		}

		var gold []int
		if batch.Labels != nil {
			gold = batch.Labels[i]
		}
		res, err := c.identifier.Identify(emb, batch.Mask[i], samples, attn, gold)
		if err != nil {
			return Output{}, fmt.Errorf("instance %d: %w", i, err)
		}

		out.Logits[i] = res.Logits
		out.LogProbs[i] = res.LogProbs
		out.Preds[i] = res.Preds
		out.Attentions[i] = attn
		out.Samples[i] = samples
		if res.HasLoss {
			loss += res.Loss
			lossCount++
		}
	}

	if lossCount == size && size > 0 {
		out.Loss = loss / float64(size)
		out.HasLoss = true
	}
	if batch.Labels != nil {
		if err := c.metric.Observe(out.Preds, batch.Labels); err != nil {
			return Output{}, err
		}
	}
	return out, nil
}

// Metrics returns the running classification metric map, clearing the
// accumulator when reset is set.
func (c *Classifier) Metrics(reset bool) map[string]float64 {
	return c.metric.Metric(reset)
}
