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

// Package weaktag orchestrates the weak-supervision tagging pipeline:
// corpus resolution, CoNLL reading, classification, decoding, and the
// prediction artifacts (JSON, HTML report, Postgres rows).
package weaktag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/antflydb/weaktag/pkg/weaktag/lib/conll"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/fetch"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/health"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/labels"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/model"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/store"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/visualize"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/vocab"
)

// PipelineConfig configures a prediction run over one corpus.
type PipelineConfig struct {
	// Model runs the classifier.
	Model *model.Model

	// Resolver maps the corpus URI to a local file.
	Resolver *fetch.Resolver

	// BatchSize groups instances per forward pass.
	BatchSize int

	// Tolerance is the attention weight above which a token is tagged
	// with a predicted type in the report.
	Tolerance float64

	// MaskVocabPath optionally marks tokens from a mask vocabulary
	// file while reading.
	MaskVocabPath string

	// FeatureLabels lists extra tag columns carried while reading.
	FeatureLabels []string

	// Sink receives prediction rows. Optional.
	Sink *store.Sink

	// Metrics tracks run progress. Optional.
	Metrics *health.Metrics

	// Logger for run events.
	Logger *zap.Logger
}

// Pipeline runs batches through the model in corpus order, one batch
// in flight at a time.
type Pipeline struct {
	model     *model.Model
	resolver  *fetch.Resolver
	batchSize int
	tolerance float64
	maskPath  string
	features  []string
	sink      *store.Sink
	metrics   *health.Metrics
	logger    *zap.Logger
}

// Result is everything a prediction run produced.
type Result struct {
	// Records in corpus order.
	Records []visualize.Record

	// Metrics from the classification accumulator.
	Metrics map[string]float64

	// Loss averaged over instances, when gold labels were present.
	Loss    float64
	HasLoss bool

	// Stats from the corpus read.
	Stats conll.ReadStats
}

// NewPipeline creates a Pipeline.
func NewPipeline(config PipelineConfig) (*Pipeline, error) {
	// Validate config
	if config.Model == nil {
		return nil, fmt.Errorf("pipeline model is required")
	}
	if config.Resolver == nil {
		return nil, fmt.Errorf("pipeline resolver is required")
	}

	// Apply defaults for zero values
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	if config.Tolerance <= 0 {
		config.Tolerance = 0.01
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Pipeline{
		model:     config.Model,
		resolver:  config.Resolver,
		batchSize: config.BatchSize,
		tolerance: config.Tolerance,
		maskPath:  config.MaskVocabPath,
		features:  config.FeatureLabels,
		sink:      config.Sink,
		metrics:   config.Metrics,
		logger:    config.Logger,
	}, nil
}

// Run reads the corpus at uri, forwards every instance, and decodes
// prediction records. When a sink is configured the records are also
// written under runID.
func (p *Pipeline) Run(ctx context.Context, uri, runID string) (*Result, error) {
	path, err := p.resolver.Resolve(ctx, uri)
	if err != nil {
		return nil, err
	}

	instances, stats, err := p.read(path)
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.InstancesRead.Add(float64(len(instances)))
		p.metrics.ReadCorrections.Add(float64(stats.Corrections))
	}

	result := &Result{Stats: stats}
	lossSum := 0.0
	lossInstances := 0
	for start := 0; start < len(instances); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled: %w", err)
		}
		end := min(start+p.batchSize, len(instances))
		chunk := instances[start:end]

		out, err := p.forward(chunk)
		if err != nil {
			return nil, err
		}
		if out.HasLoss {
			lossSum += out.Loss * float64(len(chunk))
			lossInstances += len(chunk)
		}

		records, err := p.decode(chunk, out)
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, records...)

		if p.metrics != nil {
			p.metrics.BatchesForwarded.Inc()
			p.metrics.PredictionsDecoded.Add(float64(len(records)))
		}
	}

	result.Metrics = p.model.Classifier.Metrics(true)
	if lossInstances > 0 {
		result.Loss = lossSum / float64(lossInstances)
		result.HasLoss = true
	}
	if p.metrics != nil {
		if result.HasLoss {
			p.metrics.LastLoss.Set(result.Loss)
		}
		if f1, ok := result.Metrics["micro_f1"]; ok {
			p.metrics.LastMicroF1.Set(f1)
		}
	}

	if p.sink != nil {
		if err := p.sink.Write(ctx, runID, result.Records); err != nil {
			return nil, err
		}
	}

	p.logger.Info("run complete",
		zap.String("corpus", uri),
		zap.Int("instances", len(result.Records)),
		zap.Int("sentences", stats.Sentences),
		zap.Int("corrections", stats.Corrections),
		zap.Bool("evaluated", result.HasLoss),
		zap.Float64("loss", result.Loss),
		zap.Float64("micro_f1", result.Metrics["micro_f1"]))
	return result, nil
}

// read builds a reader from the model's pinned options and parses the
// corpus.
func (p *Pipeline) read(path string) ([]conll.Instance, conll.ReadStats, error) {
	cfg := p.model.Config
	readerConfig := conll.ReaderConfig{
		TagLabel:          cfg.Reader.TagLabel,
		CodingScheme:      cfg.Reader.CodingScheme,
		ConvertNumbers:    cfg.Reader.ConvertNumbers,
		MaxSentenceLength: cfg.Reader.MaxSentenceLength,
		FeatureLabels:     p.features,
		Indexer:           p.model.Classifier.Indexer(),
		Logger:            p.logger,
	}
	if p.maskPath != "" {
		mask, err := conll.LoadMaskVocab(p.maskPath)
		if err != nil {
			return nil, conll.ReadStats{}, err
		}
		readerConfig.MaskVocab = mask
	}

	reader, err := conll.NewReader(readerConfig)
	if err != nil {
		return nil, conll.ReadStats{}, err
	}
	return reader.Read(path)
}

func (p *Pipeline) forward(chunk []conll.Instance) (model.Output, error) {
	ids := make([][]int, len(chunk))
	gold := make([][]int, len(chunk))
	for i, inst := range chunk {
		ids[i] = p.model.Vocab.IDs(inst.Tokens)
		gold[i] = inst.Labels
	}
	batch := model.NewBatch(ids, vocab.PaddingID)
	batch.Labels = gold
	return p.model.Classifier.Forward(batch)
}

// decode turns one batch's output into prediction records.
func (p *Pipeline) decode(chunk []conll.Instance, out model.Output) ([]visualize.Record, error) {
	decoded, err := p.model.Classifier.Decode(out)
	if err != nil {
		return nil, err
	}
	if len(decoded) != len(chunk) {
		return nil, fmt.Errorf("decoded %d instances from a batch of %d", len(decoded), len(chunk))
	}

	indexer := p.model.Classifier.Indexer()
	records := make([]visualize.Record, len(chunk))
	for i, dec := range decoded {
		records[i] = p.record(chunk[i], dec, indexer)
	}
	return records, nil
}

func (p *Pipeline) record(inst conll.Instance, dec model.Decoded, indexer *labels.Indexer) visualize.Record {
	pred := make(visualize.Label, 0, len(dec.Preds))
	for _, pr := range dec.Preds {
		pred = append(pred, pr.Tag)
	}

	gold := visualize.Label(indexer.TagSet(inst.Tags))
	if len(gold) == 0 {
		gold = visualize.Label{labels.OutsideTag}
	}

	attn := make(visualize.Attn, 0, len(dec.Attentions))
	for _, series := range dec.Attentions {
		attn = append(attn, visualize.Series{Tag: series.Tag, Weights: series.Weights})
	}

	return visualize.Record{
		Text:       inst.Tokens,
		Pred:       pred,
		Gold:       gold,
		Attn:       attn,
		PredLabels: p.tokenTags(dec, len(inst.Tokens)),
		GoldLabels: indexer.Extract(inst.Tags),
	}
}

// tokenTags spreads instance-level predictions back over tokens: a
// token takes a predicted type when that type's attention clears the
// tolerance, the heaviest type winning when several do.
func (p *Pipeline) tokenTags(dec model.Decoded, length int) []string {
	tags := make([]string, length)
	best := make([]float64, length)
	for i := range tags {
		tags[i] = labels.OutsideTag
	}

	for _, pr := range dec.Preds {
		if pr.Tag == labels.OutsideTag {
			continue
		}
		for _, series := range dec.Attentions {
			if series.Tag != pr.Tag {
				continue
			}
			for i := 0; i < length && i < len(series.Weights); i++ {
				if series.Weights[i] > p.tolerance && series.Weights[i] > best[i] {
					tags[i] = pr.Tag
					best[i] = series.Weights[i]
				}
			}
		}
	}
	return tags
}
