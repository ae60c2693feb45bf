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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/antflydb/weaktag/pkg/weaktag/lib/fetch"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/health"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/labels"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/model"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/visualize"
)

const sampleCorpus = `-DOCSTART- -X- O O

EU NNP I-NP I-ORG
rejects VBZ I-VP O
German JJ I-NP I-MISC
call NN I-NP O

Peter NNP I-NP I-PER
Blackburn NNP I-NP I-PER

BRUSSELS NNP I-NP I-LOC
1996-08-22 CD I-NP O
`

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testModelConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Labels = []string{"PER", "ORG", "LOC"}
	cfg.EmbeddingDim = 8
	cfg.HiddenDim = 6
	cfg.Seed = 1
	return &cfg
}

func newTestResolver(t *testing.T) *fetch.Resolver {
	t.Helper()
	r, err := fetch.NewResolver(fetch.Config{CacheDir: t.TempDir()})
	require.NoError(t, err)
	return r
}

func initTestModel(t *testing.T, corpus string) *model.Model {
	t.Helper()
	m, err := InitModel(context.Background(), InitConfig{
		ModelDir:  t.TempDir(),
		CorpusURI: corpus,
		Model:     testModelConfig(),
		Resolver:  newTestResolver(t),
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	return m
}

func metricValue(t *testing.T, m *health.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		metric := fam.GetMetric()[0]
		if metric.GetCounter() != nil {
			return metric.GetCounter().GetValue()
		}
		return metric.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestInitModelWritesDirectory(t *testing.T) {
	corpus := writeCorpus(t, sampleCorpus)
	dir := t.TempDir()
	_, err := InitModel(context.Background(), InitConfig{
		ModelDir:  dir,
		CorpusURI: corpus,
		Model:     testModelConfig(),
		Resolver:  newTestResolver(t),
	})
	require.NoError(t, err)

	for _, name := range []string{model.ConfigFileName, model.VocabFileName, model.WeightsFileName} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	loaded, err := model.Load(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"PER", "ORG", "LOC"}, loaded.Config.Labels)
	// Reserved entries plus the eight distinct corpus tokens.
	assert.Equal(t, 10, loaded.Vocab.Size())
}

func TestInitModelValidation(t *testing.T) {
	corpus := writeCorpus(t, sampleCorpus)
	resolver := newTestResolver(t)

	_, err := InitModel(context.Background(), InitConfig{
		CorpusURI: corpus, Model: testModelConfig(), Resolver: resolver,
	})
	require.Error(t, err)

	_, err = InitModel(context.Background(), InitConfig{
		ModelDir: t.TempDir(), CorpusURI: corpus, Resolver: resolver,
	})
	require.Error(t, err)

	bad := testModelConfig()
	bad.Threshold = 2
	_, err = InitModel(context.Background(), InitConfig{
		ModelDir: t.TempDir(), CorpusURI: corpus, Model: bad, Resolver: resolver,
	})
	require.Error(t, err)

	empty := writeCorpus(t, "\n\n")
	_, err = InitModel(context.Background(), InitConfig{
		ModelDir: t.TempDir(), CorpusURI: empty, Model: testModelConfig(), Resolver: resolver,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no instances")
}

func TestPipelineRun(t *testing.T) {
	corpus := writeCorpus(t, sampleCorpus)
	m := initTestModel(t, corpus)
	metrics := health.NewMetrics()

	p, err := NewPipeline(PipelineConfig{
		Model:     m,
		Resolver:  newTestResolver(t),
		BatchSize: 2,
		Metrics:   metrics,
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), corpus, "run-1")
	require.NoError(t, err)
	require.Len(t, result.Records, 4)
	assert.Equal(t, 4, result.Stats.Sentences)

	// Every record keeps token-aligned fields and never an empty
	// prediction.
	for _, rec := range result.Records {
		assert.NotEmpty(t, rec.Pred)
		assert.Len(t, rec.PredLabels, len(rec.Text))
		assert.Len(t, rec.GoldLabels, len(rec.Text))
		require.Len(t, rec.Attn, 3)
		assert.Equal(t, "PER", rec.Attn[0].Tag)
		assert.Equal(t, "ORG", rec.Attn[1].Tag)
		assert.Equal(t, "LOC", rec.Attn[2].Tag)
		for _, series := range rec.Attn {
			assert.Len(t, series.Weights, len(rec.Text))
		}
	}

	first := result.Records[0]
	assert.Equal(t, []string{"EU", "rejects", "German", "call"}, first.Text)
	assert.Equal(t, visualize.Label{"ORG"}, first.Gold)
	assert.Equal(t, []string{"ORG", "O", "O", "O"}, first.GoldLabels)

	second := result.Records[1]
	assert.Equal(t, visualize.Label{"PER"}, second.Gold)

	// Gold labels were present, so the run is evaluated.
	assert.True(t, result.HasLoss)
	assert.Greater(t, result.Loss, 0.0)
	assert.Contains(t, result.Metrics, "micro_f1")
	assert.Contains(t, result.Metrics, "accuracy")

	assert.Equal(t, 4.0, metricValue(t, metrics, "weaktag_instances_read_total"))
	assert.Equal(t, 2.0, metricValue(t, metrics, "weaktag_batches_forwarded_total"))
	assert.Equal(t, 4.0, metricValue(t, metrics, "weaktag_predictions_decoded_total"))
	assert.Equal(t, result.Loss, metricValue(t, metrics, "weaktag_last_loss"))
}

func TestPipelineTokenTags(t *testing.T) {
	p := &Pipeline{tolerance: 0.3}
	dec := model.Decoded{
		Preds: []model.Prediction{{Tag: "PER", Prob: 0.9}, {Tag: "LOC", Prob: 0.8}},
		Attentions: []model.TagAttention{
			{Tag: "PER", Weights: []float64{0.8, 0.1, 0.4}},
			{Tag: "ORG", Weights: []float64{0.9, 0.9, 0.9}},
			{Tag: "LOC", Weights: []float64{0.1, 0.1, 0.6}},
		},
	}

	// ORG attention never applies since ORG was not predicted; the
	// heaviest predicted type above tolerance wins each token.
	tags := p.tokenTags(dec, 3)
	assert.Equal(t, []string{"PER", "O", "LOC"}, tags)
}

func TestPipelineTokenTagsOutsideOnly(t *testing.T) {
	p := &Pipeline{tolerance: 0.01}
	dec := model.Decoded{
		Preds: []model.Prediction{{Tag: labels.OutsideTag, Prob: 1.0}},
		Attentions: []model.TagAttention{
			{Tag: "PER", Weights: []float64{0.9, 0.9}},
		},
	}
	assert.Equal(t, []string{"O", "O"}, p.tokenTags(dec, 2))
}

func TestPipelineReportEndToEnd(t *testing.T) {
	// An all-outside corpus keeps every token in defined color states
	// regardless of what the untrained model predicts.
	corpus := writeCorpus(t, `the DT O
market NN O
closed VBD O

prices NNS O
fell VBD O
`)
	m := initTestModel(t, corpus)
	p, err := NewPipeline(PipelineConfig{
		Model:    m,
		Resolver: newTestResolver(t),
	})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), corpus, "run-1")
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, visualize.Label{"O"}, result.Records[0].Gold)

	out := filepath.Join(t.TempDir(), "predictions.json")
	require.NoError(t, visualize.SaveRecords(out, result.Records))
	loaded, err := visualize.LoadRecords(out)
	require.NoError(t, err)
	assert.Equal(t, result.Records, loaded)

	report := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, visualize.RenderFile(report, loaded))
	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tooltip")
}

func TestPipelineCancelledContext(t *testing.T) {
	corpus := writeCorpus(t, sampleCorpus)
	m := initTestModel(t, corpus)
	p, err := NewPipeline(PipelineConfig{Model: m, Resolver: newTestResolver(t), BatchSize: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx, corpus, "run-1")
	require.Error(t, err)
}

func TestNewPipelineValidation(t *testing.T) {
	_, err := NewPipeline(PipelineConfig{Resolver: newTestResolver(t)})
	require.Error(t, err)

	corpus := writeCorpus(t, sampleCorpus)
	m := initTestModel(t, corpus)
	_, err = NewPipeline(PipelineConfig{Model: m})
	require.Error(t, err)
}
