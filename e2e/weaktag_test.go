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

package e2e

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/antflydb/weaktag/pkg/weaktag"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/fetch"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/health"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/labels"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/model"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/visualize"
)

const e2eCorpus = `-DOCSTART- -X- -X- O

EU NNP I-NP I-ORG
rejects VBZ I-VP O
German JJ I-NP I-MISC
call NN I-NP O

Peter NNP I-NP I-PER
Blackburn NNP I-NP I-PER

BRUSSELS NNP I-NP I-LOC
1996-08-22 CD I-NP O
`

// TestWeaktagE2E runs the whole prediction flow against a small corpus:
// 1. Initializes a model directory from the corpus
// 2. Loads the model back and predicts with a live metrics server
// 3. Round-trips the prediction records through a JSON file
// 4. Renders the records as an HTML report
// 5. Scrapes the metrics endpoint for run counters
func TestWeaktagE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	logger := zaptest.NewLogger(t)
	dir := t.TempDir()

	corpusPath := filepath.Join(dir, "eng.sample")
	require.NoError(t, os.WriteFile(corpusPath, []byte(e2eCorpus), 0o644))

	resolver, err := fetch.NewResolver(fetch.Config{
		CacheDir: filepath.Join(dir, "cache"),
		Logger:   logger,
	})
	require.NoError(t, err)

	// A single-type label space keeps every non-PER tag collapsed to O.
	cfg := model.DefaultConfig()
	cfg.Labels = []string{"PER"}
	cfg.EmbeddingDim = 8
	cfg.HiddenDim = 6
	cfg.Seed = 7

	modelDir := filepath.Join(dir, "model")
	_, err = weaktag.InitModel(ctx, weaktag.InitConfig{
		ModelDir:  modelDir,
		CorpusURI: corpusPath,
		Model:     &cfg,
		Resolver:  resolver,
		Logger:    logger,
	})
	require.NoError(t, err)

	m, err := model.Load(modelDir, logger)
	require.NoError(t, err)

	metrics := health.NewMetrics()
	server, err := health.NewServer(health.ServerConfig{
		Addr:    "127.0.0.1:0",
		Metrics: metrics,
		Logger:  logger,
	})
	require.NoError(t, err)
	server.Start()
	server.SetReady(true)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		require.NoError(t, server.Shutdown(shutdownCtx))
	}()

	pipeline, err := weaktag.NewPipeline(weaktag.PipelineConfig{
		Model:     m,
		Resolver:  resolver,
		BatchSize: 2,
		Metrics:   metrics,
		Logger:    logger,
	})
	require.NoError(t, err)

	result, err := pipeline.Run(ctx, corpusPath, "e2e")
	require.NoError(t, err)
	require.Len(t, result.Records, 3)

	// The Peter Blackburn sentence is the only gold PER instance.
	assert.Equal(t, visualize.Label{"PER"}, result.Records[1].Gold)
	assert.Equal(t, []string{"PER", "PER"}, result.Records[1].GoldLabels)
	assert.Equal(t, visualize.Label{labels.OutsideTag}, result.Records[0].Gold)

	assert.True(t, result.HasLoss)
	assert.Greater(t, result.Loss, 0.0)
	assert.Contains(t, result.Metrics, "micro_f1")

	output := filepath.Join(dir, "predictions.json")
	require.NoError(t, visualize.SaveRecords(output, result.Records))
	loaded, err := visualize.LoadRecords(output)
	require.NoError(t, err)
	assert.Equal(t, result.Records, loaded)

	report := filepath.Join(dir, "report.html")
	require.NoError(t, visualize.RenderFile(report, loaded))
	html, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Blackburn")
	assert.Contains(t, string(html), "tooltip")

	resp, err := http.Get(fmt.Sprintf("http://%s/readyz", server.Addr()))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = http.Get(fmt.Sprintf("http://%s/metrics", server.Addr()))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Contains(t, string(body), "weaktag_instances_read_total 3")
	assert.Contains(t, string(body), "weaktag_batches_forwarded_total 2")
	assert.Contains(t, string(body), "weaktag_predictions_decoded_total 3")
}
