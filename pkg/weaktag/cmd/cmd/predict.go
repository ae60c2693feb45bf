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
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/antflydb/weaktag/pkg/weaktag"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/health"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/model"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/store"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/visualize"
)

var (
	predictCorpus    string
	predictModelDir  string
	predictOutput    string
	predictReport    string
	predictBatchSize int
	predictTolerance float64
	predictRunID     string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict entity spans over a corpus",
	Long: `Load a model directory, run every sentence of a CoNLL corpus through the
classifier, and write prediction records with per-type attention weights.
Optionally render an HTML attention report, store records in Postgres, and
serve progress metrics while the run is in flight.`,
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().StringVar(&predictCorpus, "corpus", "", "corpus path or URI (file, http(s), s3)")
	predictCmd.Flags().StringVar(&predictModelDir, "model-dir", "", "model directory written by init")
	predictCmd.Flags().StringVar(&predictOutput, "output", "", "prediction records file (JSON)")
	predictCmd.Flags().StringVar(&predictReport, "report", "", "attention report file (HTML)")
	predictCmd.Flags().IntVar(&predictBatchSize, "batch-size", 32, "instances per forward pass")
	predictCmd.Flags().Float64Var(&predictTolerance, "tolerance", 0.01, "attention weight above which a token joins a predicted span")
	predictCmd.Flags().StringVar(&predictRunID, "run-id", "", "run identifier for stored predictions (default timestamped)")

	predictCmd.Flags().Int("metrics-port", 0, "health/metrics server port (0 disables)")
	mustBindPFlag("metrics_port", predictCmd.Flags().Lookup("metrics-port"))
	predictCmd.Flags().String("store-dsn", "", "postgres DSN for the prediction sink")
	mustBindPFlag("store_dsn", predictCmd.Flags().Lookup("store-dsn"))

	addReaderFlags(predictCmd)

	_ = predictCmd.MarkFlagRequired("corpus")
	_ = predictCmd.MarkFlagRequired("model-dir")
	_ = predictCmd.MarkFlagRequired("output")
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create logger from config
	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	m, err := model.Load(predictModelDir, logger)
	if err != nil {
		return err
	}
	applyReaderOverrides(cmd, m.Config)

	resolver, err := newResolver(logger)
	if err != nil {
		return err
	}

	metrics := health.NewMetrics()
	if port := viper.GetInt("metrics_port"); port > 0 {
		server, err := health.NewServer(health.ServerConfig{
			Addr:    fmt.Sprintf(":%d", port),
			Metrics: metrics,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		server.Start()
		server.SetReady(true)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	var sink *store.Sink
	if dsn := viper.GetString("store_dsn"); dsn != "" {
		sink, err = store.Open(ctx, store.Config{DSN: dsn, Logger: logger})
		if err != nil {
			return err
		}
		defer func() {
			_ = sink.Close()
		}()
	}

	pipeline, err := weaktag.NewPipeline(weaktag.PipelineConfig{
		Model:         m,
		Resolver:      resolver,
		BatchSize:     predictBatchSize,
		Tolerance:     predictTolerance,
		MaskVocabPath: readerMaskVocab,
		FeatureLabels: readerFeatureLabels,
		Sink:          sink,
		Metrics:       metrics,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	runID := predictRunID
	if runID == "" {
		runID = time.Now().UTC().Format("20060102-150405")
	}

	result, err := pipeline.Run(ctx, predictCorpus, runID)
	if err != nil {
		return err
	}

	if err := visualize.SaveRecords(predictOutput, result.Records); err != nil {
		return err
	}
	logger.Info("wrote predictions",
		zap.String("output", predictOutput),
		zap.Int("records", len(result.Records)))

	if predictReport != "" {
		if err := visualize.RenderFile(predictReport, result.Records); err != nil {
			return err
		}
		logger.Info("wrote report", zap.String("report", predictReport))
	}
	return nil
}

// applyReaderOverrides lays explicitly set reader flags over the
// options stored in the model directory, which otherwise pin how a
// corpus is read to how the vocabulary was fit.
func applyReaderOverrides(cmd *cobra.Command, cfg *model.Config) {
	if cmd.Flags().Changed("tag-label") {
		cfg.Reader.TagLabel = readerTagLabel
	}
	if cmd.Flags().Changed("coding-scheme") {
		cfg.Reader.CodingScheme = readerCodingScheme
	}
	if cmd.Flags().Changed("convert-numbers") {
		cfg.Reader.ConvertNumbers = readerConvert
	}
	if cmd.Flags().Changed("max-sentence-length") {
		cfg.Reader.MaxSentenceLength = readerMaxLength
	}
}
