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
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/antflydb/weaktag/pkg/weaktag/lib/visualize"
)

var (
	visualizeSrc string
	visualizeTgt string
)

var visualizeCmd = &cobra.Command{
	Use:   "visualize",
	Short: "Render prediction records as an HTML attention report",
	Long: `Read a prediction records file written by predict and render each sentence
with its tokens colored by attention weight and span agreement.`,
	RunE: runVisualize,
}

func init() {
	rootCmd.AddCommand(visualizeCmd)

	visualizeCmd.Flags().StringVar(&visualizeSrc, "src", "", "prediction records file (JSON)")
	visualizeCmd.Flags().StringVar(&visualizeTgt, "tgt", "", "report file to write (HTML)")

	_ = visualizeCmd.MarkFlagRequired("src")
	_ = visualizeCmd.MarkFlagRequired("tgt")
}

func runVisualize(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	records, err := visualize.LoadRecords(visualizeSrc)
	if err != nil {
		return err
	}
	if err := visualize.RenderFile(visualizeTgt, records); err != nil {
		return err
	}

	logger.Info("wrote report",
		zap.String("src", visualizeSrc),
		zap.String("tgt", visualizeTgt),
		zap.Int("records", len(records)))
	return nil
}
