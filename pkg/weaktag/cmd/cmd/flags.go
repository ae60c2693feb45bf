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

	"github.com/antflydb/weaktag/pkg/weaktag/lib/conll"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/labels"
	"github.com/antflydb/weaktag/pkg/weaktag/lib/model"
)

// Reader flags shared by the commands that parse a corpus directly.
// Prediction reads these from the model directory instead, so a corpus
// is always read the same way the vocabulary was fit.
var (
	readerTagLabel      string
	readerCodingScheme  string
	readerConvert       bool
	readerMaxLength     int
	readerFeatureLabels []string
	readerMaskVocab     string
)

func addReaderFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&readerTagLabel, "tag-label", conll.TagLabelNER, "gold tag column (ner, pos, chunk)")
	cmd.Flags().StringVar(&readerCodingScheme, "coding-scheme", labels.SchemeIOB1, "tag coding scheme (IOB1, BIOUL)")
	cmd.Flags().BoolVar(&readerConvert, "convert-numbers", false, "replace digit runs with the number sentinel")
	cmd.Flags().IntVar(&readerMaxLength, "max-sentence-length", -1, "window longer sentences to this many tokens")
	cmd.Flags().StringSliceVar(&readerFeatureLabels, "feature-labels", nil, "extra tag columns to carry (pos, chunk, ner)")
	cmd.Flags().StringVar(&readerMaskVocab, "mask-vocab", "", "file of tokens to flag with attention-mask markers")
}

func readerOptions() model.ReaderOptions {
	return model.ReaderOptions{
		TagLabel:          readerTagLabel,
		CodingScheme:      readerCodingScheme,
		ConvertNumbers:    readerConvert,
		MaxSentenceLength: readerMaxLength,
	}
}
