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

package model

import (
	"fmt"
	"math"

	"github.com/antflydb/weaktag/pkg/weaktag/lib/labels"
)

// Prediction is one predicted tag type with its probability.
type Prediction struct {
	Tag  string  `json:"tag"`
	Prob float64 `json:"prob"`
}

// TagAttention is one tag type's attention weights over the unpadded
// tokens.
type TagAttention struct {
	Tag     string
	Weights []float64
}

// Decoded is one instance's human-readable share of a batch output.
type Decoded struct {
	// Preds lists predicted tags in index order. Never empty: when no
	// prediction bit is set it holds a single {O, 1.0} entry.
	Preds []Prediction

	// Attentions maps every tag type, in index order, to its attention
	// weights truncated to the instance's true length.
	Attentions []TagAttention
}

// Decode converts a batch output into per-instance predictions and
// ordered tag attention. A pure transform: no metric or state is
// touched.
func (c *Classifier) Decode(out Output) ([]Decoded, error) {
	numTags := c.indexer.NumTags()
	tags := c.indexer.Tags()
	lengths := make([]int, len(out.Mask))
	for i, mask := range out.Mask {
		for _, m := range mask {
			if m != 0 {
				lengths[i]++
			}
		}
	}
	if len(out.Preds) != len(out.Mask) || len(out.LogProbs) != len(out.Mask) || len(out.Attentions) != len(out.Mask) {
		return nil, fmt.Errorf("%w: decode over %d mask rows, %d preds, %d log-probs, %d attentions",
			ErrDimension, len(out.Mask), len(out.Preds), len(out.LogProbs), len(out.Attentions))
	}

	decoded := make([]Decoded, len(out.Mask))
	for i := range out.Mask {
		if len(out.Preds[i]) != numTags || len(out.LogProbs[i]) != numTags {
			return nil, fmt.Errorf("%w: instance %d prediction width", ErrDimension, i)
		}
		var preds []Prediction
		for k := 0; k < numTags; k++ {
			if out.Preds[i][k] == 0 {
				continue
			}
			preds = append(preds, Prediction{
				Tag:  tags[k],
				Prob: math.Exp(out.LogProbs[i][k]),
			})
		}
		if len(preds) == 0 {
			preds = append(preds, Prediction{Tag: labels.OutsideTag, Prob: 1.0})
		}

		rows, cols := out.Attentions[i].Dims()
		if cols != numTags || rows < lengths[i] {
			return nil, fmt.Errorf("%w: instance %d attention is %dx%d", ErrDimension, i, rows, cols)
		}
		attns := make([]TagAttention, numTags)
		for k := 0; k < numTags; k++ {
			weights := make([]float64, lengths[i])
			for t := 0; t < lengths[i]; t++ {
				weights[t] = out.Attentions[i].At(t, k)
			}
			attns[k] = TagAttention{Tag: tags[k], Weights: weights}
		}

		decoded[i] = Decoded{Preds: preds, Attentions: attns}
	}
	return decoded, nil
}
