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

// Package metrics accumulates multi-label classification counts across
// batches and reports precision, recall, and F1 per tag type.
package metrics

import (
	"errors"
	"fmt"

	"github.com/antflydb/weaktag/pkg/weaktag/lib/labels"
)

// ErrVectorLength is returned when an observed prediction or gold
// vector does not span the indexer's tag types.
var ErrVectorLength = errors.New("label vector length mismatch")

// Classification tracks per-tag confusion counts over thresholded
// multi-label predictions. Not safe for concurrent use; the pipeline
// observes batches sequentially.
type Classification struct {
	indexer *labels.Indexer

	tp []int
	fp []int
	fn []int
	tn []int

	exact int
	total int
}

// NewClassification creates an empty accumulator over the indexer's
// tag types.
func NewClassification(indexer *labels.Indexer) *Classification {
	n := indexer.NumTags()
	return &Classification{
		indexer: indexer,
		tp:      make([]int, n),
		fp:      make([]int, n),
		fn:      make([]int, n),
		tn:      make([]int, n),
	}
}

// Observe folds one batch of prediction and gold bit vectors into the
// running counts. Both slices must be the same length, each vector
// spanning the indexer's tag types.
func (c *Classification) Observe(preds, gold [][]int) error {
	if len(preds) != len(gold) {
		return fmt.Errorf("%w: %d predictions, %d gold rows", ErrVectorLength, len(preds), len(gold))
	}
	n := c.indexer.NumTags()
	for i := range preds {
		if len(preds[i]) != n || len(gold[i]) != n {
			return fmt.Errorf("%w: row %d", ErrVectorLength, i)
		}
		match := true
		for k := 0; k < n; k++ {
			p := preds[i][k] != 0
			g := gold[i][k] != 0
			switch {
			case p && g:
				c.tp[k]++
			case p && !g:
				c.fp[k]++
				match = false
			case !p && g:
				c.fn[k]++
				match = false
			default:
				c.tn[k]++
			}
		}
		if match {
			c.exact++
		}
		c.total++
	}
	return nil
}

// Metric returns the current metric map and, when reset is true, zeroes
// the accumulator afterwards. Keys are <tag>_precision, <tag>_recall,
// <tag>_f1 for each tag type, micro_* and macro_* aggregates, and
// accuracy for exact multi-label match.
func (c *Classification) Metric(reset bool) map[string]float64 {
	out := make(map[string]float64, 3*c.indexer.NumTags()+7)

	var (
		sumTP, sumFP, sumFN    int
		macroP, macroR, macroF float64
	)
	for k, tag := range c.indexer.Tags() {
		p := ratio(c.tp[k], c.tp[k]+c.fp[k])
		r := ratio(c.tp[k], c.tp[k]+c.fn[k])
		f := f1(p, r)
		out[tag+"_precision"] = p
		out[tag+"_recall"] = r
		out[tag+"_f1"] = f
		macroP += p
		macroR += r
		macroF += f
		sumTP += c.tp[k]
		sumFP += c.fp[k]
		sumFN += c.fn[k]
	}

	n := float64(c.indexer.NumTags())
	out["macro_precision"] = macroP / n
	out["macro_recall"] = macroR / n
	out["macro_f1"] = macroF / n

	microP := ratio(sumTP, sumTP+sumFP)
	microR := ratio(sumTP, sumTP+sumFN)
	out["micro_precision"] = microP
	out["micro_recall"] = microR
	out["micro_f1"] = f1(microP, microR)

	out["accuracy"] = ratio(c.exact, c.total)

	if reset {
		for k := range c.tp {
			c.tp[k], c.fp[k], c.fn[k], c.tn[k] = 0, 0, 0, 0
		}
		c.exact, c.total = 0, 0
	}
	return out
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func f1(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}
