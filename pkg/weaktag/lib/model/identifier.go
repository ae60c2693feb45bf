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
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// IdentifierAttendedBCE is the registry name of the attended
// binary-cross-entropy identifier.
const IdentifierAttendedBCE = "attended_bce"

// InstanceResult is one instance's share of a forward pass.
type InstanceResult struct {
	// Logits holds one pre-sigmoid score per tag type.
	Logits []float64

	// LogProbs is logsigmoid of Logits.
	LogProbs []float64

	// Preds holds the thresholded 0/1 prediction per tag type.
	Preds []int

	// Loss is the mean binary cross-entropy over tag types. Valid only
	// when HasLoss is set, which requires gold labels.
	Loss    float64
	HasLoss bool
}

// Identifier turns sampled attention into per-tag predictions: it
// attends over the embeddings to build one context vector per tag,
// scores it, and thresholds the log-probability.
type Identifier interface {
	Identify(emb *mat.Dense, mask []int, samples, attns *mat.Dense, gold []int) (InstanceResult, error)
}

// Ensure AttendedBCEIdentifier implements the Identifier interface
var _ Identifier = (*AttendedBCEIdentifier)(nil)

// AttendedBCEIdentifier scores the attended context c_k with one linear
// unit per tag type. A tag is predicted when its log-probability clears
// log(thresh + 1e-5); thresholds are compared in log space the same way
// predictions are reported.
type AttendedBCEIdentifier struct {
	w *mat.Dense // K x D
	b []float64  // K

	thresh    float64
	logThresh float64
}

// NewAttendedBCEIdentifier creates an identifier with seeded Gaussian
// weights. Thresh must lie in (0, 1).
func NewAttendedBCEIdentifier(embDim, numTags int, thresh float64, rng *rand.Rand) (*AttendedBCEIdentifier, error) {
	if thresh <= 0 || thresh >= 1 {
		return nil, fmt.Errorf("threshold %v not in (0, 1)", thresh)
	}
	return &AttendedBCEIdentifier{
		w:         randomDense(numTags, embDim, rng),
		b:         make([]float64, numTags),
		thresh:    thresh,
		logThresh: math.Log(thresh + 1e-5),
	}, nil
}

// Identify builds per-tag contexts from the sampled attention and
// returns logits, log-probabilities, and thresholded predictions. With
// gold bits it also returns the mean BCE loss over tag types. The raw
// attention argument is carried for samplers that separate the two; the
// context uses the sampled distribution.
func (id *AttendedBCEIdentifier) Identify(emb *mat.Dense, mask []int, samples, attns *mat.Dense, gold []int) (InstanceResult, error) {
	numTags, embDim := id.w.Dims()
	s, d := emb.Dims()
	if d != embDim {
		return InstanceResult{}, fmt.Errorf("%w: embedding dim %d, identifier expects %d", ErrDimension, d, embDim)
	}
	sr, sk := samples.Dims()
	if sr != s || sk != numTags {
		return InstanceResult{}, fmt.Errorf("%w: sampled attention is %dx%d, want %dx%d", ErrDimension, sr, sk, s, numTags)
	}
	if len(mask) != s {
		return InstanceResult{}, fmt.Errorf("%w: %d tokens, %d mask entries", ErrDimension, s, len(mask))
	}
	if gold != nil && len(gold) != numTags {
		return InstanceResult{}, fmt.Errorf("%w: %d gold bits, %d tag types", ErrDimension, len(gold), numTags)
	}

	// context = samplesᵀ · emb, one attended row per tag
	context := mat.NewDense(numTags, embDim, nil)
	context.Mul(samples.T(), emb)

	res := InstanceResult{
		Logits:   make([]float64, numTags),
		LogProbs: make([]float64, numTags),
		Preds:    make([]int, numTags),
	}
	var loss float64
	for k := 0; k < numTags; k++ {
		logit := mat.Dot(id.w.RowView(k), context.RowView(k)) + id.b[k]
		res.Logits[k] = logit
		res.LogProbs[k] = LogSigmoid(logit)
		if res.LogProbs[k] > id.logThresh {
			res.Preds[k] = 1
		}
		if gold != nil {
			loss += BCEWithLogits(logit, float64(gold[k]))
		}
	}
	if gold != nil {
		res.Loss = loss / float64(numTags)
		res.HasLoss = true
	}
	return res, nil
}

// Params exposes the scoring parameters for checkpointing.
func (id *AttendedBCEIdentifier) Params() map[string]*mat.Dense {
	return map[string]*mat.Dense{
		"w": id.w,
		"b": mat.NewDense(1, len(id.b), id.b),
	}
}
