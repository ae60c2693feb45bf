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

// GeneratorBasic is the registry name of the feed-forward generator.
const GeneratorBasic = "basic"

// Generator scores every token for every tag type and normalizes the
// scores over the sequence, one distribution per tag. Masked positions
// carry exactly zero attention.
type Generator interface {
	Attend(emb *mat.Dense, mask []int) (*mat.Dense, error)
}

// Ensure BasicGenerator implements the Generator interface
var _ Generator = (*BasicGenerator)(nil)

// BasicGenerator is a two-layer tanh scorer: S x D embeddings in,
// S x K masked attention distributions out.
type BasicGenerator struct {
	w1 *mat.Dense // D x H
	b1 []float64  // H
	w2 *mat.Dense // H x K
	b2 []float64  // K
}

// NewBasicGenerator creates a generator with seeded Gaussian weights.
func NewBasicGenerator(embDim, hiddenDim, numTags int, rng *rand.Rand) *BasicGenerator {
	return &BasicGenerator{
		w1: randomDense(embDim, hiddenDim, rng),
		b1: make([]float64, hiddenDim),
		w2: randomDense(hiddenDim, numTags, rng),
		b2: make([]float64, numTags),
	}
}

// Attend computes raw scores tanh(emb*W1+b1)*W2+b2 and normalizes each
// tag's column over the unmasked positions.
func (g *BasicGenerator) Attend(emb *mat.Dense, mask []int) (*mat.Dense, error) {
	s, d := emb.Dims()
	embDim, hiddenDim := g.w1.Dims()
	_, numTags := g.w2.Dims()
	if d != embDim {
		return nil, fmt.Errorf("%w: embedding dim %d, generator expects %d", ErrDimension, d, embDim)
	}
	if len(mask) != s {
		return nil, fmt.Errorf("%w: %d tokens, %d mask entries", ErrDimension, s, len(mask))
	}

	hidden := mat.NewDense(s, hiddenDim, nil)
	hidden.Mul(emb, g.w1)
	hidden.Apply(func(_, j int, v float64) float64 {
		return math.Tanh(v + g.b1[j])
	}, hidden)

	scores := mat.NewDense(s, numTags, nil)
	scores.Mul(hidden, g.w2)
	scores.Apply(func(_, j int, v float64) float64 {
		return v + g.b2[j]
	}, scores)

	attn := mat.NewDense(s, numTags, nil)
	col := make([]float64, s)
	for k := 0; k < numTags; k++ {
		mat.Col(col, k, scores)
		for t, v := range MaskedSoftmax(col, mask) {
			attn.Set(t, k, v)
		}
	}
	return attn, nil
}

// Params exposes the weight matrices for checkpointing. Biases are
// 1 x N views over the live slices.
func (g *BasicGenerator) Params() map[string]*mat.Dense {
	return map[string]*mat.Dense{
		"w1": g.w1,
		"b1": mat.NewDense(1, len(g.b1), g.b1),
		"w2": g.w2,
		"b2": mat.NewDense(1, len(g.b2), g.b2),
	}
}

// randomDense fills an r x c matrix with scaled Gaussian entries.
func randomDense(r, c int, rng *rand.Rand) *mat.Dense {
	data := make([]float64, r*c)
	scale := 1.0 / math.Sqrt(float64(r))
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	return mat.NewDense(r, c, data)
}
