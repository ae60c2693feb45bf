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
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Embedder is a token id lookup table over dense vectors.
type Embedder struct {
	weights *mat.Dense // V x D
}

// NewEmbedder creates a lookup table of vocabSize rows and dim columns
// with seeded Gaussian entries.
func NewEmbedder(vocabSize, dim int, rng *rand.Rand) *Embedder {
	data := make([]float64, vocabSize*dim)
	for i := range data {
		data[i] = rng.NormFloat64() * 0.1
	}
	return &Embedder{weights: mat.NewDense(vocabSize, dim, data)}
}

// Dim returns the embedding dimension.
func (e *Embedder) Dim() int {
	_, d := e.weights.Dims()
	return d
}

// VocabSize returns the number of rows in the table.
func (e *Embedder) VocabSize() int {
	v, _ := e.weights.Dims()
	return v
}

// Embed returns the S x D embedding matrix for a token id sequence.
func (e *Embedder) Embed(ids []int) (*mat.Dense, error) {
	v, d := e.weights.Dims()
	out := mat.NewDense(len(ids), d, nil)
	for i, id := range ids {
		if id < 0 || id >= v {
			return nil, fmt.Errorf("%w: token id %d not in [0, %d)", ErrDimension, id, v)
		}
		out.SetRow(i, e.weights.RawRowView(id))
	}
	return out, nil
}

// Params exposes the table for checkpointing.
func (e *Embedder) Params() map[string]*mat.Dense {
	return map[string]*mat.Dense{"weight": e.weights}
}
