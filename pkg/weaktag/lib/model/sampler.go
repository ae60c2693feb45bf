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
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// SamplerGumbel is the registry name of the Gumbel-softmax sampler.
const SamplerGumbel = "gumbel"

// Sampler perturbs attention distributions before the identifier
// consumes them. The classifier holds a sampler as an explicit,
// possibly-nil field; when nil, sampled attention equals raw attention.
type Sampler interface {
	Sample(attn *mat.Dense, mask []int) *mat.Dense
}

// Ensure GumbelSampler implements the Sampler interface
var _ Sampler = (*GumbelSampler)(nil)

// GumbelSampler draws a Gumbel-softmax relaxation of each tag's
// attention distribution over the sequence axis. Low temperatures
// concentrate mass; the hard variant emits a one-hot sample.
type GumbelSampler struct {
	temperature float64
	hard        bool
	rng         *rand.Rand
}

// NewGumbelSampler creates a seeded sampler. Temperature must be
// positive.
func NewGumbelSampler(temperature float64, hard bool, rng *rand.Rand) (*GumbelSampler, error) {
	if temperature <= 0 {
		return nil, errors.New("gumbel temperature must be positive")
	}
	return &GumbelSampler{
		temperature: temperature,
		hard:        hard,
		rng:         rng,
	}, nil
}

// Sample perturbs each tag column with Gumbel noise and renormalizes
// over the unmasked positions at the configured temperature.
func (s *GumbelSampler) Sample(attn *mat.Dense, mask []int) *mat.Dense {
	seqLen, numTags := attn.Dims()
	out := mat.NewDense(seqLen, numTags, nil)
	logits := make([]float64, seqLen)
	for k := 0; k < numTags; k++ {
		for t := 0; t < seqLen; t++ {
			if mask[t] == 0 {
				continue
			}
			logits[t] = (math.Log(attn.At(t, k)+1e-20) + GumbelNoise(s.rng)) / s.temperature
		}
		sample := MaskedSoftmax(logits, mask)
		if s.hard {
			sample = oneHotMax(sample, mask)
		}
		for t, v := range sample {
			out.Set(t, k, v)
		}
	}
	return out
}

// oneHotMax puts all mass on the largest unmasked entry.
func oneHotMax(sample []float64, mask []int) []float64 {
	out := make([]float64, len(sample))
	best := -1
	for t, v := range sample {
		if mask[t] == 0 {
			continue
		}
		if best < 0 || v > sample[best] {
			best = t
		}
	}
	if best >= 0 {
		out[best] = 1
	}
	return out
}
