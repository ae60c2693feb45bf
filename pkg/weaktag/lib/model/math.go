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
	"math"
	"math/rand"
)

// MaskedSoftmax normalizes scores over the positions where mask is
// nonzero. Masked positions come out exactly 0 and never influence the
// normalization. An all-masked input yields all zeros.
func MaskedSoftmax(scores []float64, mask []int) []float64 {
	out := make([]float64, len(scores))

	// Find max over unmasked positions for numerical stability
	maxVal := math.Inf(-1)
	for i, v := range scores {
		if mask[i] != 0 && v > maxVal {
			maxVal = v
		}
	}
	if math.IsInf(maxVal, -1) {
		return out
	}

	var sum float64
	for i, v := range scores {
		if mask[i] == 0 {
			continue
		}
		out[i] = math.Exp(v - maxVal)
		sum += out[i]
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	}
	return out
}

// Sigmoid returns 1/(1+exp(-x)).
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// LogSigmoid returns log(sigmoid(x)) without overflowing for large
// negative x.
func LogSigmoid(x float64) float64 {
	if x >= 0 {
		return -math.Log1p(math.Exp(-x))
	}
	return x - math.Log1p(math.Exp(x))
}

// BCEWithLogits returns the binary cross-entropy between a logit and a
// 0/1 target, computed in the stable max(x,0) - x*y + log(1+exp(-|x|))
// form.
func BCEWithLogits(logit, target float64) float64 {
	loss := -logit*target + math.Log1p(math.Exp(-math.Abs(logit)))
	if logit > 0 {
		loss += logit
	}
	return loss
}

// GumbelNoise draws one sample from the standard Gumbel distribution.
func GumbelNoise(rng *rand.Rand) float64 {
	u := rng.Float64()
	return -math.Log(-math.Log(u + 1e-20))
}
