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
	"encoding/gob"
	"fmt"
	"os"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// WeightsFileName is the parameter checkpoint inside a model directory.
const WeightsFileName = "weights.gob"

// Parameterized components expose named parameter matrices for
// checkpointing. Loading writes through the returned matrices, so they
// must reference live storage.
type Parameterized interface {
	Params() map[string]*mat.Dense
}

// matrixData is the gob shape of one parameter matrix.
type matrixData struct {
	Rows, Cols int
	Data       []float64
}

// params collects every component's parameters under a stable prefix.
func (c *Classifier) params() map[string]*mat.Dense {
	out := make(map[string]*mat.Dense)
	add := func(prefix string, p Parameterized) {
		for name, m := range p.Params() {
			out[prefix+"."+name] = m
		}
	}
	add("embedder", c.embedder)
	if p, ok := c.generator.(Parameterized); ok {
		add("generator", p)
	}
	if p, ok := c.sampler.(Parameterized); ok {
		add("sampler", p)
	}
	if p, ok := c.identifier.(Parameterized); ok {
		add("identifier", p)
	}
	return out
}

// SaveWeights writes all parameters as a gob checkpoint.
func (c *Classifier) SaveWeights(path string) error {
	stored := make(map[string]matrixData)
	for name, m := range c.params() {
		r, cols := m.Dims()
		data := make([]float64, 0, r*cols)
		for i := 0; i < r; i++ {
			data = append(data, m.RawRowView(i)...)
		}
		stored[name] = matrixData{Rows: r, Cols: cols, Data: data}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(stored); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return nil
}

// LoadWeights restores all parameters from a gob checkpoint. The
// checkpoint must carry exactly the model's parameter set with matching
// shapes.
func (c *Classifier) LoadWeights(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	var stored map[string]matrixData
	if err := gob.NewDecoder(f).Decode(&stored); err != nil {
		return fmt.Errorf("decode checkpoint %s: %w", path, err)
	}

	params := c.params()
	for name, dst := range params {
		src, ok := stored[name]
		if !ok {
			return fmt.Errorf("checkpoint %s missing parameter %q", path, name)
		}
		r, cols := dst.Dims()
		if src.Rows != r || src.Cols != cols || len(src.Data) != r*cols {
			return fmt.Errorf("%w: parameter %q is %dx%d in checkpoint, model wants %dx%d",
				ErrDimension, name, src.Rows, src.Cols, r, cols)
		}
		dst.Copy(mat.NewDense(src.Rows, src.Cols, src.Data))
	}

	if len(stored) != len(params) {
		extra := make([]string, 0, len(stored))
		for name := range stored {
			if _, ok := params[name]; !ok {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		return fmt.Errorf("checkpoint %s carries unknown parameters: %v", path, extra)
	}
	return nil
}
