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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/antflydb/weaktag/pkg/weaktag/lib/labels"
)

// ConfigFileName is the model configuration file inside a model
// directory.
const ConfigFileName = "weaktag_config.json"

// ReaderOptions is the slice of reader configuration a model pins so
// prediction reads corpora the same way the vocabulary was fit.
type ReaderOptions struct {
	// TagLabel selects the gold tag column ("ner", "pos", "chunk").
	TagLabel string `json:"tag_label"`

	// CodingScheme is IOB1 or BIOUL.
	CodingScheme string `json:"coding_scheme"`

	// ConvertNumbers replaces digit runs with the number sentinel.
	ConvertNumbers bool `json:"convert_numbers"`

	// MaxSentenceLength windows longer sentences. Non-positive
	// disables windowing.
	MaxSentenceLength int `json:"max_sentence_length"`
}

// Config holds parsed configuration for a weaktag model.
type Config struct {
	// Labels are the entity types in index order. O is implicit and
	// never listed.
	Labels []string `json:"labels"`

	// EmbeddingDim is the token embedding width.
	EmbeddingDim int `json:"embedding_dim"`

	// HiddenDim is the generator's hidden layer width.
	HiddenDim int `json:"hidden_dim"`

	// Generator, Sampler, and Identifier name registry entries. An
	// empty Sampler disables sampling.
	Generator  string `json:"generator"`
	Sampler    string `json:"sampler"`
	Identifier string `json:"identifier"`

	// Threshold is the prediction probability threshold (0, 1),
	// compared in log space as log(threshold + 1e-5).
	Threshold float64 `json:"threshold"`

	// Temperature is the Gumbel-softmax temperature.
	Temperature float64 `json:"temperature"`

	// HardSample switches the Gumbel sampler to one-hot samples.
	HardSample bool `json:"hard_sample"`

	// Seed drives parameter initialization and sampling.
	Seed int64 `json:"seed"`

	// MinCount drops corpus tokens seen fewer times when fitting the
	// vocabulary.
	MinCount int `json:"min_count"`

	// Reader pins the corpus reading options.
	Reader ReaderOptions `json:"reader"`
}

// DefaultConfig returns sensible defaults for a weaktag model.
func DefaultConfig() Config {
	return Config{
		Labels:       []string{"PER", "ORG", "LOC", "MISC"},
		EmbeddingDim: 50,
		HiddenDim:    64,
		Generator:    GeneratorBasic,
		Sampler:      "",
		Identifier:   IdentifierAttendedBCE,
		Threshold:    0.5,
		Temperature:  0.67,
		HardSample:   false,
		Seed:         13,
		MinCount:     1,
		Reader: ReaderOptions{
			TagLabel:          "ner",
			CodingScheme:      labels.SchemeIOB1,
			ConvertNumbers:    false,
			MaxSentenceLength: -1,
		},
	}
}

// LoadConfig loads and parses configuration from a model directory,
// applying file values over the defaults.
func LoadConfig(modelDir string) (*Config, error) {
	config := DefaultConfig()

	path := filepath.Join(modelDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model config: %w", err)
	}
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse model config %s: %w", path, err)
	}

	if len(raw.Labels) > 0 {
		config.Labels = raw.Labels
	}
	if raw.EmbeddingDim > 0 {
		config.EmbeddingDim = raw.EmbeddingDim
	}
	if raw.HiddenDim > 0 {
		config.HiddenDim = raw.HiddenDim
	}
	if raw.Generator != "" {
		config.Generator = raw.Generator
	}
	if raw.Sampler != "" {
		config.Sampler = raw.Sampler
	}
	if raw.Identifier != "" {
		config.Identifier = raw.Identifier
	}
	if raw.Threshold > 0 {
		config.Threshold = raw.Threshold
	}
	if raw.Temperature > 0 {
		config.Temperature = raw.Temperature
	}
	if raw.HardSample {
		config.HardSample = true
	}
	if raw.Seed != 0 {
		config.Seed = raw.Seed
	}
	if raw.MinCount > 0 {
		config.MinCount = raw.MinCount
	}
	if raw.Reader.TagLabel != "" {
		config.Reader.TagLabel = raw.Reader.TagLabel
	}
	if raw.Reader.CodingScheme != "" {
		config.Reader.CodingScheme = raw.Reader.CodingScheme
	}
	if raw.Reader.ConvertNumbers {
		config.Reader.ConvertNumbers = true
	}
	if raw.Reader.MaxSentenceLength != 0 {
		config.Reader.MaxSentenceLength = raw.Reader.MaxSentenceLength
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("model config %s: %w", path, err)
	}
	return &config, nil
}

// rawConfig represents the weaktag_config.json structure.
type rawConfig struct {
	Labels       []string `json:"labels"`
	EmbeddingDim int      `json:"embedding_dim"`
	HiddenDim    int      `json:"hidden_dim"`
	Generator    string   `json:"generator"`
	Sampler      string   `json:"sampler"`
	Identifier   string   `json:"identifier"`
	Threshold    float64  `json:"threshold"`
	Temperature  float64  `json:"temperature"`
	HardSample   bool     `json:"hard_sample"`
	Seed         int64    `json:"seed"`
	MinCount     int      `json:"min_count"`
	Reader       struct {
		TagLabel          string `json:"tag_label"`
		CodingScheme      string `json:"coding_scheme"`
		ConvertNumbers    bool   `json:"convert_numbers"`
		MaxSentenceLength int    `json:"max_sentence_length"`
	} `json:"reader"`
}

// Save writes the configuration into a model directory.
func (c *Config) Save(modelDir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model config: %w", err)
	}
	path := filepath.Join(modelDir, ConfigFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write model config: %w", err)
	}
	return nil
}

// Validate checks the architecture names and numeric ranges.
func (c *Config) Validate() error {
	if len(c.Labels) == 0 {
		return errors.New("config needs at least one label")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding_dim %d must be positive", c.EmbeddingDim)
	}
	if c.HiddenDim <= 0 {
		return fmt.Errorf("hidden_dim %d must be positive", c.HiddenDim)
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("threshold %v not in (0, 1)", c.Threshold)
	}
	if _, ok := generatorRegistry[c.Generator]; !ok {
		return fmt.Errorf("unknown generator type: %q", c.Generator)
	}
	if c.Sampler != "" {
		if _, ok := samplerRegistry[c.Sampler]; !ok {
			return fmt.Errorf("unknown sampler type: %q", c.Sampler)
		}
		if c.Temperature <= 0 {
			return fmt.Errorf("temperature %v must be positive", c.Temperature)
		}
	}
	if _, ok := identifierRegistry[c.Identifier]; !ok {
		return fmt.Errorf("unknown identifier type: %q", c.Identifier)
	}
	if c.Reader.CodingScheme != "" {
		if err := labels.ValidateScheme(c.Reader.CodingScheme); err != nil {
			return err
		}
	}
	return nil
}
