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
)

// Component registries map configuration names to constructors. They
// are resolved at config-load time; an unknown name is a configuration
// error, never a runtime dispatch failure.

type generatorCtor func(cfg *Config, rng *rand.Rand) (Generator, error)
type samplerCtor func(cfg *Config, rng *rand.Rand) (Sampler, error)
type identifierCtor func(cfg *Config, rng *rand.Rand) (Identifier, error)

var generatorRegistry = map[string]generatorCtor{
	GeneratorBasic: func(cfg *Config, rng *rand.Rand) (Generator, error) {
		return NewBasicGenerator(cfg.EmbeddingDim, cfg.HiddenDim, len(cfg.Labels), rng), nil
	},
}

var samplerRegistry = map[string]samplerCtor{
	SamplerGumbel: func(cfg *Config, rng *rand.Rand) (Sampler, error) {
		return NewGumbelSampler(cfg.Temperature, cfg.HardSample, rng)
	},
}

var identifierRegistry = map[string]identifierCtor{
	IdentifierAttendedBCE: func(cfg *Config, rng *rand.Rand) (Identifier, error) {
		return NewAttendedBCEIdentifier(cfg.EmbeddingDim, len(cfg.Labels), cfg.Threshold, rng)
	},
}

func newGenerator(name string, cfg *Config, rng *rand.Rand) (Generator, error) {
	ctor, ok := generatorRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown generator type: %q", name)
	}
	return ctor(cfg, rng)
}

func newSampler(name string, cfg *Config, rng *rand.Rand) (Sampler, error) {
	ctor, ok := samplerRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown sampler type: %q", name)
	}
	return ctor(cfg, rng)
}

func newIdentifier(name string, cfg *Config, rng *rand.Rand) (Identifier, error) {
	ctor, ok := identifierRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown identifier type: %q", name)
	}
	return ctor(cfg, rng)
}
