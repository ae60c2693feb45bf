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

// Package vocab maps tokens to dense ids with fixed padding and
// unknown entries. A vocabulary is fit once over a corpus, persisted
// as JSON next to the model weights, and shared read-only afterwards.
package vocab

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// Reserved entries present in every vocabulary.
const (
	PaddingToken = "@@PADDING@@"
	UnknownToken = "@@UNKNOWN@@"

	PaddingID = 0
	UnknownID = 1
)

// ErrTokenID is returned for a token id outside [0, Size).
var ErrTokenID = errors.New("token id out of range")

// Vocab is an immutable token to id mapping.
type Vocab struct {
	tokens []string
	index  map[string]int
}

// New returns a vocabulary holding only the reserved entries.
func New() *Vocab {
	v := &Vocab{index: make(map[string]int)}
	v.add(PaddingToken)
	v.add(UnknownToken)
	return v
}

// Fit builds a vocabulary from token sequences. Tokens are counted
// case-preserving; tokens seen fewer than minCount times are dropped
// (minCount <= 1 keeps everything). Ordering is by descending count,
// ties broken lexically, so a fit is deterministic.
func Fit(sequences [][]string, minCount int) *Vocab {
	counts := make(map[string]int)
	for _, seq := range sequences {
		for _, tok := range seq {
			counts[tok]++
		}
	}

	kept := make([]string, 0, len(counts))
	for tok, n := range counts {
		if minCount <= 1 || n >= minCount {
			kept = append(kept, tok)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if counts[kept[i]] != counts[kept[j]] {
			return counts[kept[i]] > counts[kept[j]]
		}
		return kept[i] < kept[j]
	})

	v := New()
	for _, tok := range kept {
		v.add(tok)
	}
	return v
}

func (v *Vocab) add(token string) {
	if _, ok := v.index[token]; ok {
		return
	}
	v.index[token] = len(v.tokens)
	v.tokens = append(v.tokens, token)
}

// Size returns the number of entries, reserved ones included.
func (v *Vocab) Size() int {
	return len(v.tokens)
}

// ID returns the id for a token, or UnknownID for absent tokens.
func (v *Vocab) ID(token string) int {
	if id, ok := v.index[token]; ok {
		return id
	}
	return UnknownID
}

// IDs maps a token sequence to ids.
func (v *Vocab) IDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = v.ID(tok)
	}
	return ids
}

// Token returns the token at id.
func (v *Vocab) Token(id int) (string, error) {
	if id < 0 || id >= len(v.tokens) {
		return "", fmt.Errorf("%w: %d not in [0, %d)", ErrTokenID, id, len(v.tokens))
	}
	return v.tokens[id], nil
}

// vocabFile is the on-disk JSON shape.
type vocabFile struct {
	Tokens []string `json:"tokens"`
}

// Save writes the vocabulary as JSON.
func (v *Vocab) Save(path string) error {
	data, err := json.MarshalIndent(vocabFile{Tokens: v.tokens}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode vocabulary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write vocabulary: %w", err)
	}
	return nil
}

// Load reads a vocabulary written by Save, checking the reserved
// entries and rejecting duplicates.
func Load(path string) (*Vocab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	var file vocabFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode vocabulary %s: %w", path, err)
	}
	if len(file.Tokens) < 2 || file.Tokens[PaddingID] != PaddingToken || file.Tokens[UnknownID] != UnknownToken {
		return nil, fmt.Errorf("vocabulary %s missing reserved entries", path)
	}

	v := &Vocab{
		tokens: file.Tokens,
		index:  make(map[string]int, len(file.Tokens)),
	}
	for i, tok := range file.Tokens {
		if _, ok := v.index[tok]; ok {
			return nil, fmt.Errorf("vocabulary %s has duplicate token %q", path, tok)
		}
		v.index[tok] = i
	}
	return v, nil
}
