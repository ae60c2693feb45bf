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

// Package labels maps entity-type strings to dense indices and converts
// between span-tagging coding schemes.
package labels

import (
	"errors"
	"fmt"
	"strings"
)

// OutsideTag is the no-entity tag. It is never assigned an index.
const OutsideTag = "O"

var (
	// ErrTagIndex is returned when a tag index is outside [0, NumTags).
	ErrTagIndex = errors.New("tag index out of range")

	// ErrBadTagSet is returned when an indexer is constructed from an
	// empty, duplicated, or O-containing type list.
	ErrBadTagSet = errors.New("invalid tag set")
)

// Indexer is a fixed bidirectional mapping between entity types and dense
// integer indices. It is built once and shared read-only afterwards; the
// O tag is excluded from the index space.
type Indexer struct {
	tags  []string
	index map[string]int
}

// NewIndexer builds an indexer over the given entity types in order.
// Types are bare (PER, ORG, ...), not scheme-prefixed tags.
func NewIndexer(tags []string) (*Indexer, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: no entity types", ErrBadTagSet)
	}
	idx := &Indexer{
		tags:  make([]string, len(tags)),
		index: make(map[string]int, len(tags)),
	}
	for i, tag := range tags {
		if tag == "" {
			return nil, fmt.Errorf("%w: empty type at position %d", ErrBadTagSet, i)
		}
		if tag == OutsideTag {
			return nil, fmt.Errorf("%w: %q is not an entity type", ErrBadTagSet, OutsideTag)
		}
		if _, dup := idx.index[tag]; dup {
			return nil, fmt.Errorf("%w: duplicate type %q", ErrBadTagSet, tag)
		}
		idx.tags[i] = tag
		idx.index[tag] = i
	}
	return idx, nil
}

// NumTags returns the number of indexed entity types.
func (ix *Indexer) NumTags() int {
	return len(ix.tags)
}

// Tag returns the entity type at the given index.
func (ix *Indexer) Tag(i int) (string, error) {
	if i < 0 || i >= len(ix.tags) {
		return "", fmt.Errorf("%w: %d not in [0, %d)", ErrTagIndex, i, len(ix.tags))
	}
	return ix.tags[i], nil
}

// Tags returns a copy of the indexed entity types in index order.
func (ix *Indexer) Tags() []string {
	out := make([]string, len(ix.tags))
	copy(out, ix.tags)
	return out
}

// Index derives the multi-label vector for a per-token tag sequence: one
// 0/1 entry per indexed type, set when that type occurs anywhere in the
// sequence. O and types unknown to the indexer contribute nothing.
func (ix *Indexer) Index(tags []string) []int {
	vec := make([]int, len(ix.tags))
	for _, tag := range tags {
		typ := EntityType(tag)
		if typ == OutsideTag {
			continue
		}
		if i, ok := ix.index[typ]; ok {
			vec[i] = 1
		}
	}
	return vec
}

// TagSet lists the entity types present in a tag sequence, in index order.
func (ix *Indexer) TagSet(tags []string) []string {
	vec := ix.Index(tags)
	var out []string
	for i, set := range vec {
		if set == 1 {
			out = append(out, ix.tags[i])
		}
	}
	return out
}

// Extract maps a per-token tag sequence to per-token entity types,
// keeping indexer-known types and collapsing everything else to O.
func (ix *Indexer) Extract(tags []string) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		typ := EntityType(tag)
		if _, ok := ix.index[typ]; ok {
			out[i] = typ
		} else {
			out[i] = OutsideTag
		}
	}
	return out
}

// EntityType strips a one-letter coding-scheme prefix (B-, I-, U-, L-)
// from a tag, returning the bare entity type. O and unprefixed tags pass
// through unchanged.
func EntityType(tag string) string {
	if head, rest, ok := strings.Cut(tag, "-"); ok && len(head) == 1 {
		return rest
	}
	return tag
}
