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

package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIndexerRejectsBadSets(t *testing.T) {
	_, err := NewIndexer(nil)
	require.ErrorIs(t, err, ErrBadTagSet)

	_, err = NewIndexer([]string{"PER", "O"})
	require.ErrorIs(t, err, ErrBadTagSet)

	_, err = NewIndexer([]string{"PER", "PER"})
	require.ErrorIs(t, err, ErrBadTagSet)

	_, err = NewIndexer([]string{"PER", ""})
	require.ErrorIs(t, err, ErrBadTagSet)
}

func TestIndexerTagRoundTrip(t *testing.T) {
	ix, err := NewIndexer([]string{"PER", "ORG", "LOC", "MISC"})
	require.NoError(t, err)
	require.Equal(t, 4, ix.NumTags())

	for i, want := range []string{"PER", "ORG", "LOC", "MISC"} {
		got, err := ix.Tag(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = ix.Tag(4)
	require.ErrorIs(t, err, ErrTagIndex)
	_, err = ix.Tag(-1)
	require.ErrorIs(t, err, ErrTagIndex)
}

func TestIndexDerivesMultiLabelVector(t *testing.T) {
	ix, err := NewIndexer([]string{"PER", "ORG", "LOC"})
	require.NoError(t, err)

	vec := ix.Index([]string{"B-PER", "I-PER", "O", "U-LOC", "O"})
	assert.Equal(t, []int{1, 0, 1}, vec)

	// O and unknown types never set a bit.
	vec = ix.Index([]string{"O", "O", "B-MISC"})
	assert.Equal(t, []int{0, 0, 0}, vec)
}

func TestIndexTagSetRoundTrip(t *testing.T) {
	ix, err := NewIndexer([]string{"PER", "ORG", "LOC"})
	require.NoError(t, err)

	// Every type recovered from the indexed vector matches the source
	// sequence's constituent types, and O is never among them.
	tags := []string{"I-ORG", "I-ORG", "O", "B-PER", "I-PER"}
	set := ix.TagSet(tags)
	assert.Equal(t, []string{"PER", "ORG"}, set)
	assert.NotContains(t, set, OutsideTag)
}

func TestExtractCollapsesToTypes(t *testing.T) {
	ix, err := NewIndexer([]string{"PER"})
	require.NoError(t, err)

	got := ix.Extract([]string{"B-PER", "I-PER", "O", "B-ORG"})
	assert.Equal(t, []string{"PER", "PER", "O", "O"}, got)
}

func TestEntityType(t *testing.T) {
	cases := map[string]string{
		"B-PER":  "PER",
		"I-ORG":  "ORG",
		"U-LOC":  "LOC",
		"L-MISC": "MISC",
		"O":      "O",
		"PER":    "PER",
	}
	for tag, want := range cases {
		assert.Equal(t, want, EntityType(tag), "tag %q", tag)
	}
}
