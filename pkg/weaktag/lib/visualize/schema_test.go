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

package visualize

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelAcceptsStringAndList(t *testing.T) {
	var l Label
	require.NoError(t, json.Unmarshal([]byte(`"PER"`), &l))
	assert.Equal(t, Label{"PER"}, l)

	require.NoError(t, json.Unmarshal([]byte(`["PER", "ORG"]`), &l))
	assert.Equal(t, Label{"PER", "ORG"}, l)

	first, err := l.First()
	require.NoError(t, err)
	assert.Equal(t, "PER", first)
}

func TestAttnAcceptsListAndMap(t *testing.T) {
	var a Attn
	require.NoError(t, json.Unmarshal([]byte(`[0.1, 0.9]`), &a))
	require.Len(t, a, 1)
	assert.Empty(t, a[0].Tag)
	assert.Equal(t, []float64{0.1, 0.9}, a[0].Weights)

	// Key order in the document is the series order, not lexical order.
	require.NoError(t, json.Unmarshal([]byte(`{"PER": [0.9, 0.1], "LOC": [0.2, 0.8], "ORG": [0.5, 0.5]}`), &a))
	require.Len(t, a, 3)
	assert.Equal(t, "PER", a[0].Tag)
	assert.Equal(t, "LOC", a[1].Tag)
	assert.Equal(t, "ORG", a[2].Tag)

	first, err := a.First()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.1}, first)
}

func TestAttnMarshalKeepsOrder(t *testing.T) {
	a := Attn{
		{Tag: "PER", Weights: []float64{0.9}},
		{Tag: "LOC", Weights: []float64{0.1}},
	}
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `{"PER":[0.9],"LOC":[0.1]}`, string(data))

	bare := Attn{{Weights: []float64{0.3, 0.7}}}
	data, err = json.Marshal(bare)
	require.NoError(t, err)
	assert.Equal(t, `[0.3,0.7]`, string(data))
}

func TestAttnRejectsOtherShapes(t *testing.T) {
	var a Attn
	require.Error(t, json.Unmarshal([]byte(`42`), &a))
	require.Error(t, json.Unmarshal([]byte(`{"PER": "high"}`), &a))
}

func TestRecordsFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.json")
	records := []Record{testRecord()}
	require.NoError(t, SaveRecords(path, records))

	loaded, err := LoadRecords(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, records[0].Text, loaded[0].Text)
	assert.Equal(t, records[0].Pred, loaded[0].Pred)
	assert.Equal(t, records[0].Attn, loaded[0].Attn)
	assert.Equal(t, records[0].PredLabels, loaded[0].PredLabels)
}

func TestLoadRecordsErrors(t *testing.T) {
	_, err := LoadRecords(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
