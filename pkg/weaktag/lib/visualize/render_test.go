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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() Record {
	return Record{
		Text:       []string{"Peter", "visited", "Berlin"},
		Pred:       Label{"PER"},
		Gold:       Label{"PER"},
		Attn:       Attn{{Tag: "PER", Weights: []float64{0.9, 0.05, 0.05}}},
		PredLabels: []string{"PER", "O", "O"},
		GoldLabels: []string{"PER", "O", "O"},
	}
}

func TestRenderColorsByAgreement(t *testing.T) {
	rec := testRecord()
	rec.PredLabels = []string{"B-PER", "O", "PER"}
	rec.GoldLabels = []string{"I-PER", "PER", "O"}

	var out strings.Builder
	require.NoError(t, Render(&out, []Record{rec}))
	page := out.String()

	// Same type agrees regardless of scheme prefix; a missed token gets
	// the gold-only color and a spurious one the prediction-only color.
	assert.Contains(t, page, `background-color:`+ColorAgree+`">Peter<`)
	assert.Contains(t, page, `background-color:`+ColorMissed+`">visited<`)
	assert.Contains(t, page, `background-color:`+ColorSpurious+`">Berlin<`)
}

func TestRenderOutsideAlphaTracksAttention(t *testing.T) {
	rec := testRecord()
	rec.Attn = Attn{{Tag: "PER", Weights: []float64{0.9, 0.5, 0.0}}}
	rec.PredLabels = []string{"PER", "O", "O"}
	rec.GoldLabels = []string{"PER", "O", "O"}

	var out strings.Builder
	require.NoError(t, Render(&out, []Record{rec}))
	page := out.String()

	assert.Contains(t, page, ColorOutside+`7f">visited<`)
	assert.Contains(t, page, ColorOutside+`00">Berlin<`)
}

func TestRenderTooltipAndFooter(t *testing.T) {
	var out strings.Builder
	require.NoError(t, Render(&out, []Record{testRecord()}))
	page := out.String()

	assert.Contains(t, page, `<span class="tooltiptext">0.90</span>`)
	assert.Contains(t, page, "<correct> PER  PER </correct><br>")
	assert.True(t, strings.HasPrefix(page, "<html>"))
	assert.True(t, strings.HasSuffix(page, "</body></html>"))

	rec := testRecord()
	rec.Pred = Label{"ORG"}
	rec.PredLabels = []string{"O", "O", "O"}
	rec.GoldLabels = []string{"O", "O", "O"}
	out.Reset()
	require.NoError(t, Render(&out, []Record{rec}))
	assert.Contains(t, out.String(), "<incorrect> ORG  PER </incorrect><br>")
}

func TestRenderEscapesTokens(t *testing.T) {
	rec := testRecord()
	rec.Text = []string{"<script>", "&", "Berlin"}

	var out strings.Builder
	require.NoError(t, Render(&out, []Record{rec}))
	page := out.String()

	assert.Contains(t, page, "&lt;script&gt;")
	assert.Contains(t, page, ">&amp;<")
	assert.NotContains(t, page, "<script>")
}

func TestRenderRejectsLengthMismatch(t *testing.T) {
	rec := testRecord()
	rec.Attn = Attn{{Tag: "PER", Weights: []float64{0.9, 0.1}}}

	var out strings.Builder
	err := Render(&out, []Record{testRecord(), rec})
	require.ErrorIs(t, err, ErrRecordShape)
	assert.Empty(t, out.String())
}

func TestRenderRejectsConflictingTypes(t *testing.T) {
	rec := testRecord()
	rec.PredLabels = []string{"PER", "O", "O"}
	rec.GoldLabels = []string{"ORG", "O", "O"}

	var out strings.Builder
	err := Render(&out, []Record{rec})
	require.ErrorIs(t, err, ErrRecordShape)
	assert.Contains(t, err.Error(), "disagree")
	assert.Empty(t, out.String())
}

func TestRenderRejectsEmptyLabel(t *testing.T) {
	rec := testRecord()
	rec.Pred = Label{}

	var out strings.Builder
	err := Render(&out, []Record{rec})
	require.ErrorIs(t, err, ErrRecordShape)
}

func TestRenderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, RenderFile(path, []Record{testRecord()}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), ColorAgree)
}
