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
	"fmt"
	"html"
	"io"
	"math"
	"os"
	"strings"

	"github.com/antflydb/weaktag/pkg/weaktag/lib/labels"
)

// Highlight colors for the prediction/gold overlay.
const (
	// ColorAgree marks tokens where prediction and gold carry the same
	// entity type.
	ColorAgree = "#e0ff4f"
	// ColorMissed marks tokens predicted outside but tagged in gold.
	ColorMissed = "#d2405f"
	// ColorSpurious marks tokens predicted with a type where gold is
	// outside.
	ColorSpurious = "#712f79"
	// ColorOutside is the base for tokens both sides leave untagged;
	// the attention weight becomes its alpha channel.
	ColorOutside = "#22aadd"
)

const (
	correctColor   = "#8dde28"
	incorrectColor = "#e93f3f"
)

// RenderFile writes the HTML report for records to path.
func RenderFile(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	return Render(f, records)
}

// Render writes the HTML report for records. Every record is validated
// first, so a malformed record fails the render before any output.
func Render(w io.Writer, records []Record) error {
	bodies := make([]string, len(records))
	for i, rec := range records {
		body, err := renderRecord(rec)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		bodies[i] = body
	}

	var page strings.Builder
	page.WriteString(pageHeader())
	for _, body := range bodies {
		page.WriteString(body)
	}
	page.WriteString("</body></html>")

	if _, err := io.WriteString(w, page.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func renderRecord(rec Record) (string, error) {
	weights, err := rec.Attn.First()
	if err != nil {
		return "", err
	}
	if len(rec.Text) != len(weights) ||
		len(rec.Text) != len(rec.PredLabels) ||
		len(rec.Text) != len(rec.GoldLabels) {
		return "", fmt.Errorf("%w: %d tokens, %d weights, %d pred tags, %d gold tags",
			ErrRecordShape, len(rec.Text), len(weights), len(rec.PredLabels), len(rec.GoldLabels))
	}
	pred, err := rec.Pred.First()
	if err != nil {
		return "", err
	}
	gold, err := rec.Gold.First()
	if err != nil {
		return "", err
	}

	spans := make([]string, len(rec.Text))
	for i := range rec.Text {
		span, err := tokenSpan(rec.Text[i], weights[i], rec.PredLabels[i], rec.GoldLabels[i])
		if err != nil {
			return "", fmt.Errorf("token %d: %w", i, err)
		}
		spans[i] = span
	}

	verdict := "correct"
	if pred != gold {
		verdict = "incorrect"
	}
	return fmt.Sprintf("%s<%s> %s  %s </%s><br>",
		strings.Join(spans, " "), verdict, html.EscapeString(pred), html.EscapeString(gold), verdict), nil
}

func tokenSpan(word string, weight float64, predTag, goldTag string) (string, error) {
	color, err := tokenColor(weight, predTag, goldTag)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		`<div class="tooltip">`+
			`<span style="background-color:%s">%s</span>`+
			`<span class="tooltiptext">%2.2f</span>`+
			`</div>`,
		color, html.EscapeString(word), weight), nil
}

// tokenColor applies the overlay color table. Prefixed tags collapse to
// their entity type before comparison. Two different non-outside types
// at one position have no defined color and fail the render.
func tokenColor(weight float64, predTag, goldTag string) (string, error) {
	pred := labels.EntityType(predTag)
	gold := labels.EntityType(goldTag)
	switch {
	case pred == gold && pred != labels.OutsideTag:
		return ColorAgree, nil
	case pred == gold:
		return fmt.Sprintf("%s%02x", ColorOutside, int(math.Abs(weight)*255)), nil
	case pred == labels.OutsideTag:
		return ColorMissed, nil
	case gold == labels.OutsideTag:
		return ColorSpurious, nil
	default:
		return "", fmt.Errorf("%w: prediction %q and gold %q disagree on type", ErrRecordShape, predTag, goldTag)
	}
}

func pageHeader() string {
	return fmt.Sprintf(`<html>
<head>
<style>
correct { color: %s; padding-right: 5px; padding-left: 5px }
incorrect { color: %s; padding-right: 5px; padding-left: 5px }
body { color: #000000 }
.tooltip { position: relative; display: inline-block; }
.tooltip .tooltiptext {
  visibility: hidden;
  width: 120px;
  background-color: black;
  color: #fff;
  text-align: center;
  border-radius: 6px;
  padding: 5px 0;
  position: absolute;
  z-index: 1;
  top: 150%%;
  left: 50%%;
  margin-left: -60px;
}
.tooltip .tooltiptext::after {
  content: " ";
  position: absolute;
  bottom: 100%%;
  left: 50%%;
  margin-left: -5px;
  border-width: 5px;
  border-style: solid;
  border-color: transparent transparent black transparent;
}
.tooltip:hover .tooltiptext { visibility: visible; }
</style>
</head>
<body>Key:</br>
<span style="background-color:%s; padding-left: 10px; padding-right: 10px; color:white">Pred tag, Gold no tag</span></br>
<span style="background-color:%s; padding-left: 10px; padding-right: 10px; color:white">Pred no tag, Gold tag</span></br>
<span style="background-color:%s; padding-left: 10px; padding-right: 10px; color:black">Both Correct tag</span></br>
</br>
`, correctColor, incorrectColor, ColorSpurious, ColorMissed, ColorAgree)
}
