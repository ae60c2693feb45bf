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

// Package visualize renders decoded predictions as a static HTML report
// with per-token attention coloring, and defines the prediction record
// schema the report is built from.
package visualize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrRecordShape reports a prediction record whose fields cannot be
// rendered together.
var ErrRecordShape = errors.New("malformed prediction record")

// Record is one decoded instance in a predictions file. Pred and Gold
// carry sentence-level labels; PredLabels and GoldLabels carry one tag
// per token.
type Record struct {
	Text       []string `json:"text"`
	Pred       Label    `json:"pred"`
	Gold       Label    `json:"gold"`
	Attn       Attn     `json:"attn"`
	PredLabels []string `json:"pred_labels"`
	GoldLabels []string `json:"gold_labels"`
}

// Label is a sentence-level annotation. Files written by older runs
// store a bare string, newer ones a list; both decode into the list
// form.
type Label []string

// First returns the leading label. Reports render the leading label
// only.
func (l Label) First() (string, error) {
	if len(l) == 0 {
		return "", fmt.Errorf("%w: empty label", ErrRecordShape)
	}
	return l[0], nil
}

func (l *Label) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Label{s}
		return nil
	}
	var ss []string
	if err := json.Unmarshal(data, &ss); err != nil {
		return err
	}
	*l = Label(ss)
	return nil
}

// Series is one tag's per-token attention weights.
type Series struct {
	Tag     string
	Weights []float64
}

// Attn is an instance's attention, either a single unlabeled weight
// sequence or one sequence per tag in tag-index order. The JSON form is
// a bare list for a single unlabeled series and an object otherwise;
// object key order is preserved on both sides.
type Attn []Series

// First returns the leading series' weights. Reports color tokens by
// the leading series only.
func (a Attn) First() ([]float64, error) {
	if len(a) == 0 {
		return nil, fmt.Errorf("%w: no attention weights", ErrRecordShape)
	}
	return a[0].Weights, nil
}

func (a Attn) MarshalJSON() ([]byte, error) {
	if len(a) == 1 && a[0].Tag == "" {
		return json.Marshal(a[0].Weights)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Tag)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(s.Weights)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *Attn) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var ws []float64
		if err := json.Unmarshal(trimmed, &ws); err != nil {
			return err
		}
		*a = Attn{{Weights: ws}}
		return nil
	}

	// Objects are walked token by token so series keep document order,
	// which encoding/json maps would lose.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("attention must be a weight list or a tag map")
	}
	out := Attn{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		tag, ok := tok.(string)
		if !ok {
			return fmt.Errorf("attention map key is not a string")
		}
		var ws []float64
		if err := dec.Decode(&ws); err != nil {
			return err
		}
		out = append(out, Series{Tag: tag, Weights: ws})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*a = out
	return nil
}

// LoadRecords reads a predictions JSON file.
func LoadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read predictions: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse predictions %s: %w", path, err)
	}
	return records, nil
}

// SaveRecords writes a predictions JSON file.
func SaveRecords(path string, records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode predictions: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}
	return nil
}
