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

// Package conll reads CoNLL-2003 style corpora into weakly labeled
// instances: a token window, its gold tag sequence, and a sentence-level
// multi-label vector derived through a labels.Indexer.
package conll

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/antflydb/weaktag/pkg/weaktag/lib/labels"
)

// NumberToken replaces every digit run inside a token when number
// conversion is enabled.
const NumberToken = "@0@"

// Tag column names accepted by ReaderConfig.TagLabel and FeatureLabels.
const (
	TagLabelNER   = "ner"
	TagLabelPOS   = "pos"
	TagLabelChunk = "chunk"
)

// Feature namespaces carried on Instance.Features.
const (
	FeaturePOSTags   = "pos_tags"
	FeatureChunkTags = "chunk_tags"
	FeatureNERTags   = "ner_tags"
)

var (
	// ErrColumnCount is returned when a corpus line does not carry 3
	// (token POS NER) or 4 (token POS chunk NER) whitespace-separated
	// columns, or when a requested column is absent.
	ErrColumnCount = errors.New("unexpected column count")

	// ErrLengthMismatch is returned when an emitted instance fails the
	// token/tag length check.
	ErrLengthMismatch = errors.New("token/tag length mismatch")

	// ErrWindowTooLong is returned when an emitted instance exceeds the
	// configured maximum sentence length.
	ErrWindowTooLong = errors.New("window exceeds max sentence length")
)

var digitRun = regexp.MustCompile(`[0-9]+`)

var validLabels = map[string]bool{
	TagLabelNER:   true,
	TagLabelPOS:   true,
	TagLabelChunk: true,
}

// Instance is one (possibly windowed) sentence.
type Instance struct {
	// Tokens is the ordered token sequence, after any number conversion.
	Tokens []string

	// Tags is the gold per-token tag sequence for the configured tag
	// label, same length as Tokens.
	Tags []string

	// AttnMask marks tokens belonging to the mask vocabulary with 1.
	AttnMask []int

	// Labels is the multi-label bit vector over the indexer's tag types,
	// derived from the NER tags. Nil when no indexer is configured.
	Labels []int

	// Features holds auxiliary per-token tag sequences keyed by
	// namespace (FeaturePOSTags, FeatureChunkTags, FeatureNERTags).
	// Nil when no feature labels are configured.
	Features map[string][]string
}

// ReadStats summarizes one corpus read.
type ReadStats struct {
	// Sentences is the number of divider-delimited sentences parsed.
	Sentences int

	// Windows is the number of instances emitted after windowing.
	Windows int

	// Corrections is the number of leading I- tags rewritten to B-.
	Corrections int
}

// ReaderConfig contains configuration for the corpus reader.
type ReaderConfig struct {
	// TagLabel selects which tag column becomes the instance's gold
	// tag sequence: "ner", "pos", or "chunk".
	TagLabel string

	// FeatureLabels lists tag columns carried as auxiliary features,
	// each a subset of {"ner", "pos", "chunk"}.
	FeatureLabels []string

	// CodingScheme recodes NER and chunk tags: "IOB1" passes tags
	// through unchanged, "BIOUL" converts them.
	CodingScheme string

	// ConvertNumbers replaces digit runs inside tokens with NumberToken.
	ConvertNumbers bool

	// MaxSentenceLength splits longer sentences into consecutive
	// non-overlapping windows of this size. Zero or negative disables
	// windowing.
	MaxSentenceLength int

	// MaskVocab is an optional lowercase token set marked in AttnMask.
	MaskVocab map[string]struct{}

	// Indexer derives the multi-label vector from NER tags. Optional.
	Indexer *labels.Indexer

	// Logger for read progress and corrections. Defaults to a no-op.
	Logger *zap.Logger
}

// DefaultReaderConfig returns the defaults for the corpus reader.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		TagLabel:          TagLabelNER,
		CodingScheme:      labels.SchemeIOB1,
		MaxSentenceLength: -1,
	}
}

// Reader parses CoNLL-style corpora. Safe for reuse across files; a
// Reader is never mutated by Read.
type Reader struct {
	config   ReaderConfig
	features map[string]bool
	logger   *zap.Logger
}

// NewReader creates a corpus reader.
func NewReader(config ReaderConfig) (*Reader, error) {
	// Apply defaults for zero values
	if config.TagLabel == "" {
		config.TagLabel = TagLabelNER
	}
	if config.CodingScheme == "" {
		config.CodingScheme = labels.SchemeIOB1
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	// Validate config
	if !validLabels[config.TagLabel] {
		return nil, fmt.Errorf("unknown tag label type: %q", config.TagLabel)
	}
	features := make(map[string]bool, len(config.FeatureLabels))
	for _, label := range config.FeatureLabels {
		if !validLabels[label] {
			return nil, fmt.Errorf("unknown feature label type: %q", label)
		}
		features[label] = true
	}
	if err := labels.ValidateScheme(config.CodingScheme); err != nil {
		return nil, err
	}

	return &Reader{
		config:   config,
		features: features,
		logger:   config.Logger,
	}, nil
}

// Read parses the corpus at path into instances. Any format error or
// invariant violation aborts the read with zero instances.
func (r *Reader) Read(path string) ([]Instance, ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadStats{}, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	r.logger.Info("reading instances", zap.String("path", path))
	return r.read(f, path)
}

// row is one non-divider corpus line with its 1-based line number.
type row struct {
	fields []string
	num    int
}

func (r *Reader) read(src io.Reader, path string) ([]Instance, ReadStats, error) {
	var (
		instances []Instance
		stats     ReadStats
		rows      []row
	)

	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		emitted, err := r.sentence(rows, path)
		if err != nil {
			return err
		}
		stats.Sentences++
		stats.Windows += len(emitted)
		instances = append(instances, emitted...)
		rows = rows[:0]
		return nil
	}

	scanner := bufio.NewScanner(src)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if isDivider(line) {
			if err := flush(); err != nil {
				return nil, ReadStats{}, err
			}
			continue
		}
		rows = append(rows, row{fields: strings.Fields(line), num: lineno})
	}
	if err := scanner.Err(); err != nil {
		return nil, ReadStats{}, fmt.Errorf("read corpus: %w", err)
	}
	if err := flush(); err != nil {
		return nil, ReadStats{}, err
	}

	// Every instance must survive the length checks before anything is
	// returned; a violation is a corpus or windowing bug.
	for i := range instances {
		inst := &instances[i]
		if len(inst.Tokens) != len(inst.Tags) {
			return nil, ReadStats{}, fmt.Errorf("%w: instance %d has %d tokens and %d tags",
				ErrLengthMismatch, i, len(inst.Tokens), len(inst.Tags))
		}
		if r.config.MaxSentenceLength > 0 && len(inst.Tokens) > r.config.MaxSentenceLength {
			return nil, ReadStats{}, fmt.Errorf("%w: instance %d has %d tokens, max %d",
				ErrWindowTooLong, i, len(inst.Tokens), r.config.MaxSentenceLength)
		}
		// A window must not open with a span continuation.
		if strings.HasPrefix(inst.Tags[0], "I-") {
			inst.Tags[0] = "B-" + inst.Tags[0][len("I-"):]
			stats.Corrections++
			r.logger.Info("corrected leading continuation tag",
				zap.String("path", path), zap.Int("instance", i), zap.String("tag", inst.Tags[0]))
		}
	}

	return instances, stats, nil
}

// sentence turns one divider-delimited group of rows into instances,
// windowing when a maximum sentence length is configured.
func (r *Reader) sentence(rows []row, path string) ([]Instance, error) {
	width := len(rows[0].fields)
	if width != 3 && width != 4 {
		return nil, fmt.Errorf("%w: line %d has %d columns", ErrColumnCount, rows[0].num, width)
	}
	if width == 3 && (r.config.TagLabel == TagLabelChunk || r.features[TagLabelChunk]) {
		return nil, fmt.Errorf("%w: chunk tags requested but line %d has 3 columns",
			ErrColumnCount, rows[0].num)
	}

	tokens := make([]string, len(rows))
	marks := make([]int, len(rows))
	pos := make([]string, len(rows))
	ner := make([]string, len(rows))
	var chunk []string
	if width == 4 {
		chunk = make([]string, len(rows))
	}
	for i, rw := range rows {
		if len(rw.fields) != width {
			return nil, fmt.Errorf("%w: line %d has %d columns, line %d has %d",
				ErrColumnCount, rows[0].num, width, rw.num, len(rw.fields))
		}
		tok := rw.fields[0]
		if r.config.ConvertNumbers {
			tok = digitRun.ReplaceAllString(tok, NumberToken)
		}
		tokens[i] = tok
		if _, ok := r.config.MaskVocab[strings.ToLower(tok)]; ok {
			marks[i] = 1
		}
		pos[i] = rw.fields[1]
		ner[i] = rw.fields[width-1]
		if chunk != nil {
			chunk[i] = rw.fields[2]
		}
	}

	step := len(tokens)
	if r.config.MaxSentenceLength > 0 {
		step = r.config.MaxSentenceLength
		if len(tokens) > step {
			r.logger.Warn("sentence longer than max length, splitting",
				zap.String("path", path), zap.Int("line", rows[0].num),
				zap.Int("length", len(tokens)), zap.Int("max", step))
		}
	}

	instances := make([]Instance, 0, (len(tokens)+step-1)/step)
	for start := 0; start < len(tokens); start += step {
		end := min(start+step, len(tokens))
		var chunkWin []string
		if chunk != nil {
			chunkWin = chunk[start:end]
		}
		inst, err := r.window(tokens[start:end], marks[start:end], pos[start:end], chunkWin, ner[start:end])
		if err != nil {
			return nil, fmt.Errorf("sentence at line %d: %w", rows[0].num, err)
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// window builds one instance from already-sliced sentence columns.
func (r *Reader) window(tokens []string, marks []int, pos, chunk, ner []string) (Instance, error) {
	codedNER := ner
	codedChunk := chunk
	if r.config.CodingScheme == labels.SchemeBIOUL {
		var err error
		codedNER, err = labels.ToBIOUL(ner)
		if err != nil {
			return Instance{}, fmt.Errorf("recode ner tags: %w", err)
		}
		if chunk != nil {
			codedChunk, err = labels.ToBIOUL(chunk)
			if err != nil {
				return Instance{}, fmt.Errorf("recode chunk tags: %w", err)
			}
		}
	}

	inst := Instance{
		Tokens:   tokens,
		AttnMask: marks,
	}

	if len(r.features) > 0 {
		inst.Features = make(map[string][]string, len(r.features))
		if r.features[TagLabelPOS] {
			inst.Features[FeaturePOSTags] = pos
		}
		if r.features[TagLabelChunk] {
			inst.Features[FeatureChunkTags] = codedChunk
		}
		if r.features[TagLabelNER] {
			inst.Features[FeatureNERTags] = codedNER
		}
	}

	// Tags gets its own copy so the post-read correction never leaks
	// into a feature sequence sharing the same backing array.
	switch r.config.TagLabel {
	case TagLabelNER:
		inst.Tags = append([]string(nil), codedNER...)
	case TagLabelPOS:
		inst.Tags = append([]string(nil), pos...)
	case TagLabelChunk:
		inst.Tags = append([]string(nil), codedChunk...)
	}

	if r.config.Indexer != nil {
		inst.Labels = r.config.Indexer.Index(codedNER)
	}
	return inst, nil
}

// isDivider reports whether a corpus line separates sentences: blank
// lines and -DOCSTART- headers do.
func isDivider(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	return fields[0] == "-DOCSTART-"
}
