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
	"errors"
	"fmt"
	"strings"
)

// Coding schemes for span tags.
const (
	SchemeIOB1  = "IOB1"
	SchemeBIOUL = "BIOUL"
)

// ErrInvalidScheme is returned for a coding-scheme name that is neither
// IOB1 nor BIOUL.
var ErrInvalidScheme = errors.New("unknown coding scheme")

// ErrInvalidTagSequence is returned when a tag sequence cannot be parsed
// under the IOB1 scheme.
var ErrInvalidTagSequence = errors.New("invalid tag sequence")

// ValidateScheme checks a coding-scheme name.
func ValidateScheme(scheme string) error {
	switch scheme {
	case SchemeIOB1, SchemeBIOUL:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidScheme, scheme)
	}
}

// ToBIOUL recodes an IOB1 tag sequence into BIOUL. In IOB1, I- opens a
// span after O or a different type, and B- marks a span adjacent to a
// preceding span of the same type. BIOUL distinguishes single-token
// spans (U-) and span ends (L-). Tags other than O, I-*, and B-* make
// the sequence invalid.
func ToBIOUL(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	var span []string

	flush := func() {
		if len(span) == 0 {
			return
		}
		if len(span) == 1 {
			out = append(out, replacePrefix(span[0], "U"))
		} else {
			out = append(out, replacePrefix(span[0], "B"))
			for _, tag := range span[1 : len(span)-1] {
				out = append(out, replacePrefix(tag, "I"))
			}
			out = append(out, replacePrefix(span[len(span)-1], "L"))
		}
		span = span[:0]
	}

	for _, tag := range tags {
		switch {
		case tag == OutsideTag:
			flush()
			out = append(out, tag)
		case strings.HasPrefix(tag, "I-"):
			if len(span) > 0 && EntityType(span[len(span)-1]) != EntityType(tag) {
				flush()
			}
			span = append(span, tag)
		case strings.HasPrefix(tag, "B-"):
			flush()
			span = append(span, tag)
		default:
			return nil, fmt.Errorf("%w: unexpected tag %q", ErrInvalidTagSequence, tag)
		}
	}
	flush()
	return out, nil
}

// replacePrefix swaps the one-letter scheme prefix of a tag, keeping the
// entity type.
func replacePrefix(tag, prefix string) string {
	if _, rest, ok := strings.Cut(tag, "-"); ok {
		return prefix + "-" + rest
	}
	return tag
}
