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

package conll

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadMaskVocab reads a mask vocabulary file with one token per line.
// Tokens are lowercased; blank lines and lines starting with # are
// skipped.
func LoadMaskVocab(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mask vocabulary: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tok := strings.TrimSpace(scanner.Text())
		if tok == "" || strings.HasPrefix(tok, "#") {
			continue
		}
		vocab[strings.ToLower(tok)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mask vocabulary: %w", err)
	}
	return vocab, nil
}
