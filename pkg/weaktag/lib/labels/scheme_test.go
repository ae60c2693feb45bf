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

	"github.com/stretchr/testify/require"
)

func TestValidateScheme(t *testing.T) {
	require.NoError(t, ValidateScheme(SchemeIOB1))
	require.NoError(t, ValidateScheme(SchemeBIOUL))
	require.ErrorIs(t, ValidateScheme("BIO"), ErrInvalidScheme)
}

func TestToBIOUL(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "empty",
			in:   []string{},
			want: []string{},
		},
		{
			name: "all outside",
			in:   []string{"O", "O", "O"},
			want: []string{"O", "O", "O"},
		},
		{
			name: "single token span",
			in:   []string{"O", "I-PER", "O"},
			want: []string{"O", "U-PER", "O"},
		},
		{
			name: "two token span",
			in:   []string{"I-PER", "I-PER"},
			want: []string{"B-PER", "L-PER"},
		},
		{
			name: "long span",
			in:   []string{"I-ORG", "I-ORG", "I-ORG", "I-ORG"},
			want: []string{"B-ORG", "I-ORG", "I-ORG", "L-ORG"},
		},
		{
			name: "type change splits spans",
			in:   []string{"I-PER", "I-ORG"},
			want: []string{"U-PER", "U-ORG"},
		},
		{
			name: "explicit boundary splits same type",
			in:   []string{"I-ORG", "B-ORG", "I-ORG"},
			want: []string{"U-ORG", "B-ORG", "L-ORG"},
		},
		{
			name: "trailing span is closed",
			in:   []string{"O", "I-LOC", "I-LOC"},
			want: []string{"O", "B-LOC", "L-LOC"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBIOUL(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestToBIOULRejectsUnknownTags(t *testing.T) {
	_, err := ToBIOUL([]string{"I-PER", "E-PER"})
	require.ErrorIs(t, err, ErrInvalidTagSequence)

	_, err = ToBIOUL([]string{"MISC"})
	require.ErrorIs(t, err, ErrInvalidTagSequence)
}
