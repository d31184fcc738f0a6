// Copyright 2026 Quest Analytics
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


package ingestion

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// chunkSpan is a chunk of text attributed to the page it was cut from.
type chunkSpan struct {
	text string
	page int
}

// splitPages cuts page texts into overlapping chunks. Splitting happens
// per page so every chunk keeps an unambiguous page attribution; overlap
// applies within a page.
func splitPages(pages []Page, chunkSize, chunkOverlap int) ([]chunkSpan, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	var spans []chunkSpan
	for _, page := range pages {
		text := normalizeText(page.Text)
		if text == "" {
			continue
		}

		pieces, err := splitter.SplitText(text)
		if err != nil {
			return nil, err
		}
		for _, piece := range pieces {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			spans = append(spans, chunkSpan{text: piece, page: page.Number})
		}
	}
	return spans, nil
}

// normalizeText collapses runs of whitespace into single spaces.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
