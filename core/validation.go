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


package core

import (
	"fmt"
	"time"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - Ordinal must not be negative
//
// NOT validated (populated later in the pipeline):
//   - Id (derived from document hash + ordinal at batch build time)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyText)
	}

	if chunk.Ordinal < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrInvalidOrdinal)
	}

	return nil
}

// ValidateQuery validates a Query according to domain rules.
func ValidateQuery(query *Query) error {
	if query == nil {
		return fmt.Errorf("%w: query is nil", ErrInvalidQuery)
	}

	if query.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrEmptyText)
	}

	if query.TopK <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrInvalidTopK)
	}

	return nil
}

// ValidateModelState validates that a ModelState has a valid value.
func ValidateModelState(state ModelState) error {
	if state != StateHealthy && state != StateDegraded && state != StateUnreachable {
		return fmt.Errorf("%w: value %d", ErrInvalidModelState, state)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
