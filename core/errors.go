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

import "errors"

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidQuery indicates a Query failed validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrEmptyText indicates the Text field is empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrInvalidOrdinal indicates a negative chunk ordinal.
	ErrInvalidOrdinal = errors.New("ordinal cannot be negative")

	// ErrInvalidTopK indicates a non-positive result count.
	ErrInvalidTopK = errors.New("top-k must be positive")

	// ErrInvalidModelState indicates an invalid ModelState value.
	ErrInvalidModelState = errors.New("invalid model state")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")
)
