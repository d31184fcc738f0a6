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


package search

import "errors"

var (
	// ErrIndexRequired is returned when an index reader is not provided.
	ErrIndexRequired = errors.New("index reader required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrIndexUnavailable is returned when both the lexical and the
	// vector path fail; single-path failures degrade instead.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrInvalidWeights is returned when fusion weights are negative or
	// sum to zero.
	ErrInvalidWeights = errors.New("invalid fusion weights")
)
