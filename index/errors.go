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


package index

import "errors"

var (
	// ErrNotFound indicates that the requested chunk was not found in
	// the current generation.
	ErrNotFound = errors.New("chunk not found")

	// ErrWriteFailed indicates that a batch write failed and was rolled
	// back; the previously current generation remains current.
	ErrWriteFailed = errors.New("index write failed")

	// ErrIndexClosed indicates that the index backend is closed.
	ErrIndexClosed = errors.New("index is closed")

	// ErrEmptyBatch indicates a clear-write was requested with no chunks.
	ErrEmptyBatch = errors.New("empty chunk batch")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrVectorDimension indicates a vector whose dimension does not
	// match the rest of the generation.
	ErrVectorDimension = errors.New("vector dimension mismatch")
)
