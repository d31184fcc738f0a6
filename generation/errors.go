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


package generation

import "errors"

var (
	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrNoModelsConfigured is returned when the provider carries an
	// empty model chain.
	ErrNoModelsConfigured = errors.New("no chat models configured")

	// ErrAllModelsFailed is returned when every configured model has
	// been tried and failed. It is the only failure surfaced to the
	// end user.
	ErrAllModelsFailed = errors.New("all configured models failed")
)
