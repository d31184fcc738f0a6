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


// Package ai provides abstractions for the AI services used by questa.
//
// This package defines interfaces for text embeddings, chat generation and
// OCR fallback. It follows the dependency inversion principle, allowing
// the core domain and business logic to depend on abstractions rather
// than concrete implementations.
//
// # Design Principles
//
// The package is designed around four key interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - ChatModel: Answers a prompt via a single language model endpoint
//   - OCRService: Extracts text from scanned documents
//   - AIProvider: Aggregates AI services for convenient initialization
//
// # Implementation Packages
//
// The ai package includes three implementation sub-packages:
//
//   - ai/openai: Production embedder and chat models using OpenAI-compatible APIs
//   - ai/ocr: HTTP client for a self-hosted OCR sidecar service
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types to enforce abstraction and prevent accidental coupling to
// concrete implementations.
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
// Test utility constructors (mock.NewMockEmbedder, mock.NewMockChatModel)
// return CONCRETE types to enable test assertions and behavior injection
// via the mock's public fields and methods.
package ai
