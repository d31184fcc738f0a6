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


package mock

import "github.com/questanalytics/questa/ai"

// MockProvider is a test double for ai.AIProvider.
// It aggregates mock embedder, chat model chain, and OCR instances.
type MockProvider struct {
	embedder *MockEmbedder
	chain    []*MockChatModel
	ocr      *MockOCR
}

// NewMockProvider creates a new mock provider with default mock services
// and a single chat model named "mock-primary".
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use GetMockEmbedder()/GetMockChatModels()/GetMockOCR() to access concrete
// types for test assertions.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		embedder: NewMockEmbedder(),
		chain:    []*MockChatModel{NewMockChatModel("mock-primary")},
		ocr:      NewMockOCR(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
// This allows full control over the behavior of each service.
func NewMockProviderWithServices(embedder *MockEmbedder, ocr *MockOCR, chain ...*MockChatModel) ai.AIProvider {
	return &MockProvider{
		embedder: embedder,
		chain:    chain,
		ocr:      ocr,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// ChatModels returns the mock chat model chain in priority order.
func (p *MockProvider) ChatModels() []ai.ChatModel {
	models := make([]ai.ChatModel, len(p.chain))
	for i, m := range p.chain {
		models[i] = m
	}
	return models
}

// OCR returns the mock OCR service, or nil when none was provided.
func (p *MockProvider) OCR() ai.OCRService {
	if p.ocr == nil {
		return nil
	}
	return p.ocr
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockChatModels returns the underlying mock chat models for test assertions.
func (p *MockProvider) GetMockChatModels() []*MockChatModel {
	return p.chain
}

// GetMockOCR returns the underlying mock OCR service for test assertions.
func (p *MockProvider) GetMockOCR() *MockOCR {
	return p.ocr
}
