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


package openai

import (
	"log/slog"

	"github.com/questanalytics/questa/ai"
	"github.com/questanalytics/questa/ai/ocr"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
// It manages the embedder, the ordered chat model chain, and the
// optional OCR sidecar client.
type Provider struct {
	config   *ai.Config
	embedder *Embedder
	chain    []ai.ChatModel
	ocr      ai.OCRService
	logger   *slog.Logger
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Create embedder (using internal constructor for concrete type)
	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	// Create the chat model chain in priority order
	chain := make([]ai.ChatModel, 0, len(config.ChatModels))
	for _, modelID := range config.ChatModels {
		model, err := newChatModel(config, modelID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, model)
	}

	// OCR is optional; an empty host disables the fallback
	var ocrService ai.OCRService
	if config.OCRHost != "" {
		ocrService = ocr.NewClient(config.OCRHost, config.RequestTimeout)
	}

	return &Provider{
		config:   config,
		embedder: embedder,
		chain:    chain,
		ocr:      ocrService,
		logger:   slog.Default().With("component", "openai-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// ChatModels returns the configured models in priority order.
func (p *Provider) ChatModels() []ai.ChatModel {
	return p.chain
}

// OCR returns the OCR fallback service, or nil when none is configured.
func (p *Provider) OCR() ai.OCRService {
	return p.ocr
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
