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


package ai

import (
	"errors"
	"strings"
	"time"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// ChatHost is the base URL for the chat/generation service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	ChatHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// ChatModels lists the generation models in priority order: the
	// primary first, then fallbacks. At least one is required.
	// Example: ["qwen2.5:7b", "qwen2.5:3b"]
	ChatModels []string

	// OCRHost is the base URL of the OCR sidecar service used as the
	// extraction fallback for scanned documents. Empty disables OCR.
	OCRHost string

	// RequestTimeout bounds a single model invocation. On timeout the
	// orchestrator fails over to the next model in the chain.
	// Default: 60s
	RequestTimeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithChatHost sets the chat service host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithHost sets both embedding and chat hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ChatHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithChatModels sets the generation model chain in priority order.
func WithChatModels(models ...string) ConfigOption {
	return func(c *Config) {
		c.ChatModels = models
	}
}

// WithOCRHost sets the OCR sidecar host URL. An empty host disables the
// OCR extraction fallback.
func WithOCRHost(host string) ConfigOption {
	return func(c *Config) {
		c.OCRHost = host
	}
}

// WithRequestTimeout sets the per-invocation timeout for model calls.
func WithRequestTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = timeout
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, both embedding and chat use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:  defaultHost,
		ChatHost:       defaultHost,
		EmbeddingModel: "embeddinggemma",
		ChatModels:     []string{"qwen2.5:7b", "qwen2.5:3b"},
		RequestTimeout: 60 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
// This is the recommended way to create a Config with custom settings.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithChatModels("qwen2.5:7b", "llama3.2:3b"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to model hosts if missing, which is
// required by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
// The OCR host is left untouched; OCR sidecars are not OpenAI-shaped.
func (c *Config) Normalize() {
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
	if c.ChatHost != "" && !strings.HasSuffix(c.ChatHost, "/v1") {
		c.ChatHost = strings.TrimSuffix(c.ChatHost, "/")
		c.ChatHost = c.ChatHost + "/v1"
	}
	c.OCRHost = strings.TrimSuffix(c.OCRHost, "/")
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.ChatHost == "" {
		return errors.New("ai config: ChatHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if len(c.ChatModels) == 0 {
		return errors.New("ai config: at least one chat model is required")
	}
	for _, m := range c.ChatModels {
		if m == "" {
			return errors.New("ai config: chat model name cannot be empty")
		}
	}
	if c.RequestTimeout <= 0 {
		return errors.New("ai config: RequestTimeout must be positive")
	}
	return nil
}
