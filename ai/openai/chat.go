package openai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/questanalytics/questa/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// probePrompt is the lightweight prompt used for reachability probes.
// One output token keeps the probe cheap on every backend.
const probePrompt = "ping"

// ChatModel implements ai.ChatModel using OpenAI-compatible chat APIs.
type ChatModel struct {
	client  llms.Model
	modelID string
	logger  *slog.Logger
}

var _ ai.ChatModel = (*ChatModel)(nil)

// newChatModel is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newChatModel(config *ai.Config, modelID string) (*ChatModel, error) {
	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken("none"),
		openai.WithModel(modelID),
	)
	if err != nil {
		return nil, err
	}

	return &ChatModel{
		client:  client,
		modelID: modelID,
		logger:  slog.Default().With("component", "openai-chat", "model", modelID),
	}, nil
}

// NewChatModel creates a new chat model using the provided configuration.
//
// Returns ai.ChatModel interface to enforce abstraction.
func NewChatModel(config *ai.Config, modelID string) (ai.ChatModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newChatModel(config, modelID)
}

// ModelID returns the configured model identifier.
func (m *ChatModel) ModelID() string {
	return m.modelID
}

// Chat sends a system prompt and a user prompt to the model and returns
// the generated text.
func (m *ChatModel) Chat(ctx context.Context, system, prompt string) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(system),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}

	response, err := m.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		m.logger.Error("failed to generate content", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		m.logger.Warn("model returned no choices")
		return "", errors.New("model returned no choices")
	}

	return response.Choices[0].Content, nil
}

// Probe issues a one-token generation to check reachability.
func (m *ChatModel) Probe(ctx context.Context) error {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(probePrompt),
			},
		},
	}

	_, err := m.client.GenerateContent(ctx, content, llms.WithMaxTokens(1))
	if err != nil {
		m.logger.Debug("probe failed", "err", err)
	}
	return err
}
