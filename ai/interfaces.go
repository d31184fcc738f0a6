package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatModel is a single language model endpoint capable of answering a
// prompt. Implementations must be thread-safe for concurrent use.
type ChatModel interface {
	// ModelID returns the stable identifier of this model, used for
	// health tracking and answer attribution.
	ModelID() string

	// Chat sends a system prompt and a user prompt to the model and
	// returns the generated text. The call blocks until the model
	// responds, the context is cancelled, or the call fails.
	Chat(ctx context.Context, system, prompt string) (string, error)

	// Probe issues a lightweight low-cost call to check reachability.
	// It must be cheap enough to run on a fixed interval.
	Probe(ctx context.Context) error
}

// OCRService extracts text from a scanned or image-based document.
// It is the fallback path when native text extraction comes up short.
type OCRService interface {
	// ExtractText runs OCR over the raw document bytes and returns the
	// recognized text per page, in page order.
	ExtractText(ctx context.Context, filename string, data []byte) ([]string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages the embedder, the ordered chat model
// chain, and the optional OCR service, ensuring they share configuration.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// ChatModels returns the configured language models in priority
	// order: the primary first, then fallbacks.
	ChatModels() []ChatModel

	// OCR returns the OCR fallback service, or nil when none is configured.
	OCR() OCRService

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
