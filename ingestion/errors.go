package ingestion

import "errors"

var (
	// ErrIndexRequired is returned when an index writer is not provided.
	ErrIndexRequired = errors.New("index writer required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrUnsupportedFormat is returned for document types without an extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrUnreadableDocument is returned when a document cannot be parsed.
	ErrUnreadableDocument = errors.New("unreadable document")

	// ErrEmptyDocument is returned when both native extraction and OCR
	// yield no text.
	ErrEmptyDocument = errors.New("document produced no text")

	// ErrEmbeddingFailed is returned when embedding generation fails
	// permanently; the whole batch is aborted and nothing is written.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)
