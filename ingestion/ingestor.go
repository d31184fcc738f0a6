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


package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/questanalytics/questa/ai"
	"github.com/questanalytics/questa/core"
)

const (
	// DefaultChunkSize is the chunk window in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the overlap between adjacent chunks in characters.
	DefaultChunkOverlap = 200
	// DefaultMinNativeChars is the native-extraction character count below
	// which a document is treated as scanned and routed to OCR.
	DefaultMinNativeChars = 100
)

// Ingestor turns raw documents into chunk batches. It extracts text with
// format-native parsers, falls back to OCR for scanned documents, splits
// the text into overlapping chunks, and attaches heuristic metadata.
// It never touches the index; persistence is the pipeline's concern.
type Ingestor struct {
	ocr            ai.OCRService
	chunkSize      int
	chunkOverlap   int
	minNativeChars int
	logger         *slog.Logger
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithChunking sets the chunk window and overlap in characters.
func WithChunking(size, overlap int) IngestorOption {
	return func(ig *Ingestor) {
		if size > 0 {
			ig.chunkSize = size
		}
		if overlap >= 0 && overlap < ig.chunkSize {
			ig.chunkOverlap = overlap
		}
	}
}

// WithMinNativeChars sets the OCR fallback threshold.
func WithMinNativeChars(chars int) IngestorOption {
	return func(ig *Ingestor) {
		if chars >= 0 {
			ig.minNativeChars = chars
		}
	}
}

// WithIngestorLogger sets a custom logger.
func WithIngestorLogger(logger *slog.Logger) IngestorOption {
	return func(ig *Ingestor) {
		if logger != nil {
			ig.logger = logger
		}
	}
}

// NewIngestor creates an Ingestor. The OCR service may be nil, in which
// case scanned documents fail with ErrEmptyDocument instead of falling back.
func NewIngestor(ocr ai.OCRService, opts ...IngestorOption) *Ingestor {
	ig := &Ingestor{
		ocr:            ocr,
		chunkSize:      DefaultChunkSize,
		chunkOverlap:   DefaultChunkOverlap,
		minNativeChars: DefaultMinNativeChars,
		logger:         slog.Default().With("component", "ingestor"),
	}
	for _, opt := range opts {
		opt(ig)
	}
	return ig
}

// IngestFile reads a document from disk and ingests it.
func (ig *Ingestor) IngestFile(ctx context.Context, path string) (*core.ChunkBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}
	return ig.Ingest(ctx, path, data)
}

// Ingest produces a chunk batch from in-memory document bytes. The source
// name selects the extractor by extension and becomes the document's
// source metadata.
func (ig *Ingestor) Ingest(ctx context.Context, source string, data []byte) (*core.ChunkBatch, error) {
	pages, err := ig.extract(ctx, source, data)
	if err != nil {
		return nil, err
	}

	metadata := inferMetadata(source, pages)

	spans, err := splitPages(pages, ig.chunkSize, ig.chunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}
	if len(spans) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, source)
	}

	docID := core.IDFromContent(string(data))
	document := &core.Document{
		Id:         docID,
		Source:     source,
		Title:      metadata["title"],
		IngestedAt: time.Now().UTC(),
	}

	chunks := make([]*core.Chunk, len(spans))
	for i, span := range spans {
		chunks[i] = &core.Chunk{
			Id:         core.ChunkID(docID, i),
			DocumentId: docID,
			Ordinal:    i,
			Text:       span.text,
			Page:       span.page,
		}
	}

	ig.logger.Info("document ingested",
		"source", source,
		"pages", len(pages),
		"chunks", len(chunks))

	return &core.ChunkBatch{
		Document: document,
		Chunks:   chunks,
		Metadata: metadata,
	}, nil
}

// extract runs native extraction and decides whether OCR is needed.
// A native result below the character threshold signals a scanned or
// image-only document.
func (ig *Ingestor) extract(ctx context.Context, source string, data []byte) ([]Page, error) {
	pages, err := extractNative(source, data)
	if err != nil {
		return nil, err
	}

	chars := totalChars(pages)
	if chars >= ig.minNativeChars {
		return pages, nil
	}

	if ig.ocr == nil {
		if chars == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, source)
		}
		return pages, nil
	}

	ig.logger.Info("native extraction below threshold, running OCR",
		"source", source,
		"chars", chars,
		"threshold", ig.minNativeChars)

	ocrPages, err := ig.ocr.ExtractText(ctx, source, data)
	if err != nil {
		// OCR is a fallback; a sparse native result still beats failing.
		if chars > 0 {
			ig.logger.Warn("OCR failed, keeping native extraction", "source", source, "error", err)
			return pages, nil
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrEmptyDocument, source, err)
	}

	result := make([]Page, len(ocrPages))
	for i, text := range ocrPages {
		result[i] = Page{Number: i + 1, Text: text}
	}
	if totalChars(result) == 0 {
		if chars > 0 {
			return pages, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, source)
	}
	return result, nil
}
