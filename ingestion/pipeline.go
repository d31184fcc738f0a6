package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/questanalytics/questa/ai"
	"github.com/questanalytics/questa/core"
	"github.com/questanalytics/questa/index"
)

// Pipeline orchestrates the write path: extraction, embedding, and index
// writes. Documents in a batch are processed concurrently; the index write
// itself is a single call so that session resets swap atomically.
type Pipeline struct {
	ingestor *Ingestor
	embedder ai.Embedder
	writer   index.Writer
	pool     *ants.Pool
	logger   *slog.Logger

	embedAttempts  int
	embedBaseDelay time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent document processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithEmbedRetry configures transient-failure retries for embedding calls.
func WithEmbedRetry(attempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if attempts < 1 {
			return ai.ErrInvalidMaxAttempts
		}
		p.embedAttempts = attempts
		p.embedBaseDelay = baseDelay
		return nil
	}
}

// WithIngestor replaces the default Ingestor, e.g. to change chunking.
func WithIngestor(ingestor *Ingestor) Option {
	return func(p *Pipeline) error {
		if ingestor != nil {
			p.ingestor = ingestor
		}
		return nil
	}
}

// NewPipeline creates an ingestion pipeline writing to the given index.
func NewPipeline(writer index.Writer, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if writer == nil {
		return nil, ErrIndexRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		ingestor:       NewIngestor(provider.OCR()),
		embedder:       provider.Embedder(),
		writer:         writer,
		pool:           pool,
		logger:         slog.Default().With("component", "ingestion"),
		embedAttempts:  3,
		embedBaseDelay: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// IngestDocument ingests a single in-memory document and writes its chunks.
// With clearPrevious set, the document becomes the sole content of a fresh
// generation.
func (p *Pipeline) IngestDocument(ctx context.Context, source string, data []byte, clearPrevious bool) (*index.WriteSummary, error) {
	indexed, err := p.prepareDocument(ctx, source, data)
	if err != nil {
		return nil, err
	}
	return p.writer.Write(ctx, indexed, clearPrevious)
}

// IngestFiles ingests a batch of files. Documents are extracted and
// embedded concurrently; failures are reported per document and do not
// abort the rest of the batch. All surviving chunks go to the index in
// one write, so a session reset covers the whole batch atomically.
// Returns the write summary and the per-document errors keyed by path.
func (p *Pipeline) IngestFiles(ctx context.Context, paths []string, clearPrevious bool) (*index.WriteSummary, map[string]error, error) {
	type result struct {
		path   string
		chunks []*core.IndexedChunk
		err    error
	}

	results := make([]result, len(paths))
	var wg sync.WaitGroup

	for i, path := range paths {
		i, path := i, path
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			chunks, err := p.prepareFile(ctx, path)
			results[i] = result{path: path, chunks: chunks, err: err}
		})
		if submitErr != nil {
			results[i] = result{path: path, err: submitErr}
			wg.Done()
		}
	}
	wg.Wait()

	failures := make(map[string]error)
	var all []*core.IndexedChunk
	for _, res := range results {
		if res.err != nil {
			p.logger.Error("document ingestion failed", "source", res.path, "err", res.err)
			failures[res.path] = res.err
			continue
		}
		all = append(all, res.chunks...)
	}

	if len(all) == 0 {
		if len(failures) > 0 {
			return nil, failures, fmt.Errorf("%w: no document in batch produced chunks", ErrEmptyDocument)
		}
		return &index.WriteSummary{}, failures, nil
	}

	summary, err := p.writer.Write(ctx, all, clearPrevious)
	if err != nil {
		return nil, failures, err
	}
	return summary, failures, nil
}

// prepareFile reads, extracts, and embeds one document.
func (p *Pipeline) prepareFile(ctx context.Context, path string) ([]*core.IndexedChunk, error) {
	batch, err := p.ingestor.IngestFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return p.embedBatch(ctx, batch)
}

// prepareDocument extracts and embeds one in-memory document.
func (p *Pipeline) prepareDocument(ctx context.Context, source string, data []byte) ([]*core.IndexedChunk, error) {
	batch, err := p.ingestor.Ingest(ctx, source, data)
	if err != nil {
		return nil, err
	}
	return p.embedBatch(ctx, batch)
}

// embedBatch generates one vector per chunk, preserving order. A permanent
// embedding failure aborts the whole document; nothing partial is returned.
func (p *Pipeline) embedBatch(ctx context.Context, batch *core.ChunkBatch) ([]*core.IndexedChunk, error) {
	texts := make([]string, len(batch.Chunks))
	for i, chunk := range batch.Chunks {
		texts[i] = chunk.Text
	}

	var vectors [][]float32
	err := ai.RetryWithBackoff(ctx, func() error {
		var embedErr error
		vectors, embedErr = p.embedder.EmbedTexts(ctx, texts)
		return embedErr
	}, p.embedAttempts, p.embedBaseDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	if len(vectors) != len(batch.Chunks) {
		return nil, fmt.Errorf("%w: expected %d vectors, received %d",
			ErrEmbeddingFailed, len(batch.Chunks), len(vectors))
	}

	indexed := make([]*core.IndexedChunk, len(batch.Chunks))
	for i, chunk := range batch.Chunks {
		indexed[i] = &core.IndexedChunk{
			Id:         chunk.Id,
			DocumentId: chunk.DocumentId,
			Ordinal:    chunk.Ordinal,
			Text:       chunk.Text,
			Page:       chunk.Page,
			Vector:     vectors[i],
			Metadata:   batch.Metadata,
			Timestamp:  batch.Document.IngestedAt,
		}
	}
	return indexed, nil
}
