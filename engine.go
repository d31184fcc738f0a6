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


package questa

import (
	"context"
	"io"
	"log/slog"

	"github.com/questanalytics/questa/ai"
	"github.com/questanalytics/questa/ai/openai"
	"github.com/questanalytics/questa/core"
	"github.com/questanalytics/questa/generation"
	"github.com/questanalytics/questa/index"
	"github.com/questanalytics/questa/index/badger"
	"github.com/questanalytics/questa/ingestion"
	"github.com/questanalytics/questa/reindex"
	"github.com/questanalytics/questa/search"
)

// Engine wires the hybrid index, the AI provider and the domain
// components into a single entry point: ingest documents, ask
// questions, inspect model health.
type Engine struct {
	backend      *badger.Backend
	repo         index.Repository
	provider     ai.AIProvider
	pipeline     *ingestion.Pipeline
	retriever    *search.Retriever
	orchestrator *generation.Orchestrator
	logger       *slog.Logger
}

// IngestReport summarizes an ingestion run across one or more documents.
type IngestReport struct {
	ChunksWritten int
	ChunksSkipped int
	ChunksFailed  int
	Generation    core.GenerationID

	// DocumentErrors maps source paths that could not be ingested to the
	// error that stopped them. A partial batch still succeeds.
	DocumentErrors map[string]error
}

// AskResponse carries the retrieved context alongside the generated answer.
type AskResponse struct {
	Results []*core.RetrievalResult
	Answer  *core.Answer
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig       *ai.Config
	provider       ai.AIProvider
	ingestionOpts  []ingestion.Option
	searchOpts     []search.Option
	generationOpts []generation.Option
}

// WithAIConfig sets the AI service configuration used to build the
// default OpenAI-compatible provider.
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithProvider injects a pre-built AI provider, bypassing the default
// OpenAI-compatible one. The engine takes ownership and closes it.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithIngestionOptions forwards options to the ingestion pipeline.
func WithIngestionOptions(opts ...ingestion.Option) EngineOption {
	return func(o *engineOptions) {
		o.ingestionOpts = append(o.ingestionOpts, opts...)
	}
}

// WithSearchOptions forwards options to the retriever.
func WithSearchOptions(opts ...search.Option) EngineOption {
	return func(o *engineOptions) {
		o.searchOpts = append(o.searchOpts, opts...)
	}
}

// WithGenerationOptions forwards options to the generation orchestrator.
func WithGenerationOptions(opts ...generation.Option) EngineOption {
	return func(o *engineOptions) {
		o.generationOpts = append(o.generationOpts, opts...)
	}
}

// NewEngine opens the index at filePath and assembles the full pipeline.
// The background health probe starts immediately; call Close to stop it
// and release the index.
func NewEngine(filePath string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}

	repo, err := badger.NewRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			repo.Close()
			backend.Close()
			return nil, err
		}
	}

	pipeline, err := ingestion.NewPipeline(repo, provider, options.ingestionOpts...)
	if err != nil {
		provider.Close()
		repo.Close()
		backend.Close()
		return nil, err
	}

	retriever, err := search.NewRetriever(repo, provider, options.searchOpts...)
	if err != nil {
		pipeline.Release()
		provider.Close()
		repo.Close()
		backend.Close()
		return nil, err
	}

	orchestrator, err := generation.NewOrchestrator(provider, options.generationOpts...)
	if err != nil {
		pipeline.Release()
		provider.Close()
		repo.Close()
		backend.Close()
		return nil, err
	}
	orchestrator.Start()

	return &Engine{
		backend:      backend,
		repo:         repo,
		provider:     provider,
		pipeline:     pipeline,
		retriever:    retriever,
		orchestrator: orchestrator,
		logger:       slog.Default(),
	}, nil
}

// Close stops the health probe and releases the pipeline, the provider
// and the index, in that order.
func (e *Engine) Close() error {
	e.orchestrator.Stop()
	e.pipeline.Release()

	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	if err := e.repo.Close(); err != nil {
		e.logger.Error("error closing index repository", "err", err)
		return err
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Ingest runs the given files through extraction, chunking and embedding
// and writes them to the index. With clearPrevious the batch replaces the
// current generation; otherwise it appends idempotently. Per-document
// failures are reported, not fatal, unless every document fails.
func (e *Engine) Ingest(ctx context.Context, paths []string, clearPrevious bool) (*IngestReport, error) {
	summary, failures, err := e.pipeline.IngestFiles(ctx, paths, clearPrevious)
	if err != nil {
		return nil, err
	}
	return &IngestReport{
		ChunksWritten:  summary.Written,
		ChunksSkipped:  summary.Skipped,
		ChunksFailed:   summary.Failed,
		Generation:     summary.Generation,
		DocumentErrors: failures,
	}, nil
}

// Ask retrieves the topK most relevant chunks for the question and
// generates an answer grounded in them.
func (e *Engine) Ask(ctx context.Context, question string, topK int) (*AskResponse, error) {
	results, err := e.retriever.Retrieve(ctx, &core.Query{Text: question, TopK: topK})
	if err != nil {
		return nil, err
	}

	answer, err := e.orchestrator.Generate(ctx, question, results)
	if err != nil {
		return nil, err
	}

	return &AskResponse{
		Results: results,
		Answer:  answer,
	}, nil
}

// Retrieve runs hybrid retrieval without generation.
func (e *Engine) Retrieve(ctx context.Context, query *core.Query) ([]*core.RetrievalResult, error) {
	return e.retriever.Retrieve(ctx, query)
}

// ModelHealth returns a snapshot of every configured model's health,
// primary first.
func (e *Engine) ModelHealth() []*core.ModelHealth {
	return e.orchestrator.ModelHealth()
}

// CheckHealth actively probes every configured model and returns the
// refreshed health table.
func (e *Engine) CheckHealth(ctx context.Context) []*core.ModelHealth {
	return e.orchestrator.CheckModels(ctx)
}

// Reindex re-embeds every chunk of the current generation, writing
// progress to the given writer. Pass a nil config for defaults.
func (e *Engine) Reindex(ctx context.Context, config *reindex.Config, progress io.Writer) error {
	reindexer := reindex.NewReindexer(e.repo, e.provider.Embedder(), config, progress)
	return reindexer.Run(ctx)
}

// Index exposes the underlying index repository.
func (e *Engine) Index() index.Repository {
	return e.repo
}
