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


package search

import (
	"context"
	"log/slog"

	"github.com/questanalytics/questa/ai"
	"github.com/questanalytics/questa/core"
	"github.com/questanalytics/questa/index"
)

const (
	// DefaultSparseWeight and DefaultDenseWeight are the fusion weights.
	// Dense gets the edge: paraphrased questions carry little vocabulary
	// overlap with the source text.
	DefaultSparseWeight = 0.4
	DefaultDenseWeight  = 0.6

	// DefaultOversampleFactor controls how many candidates each path
	// returns relative to the requested top-k, giving fusion enough
	// overlap between the two lists to be meaningful.
	DefaultOversampleFactor = 4
)

// Retriever runs hybrid retrieval over the current index generation:
// independent lexical and vector queries, score fusion, and an optional
// reranking stage that fails open.
type Retriever struct {
	reader           index.Reader
	embedder         ai.Embedder
	reranker         Reranker
	fusionMode       FusionMode
	sparseWeight     float64
	denseWeight      float64
	oversampleFactor int
	logger           *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithFusionWeights sets the sparse and dense fusion weights.
func WithFusionWeights(sparse, dense float64) Option {
	return func(r *Retriever) error {
		if sparse < 0 || dense < 0 || sparse+dense == 0 {
			return ErrInvalidWeights
		}
		r.sparseWeight = sparse
		r.denseWeight = dense
		return nil
	}
}

// WithFusionMode selects weighted or reciprocal-rank fusion.
func WithFusionMode(mode FusionMode) Option {
	return func(r *Retriever) error {
		r.fusionMode = mode
		return nil
	}
}

// WithOversampleFactor sets the per-path candidate multiplier.
func WithOversampleFactor(factor int) Option {
	return func(r *Retriever) error {
		if factor > 0 {
			r.oversampleFactor = factor
		}
		return nil
	}
}

// WithReranker replaces the default keyword-overlap reranker. Passing
// nil disables reranking entirely.
func WithReranker(reranker Reranker) Option {
	return func(r *Retriever) error {
		r.reranker = reranker
		return nil
	}
}

// NewRetriever creates a hybrid retriever.
func NewRetriever(reader index.Reader, provider ai.AIProvider, opts ...Option) (*Retriever, error) {
	if reader == nil {
		return nil, ErrIndexRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	r := &Retriever{
		reader:           reader,
		embedder:         provider.Embedder(),
		fusionMode:       FusionWeighted,
		sparseWeight:     DefaultSparseWeight,
		denseWeight:      DefaultDenseWeight,
		oversampleFactor: DefaultOversampleFactor,
		reranker:         &KeywordOverlapReranker{},
		logger:           slog.Default().With("component", "retriever"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Retrieve runs hybrid retrieval for the query.
// Returns up to query.TopK results, best first, with full score provenance.
func (r *Retriever) Retrieve(ctx context.Context, query *core.Query) ([]*core.RetrievalResult, error) {
	return r.RetrieveWithMonitor(ctx, query, nil)
}

// RetrieveWithMonitor runs hybrid retrieval with monitoring.
// The monitor receives callbacks at each stage of the retrieval process.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, query *core.Query, monitor RetrievalMonitor) ([]*core.RetrievalResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}

	monitor.Start(query.Text)

	candidateLimit := query.TopK * r.oversampleFactor

	// The two paths are independent; one failing degrades retrieval to
	// the other instead of failing the request.
	lexicalHits, lexicalErr := r.reader.SearchLexical(ctx, index.Tokenize(query.Text), candidateLimit)
	if lexicalErr != nil {
		r.logger.Warn("lexical search failed, degrading to dense-only", "err", lexicalErr)
		monitor.LexicalSearchDegraded(lexicalErr)
		lexicalHits = nil
	} else {
		monitor.AfterLexicalSearch(lexicalHits)
	}

	vectorHits, vectorErr := r.vectorSearch(ctx, query.Text, candidateLimit)
	if vectorErr != nil {
		r.logger.Warn("vector search failed, degrading to sparse-only", "err", vectorErr)
		monitor.VectorSearchDegraded(vectorErr)
		vectorHits = nil
	} else {
		monitor.AfterVectorSearch(vectorHits)
	}

	if lexicalErr != nil && vectorErr != nil {
		return nil, ErrIndexUnavailable
	}

	results := fuseCandidates(lexicalHits, vectorHits, r.fusionMode, r.sparseWeight, r.denseWeight)

	results, err := r.hydrate(ctx, results, query.Filters)
	if err != nil {
		return nil, err
	}

	rankResults(results)
	if len(results) > query.TopK {
		results = results[:query.TopK]
	}
	monitor.AfterFusion(results)

	if r.reranker != nil && len(results) > 1 {
		reranked, rerankErr := r.reranker.Rerank(ctx, query.Text, results)
		if rerankErr != nil || len(reranked) != len(results) {
			// Fail open: the fused ordering stands.
			r.logger.Warn("reranker failed, keeping fused order", "err", rerankErr)
			monitor.RerankFailedOpen(rerankErr)
		} else {
			results = reranked
			for i, result := range results {
				result.Rank = i + 1
			}
		}
	}

	monitor.Finish(results)
	return results, nil
}

// vectorSearch embeds the query text and runs the dense path.
func (r *Retriever) vectorSearch(ctx context.Context, text string, limit int) ([]*index.VectorHit, error) {
	embedding, err := r.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	return r.reader.SearchVector(ctx, embedding, limit)
}

// hydrate attaches full chunks to the fused candidates and applies
// metadata equality filters. Candidates whose chunks vanished (a swap
// racing the query) are dropped.
func (r *Retriever) hydrate(ctx context.Context, results []*core.RetrievalResult, filters map[string]string) ([]*core.RetrievalResult, error) {
	if len(results) == 0 {
		return results, nil
	}

	ids := make([]core.ID, len(results))
	for i, result := range results {
		ids[i] = result.Chunk.Id
	}

	chunks, err := r.reader.GetChunks(ctx, ids...)
	if err != nil {
		return nil, err
	}
	byID := make(map[core.ID]*core.IndexedChunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.Id] = chunk
	}

	kept := results[:0]
	for _, result := range results {
		chunk, ok := byID[result.Chunk.Id]
		if !ok {
			continue
		}
		if !matchesFilters(chunk, filters) {
			continue
		}
		result.Chunk = chunk
		kept = append(kept, result)
	}
	return kept, nil
}

// matchesFilters checks metadata equality filters against a chunk.
func matchesFilters(chunk *core.IndexedChunk, filters map[string]string) bool {
	for key, want := range filters {
		if chunk.Metadata[key] != want {
			return false
		}
	}
	return true
}
