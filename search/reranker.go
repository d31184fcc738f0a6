package search

import (
	"context"
	"sort"

	"github.com/questanalytics/questa/core"
	"github.com/questanalytics/questa/index"
)

// Reranker reorders a shortlist of fused candidates with a more expensive
// relevance signal. Implementations must not drop or add results.
// A reranker error never fails retrieval; the caller keeps the fused
// ordering instead.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []*core.RetrievalResult) ([]*core.RetrievalResult, error)
}

// KeywordOverlapReranker reorders candidates by blending the fused score
// with the fraction of query terms appearing in the chunk text. It is a
// cheap stand-in for a cross-encoder behind the same interface.
type KeywordOverlapReranker struct {
	// FusedWeight controls how much of the original fused score is kept.
	// The remainder weights the keyword overlap. Zero value means 0.7.
	FusedWeight float64
}

var _ Reranker = (*KeywordOverlapReranker)(nil)

// Rerank implements Reranker.
func (r *KeywordOverlapReranker) Rerank(ctx context.Context, query string, results []*core.RetrievalResult) ([]*core.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTerms := index.Tokenize(query)
	if len(queryTerms) == 0 {
		return results, nil
	}

	fusedWeight := r.FusedWeight
	if fusedWeight == 0 {
		fusedWeight = 0.7
	}

	blended := make(map[core.ID]float64, len(results))
	for _, result := range results {
		chunkTerms := make(map[string]bool)
		for _, term := range index.Tokenize(result.Chunk.Text) {
			chunkTerms[term] = true
		}
		matched := 0
		for _, term := range queryTerms {
			if chunkTerms[term] {
				matched++
			}
		}
		overlap := float64(matched) / float64(len(queryTerms))
		blended[result.Chunk.Id] = fusedWeight*result.FusedScore + (1-fusedWeight)*overlap
	}

	reranked := make([]*core.RetrievalResult, len(results))
	copy(reranked, results)
	// Stable so equal blends keep the fused order.
	sort.SliceStable(reranked, func(i, j int) bool {
		return blended[reranked[i].Chunk.Id] > blended[reranked[j].Chunk.Id]
	})
	return reranked, nil
}
