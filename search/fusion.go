package search

import (
	"slices"

	"github.com/questanalytics/questa/core"
	"github.com/questanalytics/questa/index"
)

// FusionMode selects how sparse and dense scores are combined.
type FusionMode int

const (
	// FusionWeighted min-max normalizes each score list and combines them
	// as sparseWeight*sparse + denseWeight*dense.
	FusionWeighted FusionMode = iota
	// FusionRRF uses reciprocal-rank fusion: each list contributes
	// weight/(k+rank), which ignores score magnitudes entirely.
	FusionRRF
)

// rrfK dampens the contribution of lower ranks in reciprocal-rank fusion.
const rrfK = 60

// fuseCandidates merges the two hit lists into scored retrieval results.
// The output order is unspecified; rankResults sorts it.
func fuseCandidates(lexical []*index.LexicalHit, vector []*index.VectorHit, mode FusionMode, sparseWeight, denseWeight float64) []*core.RetrievalResult {
	byID := make(map[core.ID]*core.RetrievalResult, len(lexical)+len(vector))

	get := func(id core.ID) *core.RetrievalResult {
		if result, ok := byID[id]; ok {
			return result
		}
		result := &core.RetrievalResult{Chunk: &core.IndexedChunk{Id: id}}
		byID[id] = result
		return result
	}

	for _, hit := range lexical {
		result := get(hit.ChunkId)
		result.RawSparse = hit.Score
		result.LexicalMatches = hit.MatchedTerms
	}
	for _, hit := range vector {
		result := get(hit.ChunkId)
		result.RawDense = hit.Score
	}

	switch mode {
	case FusionRRF:
		// Hit lists arrive best-first, so the index is the rank.
		for rank, hit := range lexical {
			get(hit.ChunkId).SparseScore = 1.0 / float64(rrfK+rank+1)
		}
		for rank, hit := range vector {
			get(hit.ChunkId).DenseScore = 1.0 / float64(rrfK+rank+1)
		}
	default:
		sparseNorm := minMaxNormalizer(scoresOf(lexical, func(h *index.LexicalHit) float64 { return h.Score }))
		denseNorm := minMaxNormalizer(scoresOf(vector, func(h *index.VectorHit) float64 { return h.Score }))
		for _, hit := range lexical {
			get(hit.ChunkId).SparseScore = sparseNorm(hit.Score)
		}
		for _, hit := range vector {
			get(hit.ChunkId).DenseScore = denseNorm(hit.Score)
		}
	}

	results := make([]*core.RetrievalResult, 0, len(byID))
	for _, result := range byID {
		result.FusedScore = sparseWeight*result.SparseScore + denseWeight*result.DenseScore
		results = append(results, result)
	}
	return results
}

func scoresOf[H any](hits []H, score func(H) float64) []float64 {
	values := make([]float64, len(hits))
	for i, hit := range hits {
		values[i] = score(hit)
	}
	return values
}

// minMaxNormalizer maps the observed score range onto [0,1]. A constant
// list maps to 1.0 so that a lone hit still carries full weight.
func minMaxNormalizer(values []float64) func(float64) float64 {
	if len(values) == 0 {
		return func(float64) float64 { return 0 }
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return func(float64) float64 { return 1 }
	}
	span := hi - lo
	return func(v float64) float64 { return (v - lo) / span }
}

// rankResults orders results deterministically: fused score descending,
// then newer document timestamp, then higher lexical match count, then
// chunk ID. Rank fields are assigned 1-based after sorting.
func rankResults(results []*core.RetrievalResult) {
	slices.SortFunc(results, func(a, b *core.RetrievalResult) int {
		if a.FusedScore != b.FusedScore {
			if a.FusedScore > b.FusedScore {
				return -1
			}
			return 1
		}
		at, bt := a.Chunk.Timestamp, b.Chunk.Timestamp
		if !at.Equal(bt) {
			if at.After(bt) {
				return -1
			}
			return 1
		}
		if a.LexicalMatches != b.LexicalMatches {
			if a.LexicalMatches > b.LexicalMatches {
				return -1
			}
			return 1
		}
		if a.Chunk.Id < b.Chunk.Id {
			return -1
		}
		if a.Chunk.Id > b.Chunk.Id {
			return 1
		}
		return 0
	})

	for i, result := range results {
		result.Rank = i + 1
	}
}
