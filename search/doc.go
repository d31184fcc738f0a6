// Package search implements hybrid retrieval over the current index
// generation. A query fans out into an independent BM25 lexical search
// and a cosine vector search, each oversampled past the requested top-k.
// The two candidate lists are fused either by weighted min-max
// normalization or by reciprocal-rank fusion, with deterministic
// tie-breaking. An optional reranker reorders the final shortlist and
// fails open on error.
//
// A single failing path degrades retrieval to the surviving path; only
// the loss of both surfaces as an error.
package search
