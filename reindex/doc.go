// Package reindex re-embeds the chunks of the current index generation
// with a new or updated embedding model, without re-ingesting documents.
//
// Chunks are processed in batches with retry and exponential backoff on
// the embedding calls, progress reporting, and vector normalization so
// the stored vectors stay compatible with cosine similarity search.
// Lexical postings are untouched; only vectors change.
package reindex
