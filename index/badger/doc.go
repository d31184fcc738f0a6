// Package badger implements the hybrid index on BadgerDB.
//
// Everything a generation owns lives under generation-prefixed keys:
// chunk records (MUS-serialized), term postings with term frequencies,
// chunk length records, and per-generation aggregates. Readers resolve
// the current-generation pointer once per operation, so swaps are atomic
// from their point of view. Retired generations are removed by a
// background worker using prefix drops.
//
// Lexical search is BM25 (k1=1.2, b=0.75) over the postings; vector
// search is a cosine similarity scan over the chunk records.
package badger
