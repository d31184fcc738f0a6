package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing so that identical content
// always yields the same identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID derives the deterministic identifier for a chunk from the
// owning document's content hash and the chunk's ordinal position.
// Re-ingesting an unchanged document therefore reproduces the same IDs.
func ChunkID(documentID ID, ordinal int) ID {
	return IDFromContent(strconv.FormatUint(uint64(documentID), 16) + ":" + strconv.Itoa(ordinal))
}

// GenerationID identifies an index epoch. Generations are allocated from a
// monotonically increasing sequence; exactly one is current at any time.
type GenerationID uint64

// Document represents a source document submitted for ingestion.
type Document struct {
	Id         ID     // Content hash of the raw document bytes
	Source     string // Path or logical name of the document
	Title      string
	IngestedAt time.Time
}

// Chunk is a contiguous text span cut from a document. A chunk belongs to
// exactly one document and its ID is stable across re-ingestion of
// identical content.
type Chunk struct {
	Id         ID
	DocumentId ID
	Ordinal    int // Position of the chunk within the document
	Text       string
	Page       int // 1-based page the chunk was cut from, 0 if unknown
}

// ChunkBatch is the in-memory result of ingesting one document.
// It carries no index state; persistence happens in the index writer.
type ChunkBatch struct {
	Document *Document
	Chunks   []*Chunk
	Metadata map[string]string // Document-level metadata shared by all chunks
}

// IndexedChunk is a chunk as persisted in the hybrid index: text plus its
// dense vector, metadata, and the generation tag it belongs to.
type IndexedChunk struct {
	Id         ID
	DocumentId ID
	Ordinal    int
	Text       string
	Page       int
	Vector     []float32
	Metadata   map[string]string
	Generation GenerationID
	Timestamp  time.Time // Ingestion timestamp of the owning document
}

// Query is a retrieval request against the current generation.
type Query struct {
	Text    string
	TopK    int
	Filters map[string]string // Optional metadata equality filters
}

// RetrievalResult is a ranked hit with full score provenance.
// FusedScore is a pure function of SparseScore, DenseScore and the
// configured fusion weights, so rankings are reproducible.
type RetrievalResult struct {
	Chunk          *IndexedChunk
	SparseScore    float64 // Normalized lexical relevance
	DenseScore     float64 // Normalized vector similarity
	FusedScore     float64
	RawSparse      float64 // Unnormalized BM25 score
	RawDense       float64 // Unnormalized cosine similarity
	LexicalMatches int     // Count of query terms matched, used for tie-breaks
	Rank           int     // 1-based final rank
}

// ModelState describes the health of a configured language model.
type ModelState int

const (
	// StateHealthy means the model is serving within the latency budget.
	StateHealthy ModelState = iota + 1
	// StateDegraded means the model responds but above the latency threshold.
	StateDegraded
	// StateUnreachable means the model failed too many consecutive calls.
	StateUnreachable
)

// String returns the human-readable state name.
func (s ModelState) String() string {
	switch s {
	case StateHealthy:
		return "HEALTHY"
	case StateDegraded:
		return "DEGRADED"
	case StateUnreachable:
		return "UNREACHABLE"
	default:
		return "UNKNOWN"
	}
}

// ModelHealth is a snapshot of one model's health record.
// Snapshots are values; the owning health table is never exposed directly.
type ModelHealth struct {
	ModelID             string
	State               ModelState
	ConsecutiveFailures int
	LastLatency         time.Duration
	LastChecked         time.Time
}

// Citation points an answer back at a chunk that supported it.
type Citation struct {
	ChunkId ID
	Source  string
	Title   string
	Page    int
}

// Answer is the orchestrator's response to a question. ModelID always
// reports the model that actually produced the text, which may be a
// fallback rather than the primary.
type Answer struct {
	Text      string
	ModelID   string
	Citations []Citation
}
