// Package ingestion implements the document write path: native text
// extraction with OCR fallback for scanned documents, overlapping
// chunking with page attribution, heuristic metadata extraction, and
// batched embedding before handing chunks to the index writer.
//
// Extraction and persistence are deliberately separated: an Ingestor
// only produces an in-memory ChunkBatch, and the Pipeline owns the
// embed-then-write sequencing so that nothing partial ever reaches
// the index.
package ingestion
