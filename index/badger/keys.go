package badger

import (
	"encoding/binary"

	"github.com/questanalytics/questa/core"
)

// Key prefixes for different data types. All generation-scoped keys embed
// the generation as the first component after the prefix so that an entire
// generation can be dropped with a single prefix delete.
const (
	currentGenKey   = "idxcur"
	generationSeq   = "idxgenseq"
	chunkPrefix     = "idxchu"
	termPrefix      = "idxtrm"
	chunkLenPrefix  = "idxlen"
	genStatsPrefix  = "idxsta"
)

// makeGenPrefix generates the common prefix shared by all keys of a generation
// under the given type prefix. Used for iteration and for DropPrefix during
// generation garbage collection.
func makeGenPrefix(prefix string, gen core.GenerationID) []byte {
	p := prefix + ":"
	buf := make([]byte, len(p)+8)
	offset := copy(buf, p)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(gen))
	return buf
}

// makeChunkKey generates a key for an indexed chunk record.
// Format: prefix:generation:chunkID
func makeChunkKey(gen core.GenerationID, id core.ID) []byte {
	buf := makeGenPrefix(chunkPrefix, gen)
	idBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(idBuf, uint64(id))
	return append(buf, idBuf...)
}

// makeChunkLenKey generates a key for a chunk's term count, used for BM25
// length normalization.
// Format: prefix:generation:chunkID
func makeChunkLenKey(gen core.GenerationID, id core.ID) []byte {
	buf := makeGenPrefix(chunkLenPrefix, gen)
	idBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(idBuf, uint64(id))
	return append(buf, idBuf...)
}

// makeTermKey generates a posting key for a term occurrence in a chunk.
// The value stored under this key is the term frequency.
// Format: prefix:generation:term:0x00:chunkID
// Terms come out of the analyzer lowercased with whitespace stripped, so
// the 0x00 separator cannot occur inside a term.
func makeTermKey(gen core.GenerationID, term string, id core.ID) []byte {
	buf := makePartialTermKey(gen, term)
	idBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(idBuf, uint64(id))
	return append(buf, idBuf...)
}

// makePartialTermKey generates the prefix covering all postings of a term
// within a generation.
// Format: prefix:generation:term:0x00
func makePartialTermKey(gen core.GenerationID, term string) []byte {
	buf := makeGenPrefix(termPrefix, gen)
	buf = append(buf, []byte(term)...)
	return append(buf, 0x00)
}

// termChunkID extracts the chunk ID from the tail of a posting key.
func termChunkID(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// makeGenStatsKey generates the key for a generation's aggregate statistics.
// Format: prefix:generation
func makeGenStatsKey(gen core.GenerationID) []byte {
	return makeGenPrefix(genStatsPrefix, gen)
}
