package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the types persisted in the index.
// Timestamps are stored as Unix microseconds.
var (
	IDMUS           = idMUS{}
	IndexedChunkMUS = indexedChunkMUS{}

	vectorMUS   = ord.NewSliceSer[float32](varint.Float32)
	metadataMUS = ord.NewMapSer[string, string](ord.String, ord.String)
)

type idMUS struct{}

func (idMUS) Marshal(id ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

type indexedChunkMUS struct{}

func (indexedChunkMUS) Marshal(c IndexedChunk, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(c.Id), bs)
	n += varint.Uint64.Marshal(uint64(c.DocumentId), bs[n:])
	n += varint.Int.Marshal(c.Ordinal, bs[n:])
	n += ord.String.Marshal(c.Text, bs[n:])
	n += varint.Int.Marshal(c.Page, bs[n:])
	n += vectorMUS.Marshal(c.Vector, bs[n:])
	n += metadataMUS.Marshal(c.Metadata, bs[n:])
	n += varint.Uint64.Marshal(uint64(c.Generation), bs[n:])
	n += varint.Int64.Marshal(c.Timestamp.UnixMicro(), bs[n:])
	return n
}

func (indexedChunkMUS) Unmarshal(bs []byte) (c IndexedChunk, n int, err error) {
	var (
		id, docID, gen uint64
		micros         int64
		n1             int
	)
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	if docID, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Ordinal, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Page, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Metadata, n1, err = metadataMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if gen, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if micros, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	c.Id = ID(id)
	c.DocumentId = ID(docID)
	c.Generation = GenerationID(gen)
	c.Timestamp = time.UnixMicro(micros).UTC()
	return
}

func (indexedChunkMUS) Size(c IndexedChunk) (size int) {
	size = varint.Uint64.Size(uint64(c.Id))
	size += varint.Uint64.Size(uint64(c.DocumentId))
	size += varint.Int.Size(c.Ordinal)
	size += ord.String.Size(c.Text)
	size += varint.Int.Size(c.Page)
	size += vectorMUS.Size(c.Vector)
	size += metadataMUS.Size(c.Metadata)
	size += varint.Uint64.Size(uint64(c.Generation))
	size += varint.Int64.Size(c.Timestamp.UnixMicro())
	return size
}
