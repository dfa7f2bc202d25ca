package evmapi

// DataReader is a shared, read-only view over bytes produced by a host
// response. Copies are cheap and share the backing storage, so the
// requestor's side caches and a caller can hold the same buffer without
// duplicating it. Holders must not mutate the slice.
type DataReader interface {
	Slice() []byte
	Len() int
}

// SliceReader is the canonical DataReader over an in-memory buffer.
type SliceReader struct {
	data []byte
}

func NewSliceReader(data []byte) SliceReader {
	return SliceReader{data: data}
}

func (r SliceReader) Slice() []byte {
	return r.data
}

func (r SliceReader) Len() int {
	return len(r.data)
}
