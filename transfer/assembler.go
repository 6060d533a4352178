package transfer

import (
	"errors"
	"fmt"

	"netstash/constants"
)

// ErrInvalidChunk means chunk metadata contradicts the upload it belongs to
var ErrInvalidChunk = errors.New("invalid chunk")

// ErrIncomplete means completion was requested with chunks still missing
var ErrIncomplete = errors.New("upload incomplete")

// ErrNoUpload means no chunks were ever received for the filename
var ErrNoUpload = errors.New("no pending upload")

// upload accumulates chunks until every index in [0, total) has arrived
type upload struct {
	chunks map[uint32][]byte
	total  uint32
}

func (u *upload) complete() bool {
	return uint32(len(u.chunks)) == u.total
}

// Assembler tracks in-progress chunked uploads for a single session. It is
// owned exclusively by that session, so teardown discards all partial state
// without any cross-session coordination.
type Assembler struct {
	pending map[string]*upload
}

func NewAssembler() *Assembler {
	return &Assembler{pending: make(map[string]*upload)}
}

// AddChunk records one chunk of an upload. The first chunk for a filename
// fixes the declared total; a duplicate index simply overwrites.
func (a *Assembler) AddChunk(name string, index, total uint32, data []byte) error {
	if total == 0 {
		return fmt.Errorf("%w: declared zero total chunks", ErrInvalidChunk)
	}
	if len(data) > constants.CHUNK_SIZE {
		return fmt.Errorf("%w: chunk exceeds %d bytes", ErrInvalidChunk, constants.CHUNK_SIZE)
	}

	up, ok := a.pending[name]
	if !ok {
		up = &upload{chunks: make(map[uint32][]byte), total: total}
		a.pending[name] = up
	}

	if total != up.total {
		return fmt.Errorf("%w: declared total %d, upload expects %d", ErrInvalidChunk, total, up.total)
	}
	if index >= up.total {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidChunk, index)
	}

	up.chunks[index] = data
	return nil
}

// Complete assembles the upload in index order and discards it. With chunks
// still missing it fails and the upload stays receiving so the client can
// resend what is absent.
func (a *Assembler) Complete(name string) ([]byte, error) {
	up, ok := a.pending[name]
	if !ok {
		return nil, ErrNoUpload
	}
	if !up.complete() {
		return nil, fmt.Errorf("%w: %d of %d chunks received", ErrIncomplete, len(up.chunks), up.total)
	}

	size := 0
	for _, chunk := range up.chunks {
		size += len(chunk)
	}

	data := make([]byte, 0, size)
	for i := uint32(0); i < up.total; i++ {
		data = append(data, up.chunks[i]...)
	}

	delete(a.pending, name)
	return data, nil
}

// IsComplete reports whether every chunk of the named upload has arrived
func (a *Assembler) IsComplete(name string) bool {
	up, ok := a.pending[name]
	return ok && up.complete()
}

// Received returns how many distinct chunks have arrived for the filename
func (a *Assembler) Received(name string) int {
	if up, ok := a.pending[name]; ok {
		return len(up.chunks)
	}
	return 0
}

// Discard drops every in-progress upload. Called on session teardown so an
// abandoned transfer never leaves a partial file behind.
func (a *Assembler) Discard() {
	a.pending = make(map[string]*upload)
}
