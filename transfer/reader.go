package transfer

import (
	"fmt"

	"netstash/constants"
	"netstash/storage"
)

// ChunkCount returns how many chunks a download of the given size spans.
// An empty file still has one zero-byte chunk so the client always gets a
// terminating response.
func ChunkCount(size uint64) uint32 {
	if size == 0 {
		return 1
	}
	return uint32((size + constants.CHUNK_SIZE - 1) / constants.CHUNK_SIZE)
}

// ReadChunk returns one chunk of a committed file plus the total chunk
// count for the download. Chunk boundaries are deterministic, the server
// holds no download state and the client drives ordering.
func ReadChunk(store *storage.Storage, name string, index uint32) ([]byte, uint32, error) {
	data, _, err := store.Get(name)
	if err != nil {
		return nil, 0, err
	}

	// Boundaries come from the content just read, not the index row, so a
	// file changed out of band degrades to an error instead of a bad slice.
	total := ChunkCount(uint64(len(data)))
	if index >= total {
		return nil, 0, fmt.Errorf("%w: index %d of %d chunks", ErrInvalidChunk, index, total)
	}

	start := int(index) * constants.CHUNK_SIZE
	end := start + constants.CHUNK_SIZE
	if end > len(data) {
		end = len(data)
	}

	return data[start:end], total, nil
}
