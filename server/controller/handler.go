package server

import (
	"errors"
	"fmt"
	"io"
	"net"

	"netstash/constants"
	"netstash/networking"
	"netstash/networking/opcode"
	"netstash/networking/status"
	"netstash/storage"
	"netstash/transfer"
)

// Handler owns one connection: the frame read/write loop and the in-progress
// uploads started on it. Requests are processed strictly in arrival order
// and every request is authenticated on its own.
type Handler struct {
	store   *storage.Storage
	token   [32]byte
	uploads *transfer.Assembler
}

func newHandler(store *storage.Storage, token [32]byte) *Handler {
	return &Handler{
		store:   store,
		token:   token,
		uploads: transfer.NewAssembler(),
	}
}

// serve runs the session until the peer disconnects or framing breaks.
// Partial uploads die with the session.
func (h *Handler) serve(conn net.Conn) {
	defer conn.Close()
	defer h.uploads.Discard()

	peer := conn.RemoteAddr().String()

	for {
		msg, err := networking.ReadMessage(conn)

		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println("[" + peer + "] Client disconnected")
			} else {
				// Unframeable input. Nothing sane can follow it.
				fmt.Println("[" + peer + "] Closing connection: " + err.Error())
			}
			return
		}

		resp := h.dispatch(peer, msg)

		if _, err := conn.Write(resp.ToBytes()); err != nil {
			fmt.Println("[" + peer + "] Write failed: " + err.Error())
			return
		}
	}
}

// dispatch verifies a request and routes it by opcode. Every failure maps
// to a response with the matching status, the connection stays usable.
func (h *Handler) dispatch(peer string, msg *networking.Message) *networking.Message {
	if err := networking.Verify(msg, h.token); err != nil {
		if errors.Is(err, networking.ErrBadToken) {
			fmt.Println("[" + peer + "] Rejected request with invalid token")
			return networking.NewResponse(msg.RequestID, msg.Opcode,
				status.PERMISSION_DENIED, []byte("Invalid authentication token"))
		}
		fmt.Println("[" + peer + "] Rejected request with bad checksum")
		return networking.NewResponse(msg.RequestID, msg.Opcode,
			status.INVALID_DATA, []byte("Checksum verification failed"))
	}

	switch msg.Opcode {
	case opcode.AUTH:
		return networking.NewResponse(msg.RequestID, msg.Opcode, status.SUCCESS, []byte("Authenticated"))
	case opcode.STORE:
		return h.handleStore(peer, msg)
	case opcode.RETRIEVE:
		return h.handleRetrieve(peer, msg)
	case opcode.DELETE:
		return h.handleDelete(peer, msg)
	case opcode.LIST:
		return h.handleList(peer, msg)
	case opcode.STORE_CHUNK:
		return h.handleStoreChunk(peer, msg)
	case opcode.RETRIEVE_CHUNK:
		return h.handleRetrieveChunk(peer, msg)
	case opcode.STORE_COMPLETE:
		return h.handleStoreComplete(peer, msg)
	default:
		return networking.NewResponse(msg.RequestID, msg.Opcode, status.INVALID_DATA, []byte("Invalid operation code"))
	}
}

// handleStore commits a whole file carried in a single message
func (h *Handler) handleStore(peer string, msg *networking.Message) *networking.Message {
	name, data, err := networking.DecodeStorePayload(msg.Payload)
	if err != nil {
		return networking.NewResponse(msg.RequestID, msg.Opcode, status.INVALID_DATA, []byte("Invalid store payload"))
	}

	if _, err := h.store.Put(name, data); err != nil {
		return h.storageError(peer, msg, name, err)
	}

	fmt.Printf("[%s] STORE: %s (%d bytes)\n", peer, name, len(data))
	return networking.NewResponse(msg.RequestID, msg.Opcode, status.SUCCESS, []byte("OK"))
}

// handleRetrieve returns a whole file in a single message
func (h *Handler) handleRetrieve(peer string, msg *networking.Message) *networking.Message {
	name := string(msg.Payload)

	data, _, err := h.store.Get(name)
	if err != nil {
		return h.storageError(peer, msg, name, err)
	}

	if len(data) > constants.MAX_PAYLOAD_SIZE {
		return networking.NewResponse(msg.RequestID, msg.Opcode, status.INVALID_DATA,
			[]byte("File exceeds single message limit, use chunked retrieval"))
	}

	fmt.Printf("[%s] RETRIEVE: %s (%d bytes)\n", peer, name, len(data))
	return networking.NewResponse(msg.RequestID, msg.Opcode, status.SUCCESS, data)
}

// handleDelete removes a committed file
func (h *Handler) handleDelete(peer string, msg *networking.Message) *networking.Message {
	name := string(msg.Payload)

	if err := h.store.Delete(name); err != nil {
		return h.storageError(peer, msg, name, err)
	}

	fmt.Printf("[%s] DELETE: %s\n", peer, name)
	return networking.NewResponse(msg.RequestID, msg.Opcode, status.SUCCESS, []byte("OK"))
}

// handleList returns metadata of every committed file
func (h *Handler) handleList(peer string, msg *networking.Message) *networking.Message {
	files, err := h.store.List()
	if err != nil {
		fmt.Println("[" + peer + "] LIST failed: " + err.Error())
		return networking.NewResponse(msg.RequestID, msg.Opcode, status.SERVER_ERROR, []byte("List failed"))
	}

	records := make([]networking.FileInfo, len(files))
	for i, f := range files {
		records[i] = networking.FileInfo{
			Filename: f.Filename,
			Size:     f.Size,
			Modified: f.Modified,
			Checksum: f.Checksum,
		}
	}

	payload := networking.EncodeFileList(records)
	if len(payload) > constants.MAX_PAYLOAD_SIZE {
		return networking.NewResponse(msg.RequestID, msg.Opcode, status.SERVER_ERROR, []byte("File list too large"))
	}

	fmt.Printf("[%s] LIST: %d files\n", peer, len(files))
	return networking.NewResponse(msg.RequestID, msg.Opcode, status.SUCCESS, payload)
}

// handleStoreChunk buffers one chunk of an in-progress upload
func (h *Handler) handleStoreChunk(peer string, msg *networking.Message) *networking.Message {
	chunk, err := networking.DecodeChunkPayload(msg.Payload, true)
	if err != nil {
		return networking.NewResponse(msg.RequestID, msg.Opcode, status.INVALID_DATA, []byte("Invalid chunk metadata"))
	}

	if err := storage.ValidateFilename(chunk.Filename); err != nil {
		return h.storageError(peer, msg, chunk.Filename, err)
	}

	if err := h.uploads.AddChunk(chunk.Filename, chunk.ChunkIndex, chunk.TotalChunks, chunk.Data); err != nil {
		fmt.Printf("[%s] CHUNK rejected for %s: %s\n", peer, chunk.Filename, err.Error())
		return networking.NewResponse(msg.RequestID, msg.Opcode, status.INVALID_DATA, []byte(err.Error()))
	}

	note := "OK"
	if h.uploads.IsComplete(chunk.Filename) {
		note = "COMPLETE"
	}

	fmt.Printf("[%s] CHUNK: %s - %d/%d (%s)\n", peer, chunk.Filename, chunk.ChunkIndex+1, chunk.TotalChunks, note)
	return networking.NewResponse(msg.RequestID, msg.Opcode, status.SUCCESS, []byte(note))
}

// handleStoreComplete assembles a finished upload and commits it. Whatever
// the outcome the buffered chunks for the name are gone afterwards, except
// when chunks are still missing and the client may retry.
func (h *Handler) handleStoreComplete(peer string, msg *networking.Message) *networking.Message {
	name := string(msg.Payload)

	data, err := h.uploads.Complete(name)
	if err != nil {
		fmt.Printf("[%s] STORE COMPLETE failed for %s: %s\n", peer, name, err.Error())
		return networking.NewResponse(msg.RequestID, msg.Opcode, status.INVALID_DATA, []byte(err.Error()))
	}

	if _, err := h.store.Put(name, data); err != nil {
		return h.storageError(peer, msg, name, err)
	}

	fmt.Printf("[%s] STORE COMPLETE: %s (%d bytes)\n", peer, name, len(data))
	return networking.NewResponse(msg.RequestID, msg.Opcode, status.SUCCESS, []byte("File stored successfully"))
}

// handleRetrieveChunk serves one chunk of a committed file. A name with only
// an in-progress upload is not visible here.
func (h *Handler) handleRetrieveChunk(peer string, msg *networking.Message) *networking.Message {
	req, err := networking.DecodeChunkPayload(msg.Payload, false)
	if err != nil {
		return networking.NewResponse(msg.RequestID, msg.Opcode, status.INVALID_DATA, []byte("Invalid chunk metadata"))
	}

	data, total, err := transfer.ReadChunk(h.store, req.Filename, req.ChunkIndex)
	if err != nil {
		if errors.Is(err, transfer.ErrInvalidChunk) {
			return networking.NewResponse(msg.RequestID, msg.Opcode, status.INVALID_DATA, []byte(err.Error()))
		}
		return h.storageError(peer, msg, req.Filename, err)
	}

	resp := networking.ChunkPayload{
		Filename:    req.Filename,
		ChunkIndex:  req.ChunkIndex,
		TotalChunks: total,
		Data:        data,
	}

	fmt.Printf("[%s] RETRIEVE CHUNK: %s - %d/%d\n", peer, req.Filename, req.ChunkIndex+1, total)
	return networking.NewResponse(msg.RequestID, msg.Opcode, status.SUCCESS, resp.ToBytes(true))
}

// storageError maps storage failures onto wire status codes
func (h *Handler) storageError(peer string, msg *networking.Message, name string, err error) *networking.Message {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Printf("[%s] %s: file not found\n", peer, name)
		return networking.NewResponse(msg.RequestID, msg.Opcode, status.NOT_FOUND, []byte("File not found"))
	case errors.Is(err, storage.ErrInvalidFilename):
		fmt.Printf("[%s] rejected invalid filename\n", peer)
		return networking.NewResponse(msg.RequestID, msg.Opcode, status.INVALID_DATA, []byte("Invalid filename"))
	default:
		fmt.Printf("[%s] %s: %s\n", peer, name, err.Error())
		return networking.NewResponse(msg.RequestID, msg.Opcode, status.SERVER_ERROR, []byte("Storage operation failed"))
	}
}
