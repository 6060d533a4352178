package networking

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"netstash/constants"
)

// ErrBadPayload means an operation payload did not match its expected layout
var ErrBadPayload = errors.New("invalid payload encoding")

// ChunkPayload is the body of StoreChunk/RetrieveChunk messages. Data is
// carried on StoreChunk requests and RetrieveChunk responses only.
type ChunkPayload struct {
	Filename    string
	ChunkIndex  uint32
	TotalChunks uint32
	Data        []byte
}

// FileInfo is one record of a List response
type FileInfo struct {
	Filename string
	Size     uint64
	Modified int64    // Unix seconds
	Checksum [32]byte // SHA256 of full content
}

// ToBytes encodes chunk metadata. withData controls whether the length
// prefixed data block is included.
func (c *ChunkPayload) ToBytes(withData bool) []byte {
	buf := new(bytes.Buffer)
	writeString(buf, c.Filename)
	binary.Write(buf, binary.BigEndian, c.ChunkIndex)
	binary.Write(buf, binary.BigEndian, c.TotalChunks)
	if withData {
		binary.Write(buf, binary.BigEndian, uint32(len(c.Data)))
		buf.Write(c.Data)
	}
	return buf.Bytes()
}

// DecodeChunkPayload parses chunk metadata from a message payload
func DecodeChunkPayload(payload []byte, withData bool) (*ChunkPayload, error) {
	r := bytes.NewReader(payload)

	chunk := new(ChunkPayload)
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	chunk.Filename = name

	if err := binary.Read(r, binary.BigEndian, &chunk.ChunkIndex); err != nil {
		return nil, ErrBadPayload
	}
	if err := binary.Read(r, binary.BigEndian, &chunk.TotalChunks); err != nil {
		return nil, ErrBadPayload
	}

	if withData {
		var dataLen uint32
		if err := binary.Read(r, binary.BigEndian, &dataLen); err != nil {
			return nil, ErrBadPayload
		}
		if dataLen > constants.CHUNK_SIZE || int(dataLen) != r.Len() {
			return nil, ErrBadPayload
		}
		chunk.Data = make([]byte, dataLen)
		io.ReadFull(r, chunk.Data)
	} else if r.Len() != 0 {
		return nil, ErrBadPayload
	}

	return chunk, nil
}

// EncodeStorePayload builds the body of a legacy Store request
func EncodeStorePayload(filename string, data []byte) []byte {
	buf := new(bytes.Buffer)
	writeString(buf, filename)
	buf.Write(data)
	return buf.Bytes()
}

// DecodeStorePayload splits a legacy Store body into filename and content
func DecodeStorePayload(payload []byte) (string, []byte, error) {
	r := bytes.NewReader(payload)
	name, err := readString(r)
	if err != nil {
		return "", nil, err
	}
	data := make([]byte, r.Len())
	io.ReadFull(r, data)
	return name, data, nil
}

// EncodeFileList serializes List response records
func EncodeFileList(files []FileInfo) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(len(files)))
	for _, f := range files {
		writeString(buf, f.Filename)
		binary.Write(buf, binary.BigEndian, f.Size)
		binary.Write(buf, binary.BigEndian, f.Modified)
		buf.Write(f.Checksum[:])
	}
	return buf.Bytes()
}

// DecodeFileList parses List response records
func DecodeFileList(payload []byte) ([]FileInfo, error) {
	r := bytes.NewReader(payload)

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, ErrBadPayload
	}

	// A record is at least 52 bytes. A count the remaining bytes cannot
	// possibly hold must not drive the allocation below.
	const minRecordSize = 4 + 8 + 8 + 32
	if count > uint32(r.Len()/minRecordSize) {
		return nil, ErrBadPayload
	}

	files := make([]FileInfo, 0, count)
	for i := uint32(0); i < count; i++ {
		var f FileInfo
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		f.Filename = name
		if err := binary.Read(r, binary.BigEndian, &f.Size); err != nil {
			return nil, ErrBadPayload
		}
		if err := binary.Read(r, binary.BigEndian, &f.Modified); err != nil {
			return nil, ErrBadPayload
		}
		if _, err := io.ReadFull(r, f.Checksum[:]); err != nil {
			return nil, ErrBadPayload
		}
		files = append(files, f)
	}

	if r.Len() != 0 {
		return nil, ErrBadPayload
	}

	return files, nil
}

// writeString writes a length prefixed string
func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
}

// readString reads a length prefixed string with a sanity cap on the length
func readString(r *bytes.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", ErrBadPayload
	}
	if length > constants.MAX_FILENAME_LEN || int(length) > r.Len() {
		return "", ErrBadPayload
	}
	b := make([]byte, length)
	io.ReadFull(r, b)
	return string(b), nil
}
