package comms

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"

	"netstash/constants"
	"netstash/networking"
	"netstash/networking/opcode"
	"netstash/networking/status"
	"netstash/transfer"
)

// Client drives the protocol over one TCP connection
type Client struct {
	conn   net.Conn
	token  [32]byte
	nextID uint32
}

// Dial connects to the server and derives the auth token from the secret
func Dial(address, secret string, dscp int) (*Client, error) {
	if _, err := net.ResolveTCPAddr("tcp", address); err != nil {
		return nil, err
	}

	dial := new(net.Dialer)
	conn, err := dial.Dial("tcp", address)

	if err != nil {
		return nil, err
	}

	// Set TCP_NODELAY to always immediately send.
	conn.(*net.TCPConn).SetNoDelay(true)
	// Set DSCP. NOTE: On Windows by default it will not apply the value.
	ipv4.NewConn(conn).SetTOS(dscp)

	return &Client{
		conn:  conn,
		token: networking.DeriveToken(secret),
	}, nil
}

// Close closes the connection
func (c *Client) Close() {
	c.conn.Close()
}

// Probe checks the shared secret against the server
func (c *Client) Probe() error {
	_, err := c.roundTrip(opcode.AUTH, nil)
	return err
}

// Store uploads a whole file in a single message. Only usable for content
// that fits one frame, larger files go through Upload.
func (c *Client) Store(name string, data []byte) error {
	payload := networking.EncodeStorePayload(name, data)
	if len(payload) > constants.MAX_PAYLOAD_SIZE {
		return fmt.Errorf("file too large for single message store (%d bytes)", len(data))
	}
	_, err := c.roundTrip(opcode.STORE, payload)
	return err
}

// Retrieve downloads a whole file in a single message
func (c *Client) Retrieve(name string) ([]byte, error) {
	resp, err := c.roundTrip(opcode.RETRIEVE, []byte(name))
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// Upload stores a file chunk by chunk and finalizes with StoreComplete
func (c *Client) Upload(name string, data []byte, progress bool) error {
	total := transfer.ChunkCount(uint64(len(data)))

	for i := uint32(0); i < total; i++ {
		start := int(i) * constants.CHUNK_SIZE
		end := start + constants.CHUNK_SIZE
		if end > len(data) {
			end = len(data)
		}

		chunk := networking.ChunkPayload{
			Filename:    name,
			ChunkIndex:  i,
			TotalChunks: total,
			Data:        data[start:end],
		}

		if _, err := c.roundTrip(opcode.STORE_CHUNK, chunk.ToBytes(true)); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}

		if progress {
			fmt.Printf("\rProgress: %d/%d chunks", i+1, total)
		}
	}

	if progress {
		fmt.Println()
	}

	_, err := c.roundTrip(opcode.STORE_COMPLETE, []byte(name))
	return err
}

// Download retrieves a file chunk by chunk until the server reported total
// is reached, then verifies the reassembled content checksum.
func (c *Client) Download(name string, progress bool) ([]byte, error) {
	data := new(bytes.Buffer)
	var sum [32]byte
	haveSum := false

	for index, total := uint32(0), uint32(1); index < total; index++ {
		req := networking.ChunkPayload{Filename: name, ChunkIndex: index}

		resp, err := c.roundTrip(opcode.RETRIEVE_CHUNK, req.ToBytes(false))
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", index, err)
		}

		chunk, err := networking.DecodeChunkPayload(resp.Payload, true)
		if err != nil {
			return nil, err
		}
		if chunk.TotalChunks == 0 {
			return nil, errors.New("server reported zero chunks")
		}

		total = chunk.TotalChunks
		data.Write(chunk.Data)

		if progress {
			fmt.Printf("\rProgress: %d/%d chunks", index+1, total)
		}
	}

	if progress {
		fmt.Println()
	}

	content := data.Bytes()

	// Verify against the server side checksum when the file is listed.
	if files, err := c.List(); err == nil {
		for _, f := range files {
			if f.Filename == name {
				sum = f.Checksum
				haveSum = true
			}
		}
	}
	if haveSum && sha256.Sum256(content) != sum {
		return nil, errors.New("downloaded content does not match server checksum")
	}

	return content, nil
}

// List fetches metadata of every stored file
func (c *Client) List() ([]networking.FileInfo, error) {
	resp, err := c.roundTrip(opcode.LIST, nil)
	if err != nil {
		return nil, err
	}
	return networking.DecodeFileList(resp.Payload)
}

// Delete removes a stored file
func (c *Client) Delete(name string) error {
	_, err := c.roundTrip(opcode.DELETE, []byte(name))
	return err
}

// roundTrip sends one request and reads its response. Responses arrive in
// request order, the id is matched as a safety net.
func (c *Client) roundTrip(op uint8, payload []byte) (*networking.Message, error) {
	c.nextID++

	req := networking.NewRequest(op, payload, c.token)
	req.RequestID = c.nextID

	if _, err := c.conn.Write(req.ToBytes()); err != nil {
		return nil, err
	}

	resp, err := networking.ReadMessage(c.conn)
	if err != nil {
		return nil, err
	}

	if err := networking.VerifyChecksum(resp); err != nil {
		return nil, err
	}
	if resp.RequestID != req.RequestID {
		return nil, fmt.Errorf("response id %d does not match request id %d", resp.RequestID, req.RequestID)
	}
	if resp.Status != status.SUCCESS {
		return resp, fmt.Errorf("%s: %s", status.Text(resp.Status), string(resp.Payload))
	}

	return resp, nil
}
