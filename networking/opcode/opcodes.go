package opcode

const (
	STORE          = 0x01 // Store whole file in a single message
	RETRIEVE       = 0x02 // Retrieve whole file in a single message
	DELETE         = 0x03 // Remove file from server
	LIST           = 0x04 // List stored files with metadata
	AUTH           = 0x05 // Authentication probe
	STORE_CHUNK    = 0x06 // Store a single chunk of a file
	RETRIEVE_CHUNK = 0x07 // Retrieve a single chunk of a file
	STORE_COMPLETE = 0x08 // Signal all chunks sent
)
