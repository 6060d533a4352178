package constants

const (
	Title = "Private network file storage over TCP"

	CHUNK_SIZE            = 65536 // Fixed chunk size for uploads and downloads
	MAX_METADATA_OVERHEAD = 1024  // Filename and framing allowance on top of chunk data
	MAX_PAYLOAD_SIZE      = CHUNK_SIZE + MAX_METADATA_OVERHEAD
	MAX_FILENAME_LEN      = 255  // Longest accepted filename in bytes
	DEFAULT_PORT          = 8080 // Default listening port
	DEFAULT_DSCP          = 0x0A // QoS for high throughput
	LOCK_STRIPES          = 64   // Per-filename write lock stripes
	INDEX_DB_NAME         = ".index.db" // Metadata index inside the storage root
	TMP_PREFIX            = ".tmp-"     // Staging files for atomic writes
	SECRET_ENV            = "NETSTASH_SECRET"
)
