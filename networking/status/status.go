package status

const (
	SUCCESS           = 0x00
	NOT_FOUND         = 0x01
	PERMISSION_DENIED = 0x02
	INVALID_DATA      = 0x03
	SERVER_ERROR      = 0x04
)

// Text returns a human readable name for given status code
func Text(code uint8) string {
	switch code {
	case SUCCESS:
		return "success"
	case NOT_FOUND:
		return "not found"
	case PERMISSION_DENIED:
		return "permission denied"
	case INVALID_DATA:
		return "invalid data"
	case SERVER_ERROR:
		return "server error"
	default:
		return "unknown status"
	}
}
