package networking

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
)

// ErrBadToken means the auth token does not match the server secret
var ErrBadToken = errors.New("invalid authentication token")

// ErrBadChecksum means the payload does not match its declared checksum
var ErrBadChecksum = errors.New("payload checksum mismatch")

// DeriveToken computes the authentication token for a shared secret.
// Client and server derive the same value independently.
func DeriveToken(secret string) [32]byte {
	return sha256.Sum256([]byte(secret))
}

// Checksum computes the integrity digest of a message payload
func Checksum(payload []byte) [32]byte {
	return sha256.Sum256(payload)
}

// Verify checks payload integrity and request authorization. Full digests
// are always compared in constant time.
func Verify(msg *Message, token [32]byte) error {
	if err := VerifyChecksum(msg); err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(msg.AuthToken[:], token[:]) != 1 {
		return ErrBadToken
	}
	return nil
}

// VerifyChecksum checks payload integrity only. Responses carry a zeroed
// auth token, so this is the client side verification.
func VerifyChecksum(msg *Message) error {
	sum := Checksum(msg.Payload)
	if subtle.ConstantTimeCompare(sum[:], msg.Checksum[:]) != 1 {
		return ErrBadChecksum
	}
	return nil
}
