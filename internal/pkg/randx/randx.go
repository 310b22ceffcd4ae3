/*
Package randx provides functions for generating cryptographically secure random
identifiers used to track clients across requests and reconnects.
*/
package randx

import (
	"github.com/google/uuid"
)

// SessionID generates a standard UUID v4 string identifying one connected session.
func SessionID() string {
	return uuid.New().String()
}

// PersistentID generates a standard UUID v4 string identifying a client across
// sessions. Clients are expected to store it and present it on re-registration.
func PersistentID() string {
	return uuid.New().String()
}

// IsValidPersistentID checks whether the given string parses as a UUID.
func IsValidPersistentID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
