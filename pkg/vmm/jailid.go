package vmm

import "github.com/google/uuid"

// NewJailID generates a fresh jail identifier for callers that don't need a
// caller-chosen one. The jailer accepts any filename-safe string; a UUID
// keeps concurrently-prepared jails from colliding on chroot paths.
func NewJailID() string {
	return uuid.New().String()
}
