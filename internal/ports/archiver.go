package ports

import "context"

// Archiver writes raw uploads to blob storage.
type Archiver interface {
	// Archive stores image under a key derived from locationID and the current time and returns the key.
	Archive(ctx context.Context, locationID string, image []byte) (string, error)
}
