package ports

import (
	"context"
	"scootspot/internal/types"
)

// Detector runs the object-detection model over one image.
type Detector interface {
	// Detect returns per-class counts restricted to types.RecognizedClasses.
	// Undecodable input is reported as types.ErrImageDecode.
	Detect(ctx context.Context, image []byte) (types.Counts, error)
}
