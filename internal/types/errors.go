package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrValidation      = errors.New("validation error")
	ErrUnknownLocation = errors.New("unknown location")
	ErrArchive         = errors.New("archive error")
	ErrStore           = errors.New("location store read/write error")
	ErrImageDecode     = errors.New("image could not be decoded")
	ErrDetector        = errors.New("detector error")

	ErrInvalidBackend = errors.New("invalid backend")
)

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}

// Kind classifies an error at the service boundary. Transports map a Kind to their own status codes.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindUnknownLocation
	KindConflict
	KindArchive
	KindStore
	KindDetector
	KindInternal
)

var kindNames = map[Kind]string{
	KindNone:            "none",
	KindValidation:      "validation",
	KindUnknownLocation: "unknown_location",
	KindConflict:        "conflict",
	KindArchive:         "archive",
	KindStore:           "store",
	KindDetector:        "detector",
	KindInternal:        "internal",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindOf returns the Kind of err. The order matters: an unknown location is reported
// as such even when the store's ErrNotFound is joined into the same error.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation), errors.Is(err, ErrImageDecode):
		return KindValidation
	case errors.Is(err, ErrUnknownLocation), errors.Is(err, ErrNotFound):
		return KindUnknownLocation
	case errors.Is(err, ErrAlreadyExists):
		return KindConflict
	case errors.Is(err, ErrArchive):
		return KindArchive
	case errors.Is(err, ErrStore):
		return KindStore
	case errors.Is(err, ErrDetector):
		return KindDetector
	default:
		return KindInternal
	}
}

// Validation builds an ErrValidation with a formatted message.
func Validation(msgTemplate string, args ...any) error {
	return Err(ErrValidation, nil, msgTemplate, args...)
}
