package repo

import "errors"

var (
	// ErrUnknownObject is returned when an object digest has no
	// corresponding entry in the object store.
	ErrUnknownObject = errors.New("unknown object")

	// ErrUnknownPayload is returned when a payload digest has no
	// corresponding entry in the payload store.
	ErrUnknownPayload = errors.New("unknown payload")

	// ErrUnknownReference is returned when a tag, digest, or path cannot
	// be resolved against a repository.
	ErrUnknownReference = errors.New("unknown reference")

	// ErrAmbiguousReference is returned when a partial digest matches more
	// than one object. It is never auto-resolved.
	ErrAmbiguousReference = errors.New("ambiguous reference")

	// ErrVersionExists is returned when a write would overwrite an
	// existing, distinct repository schema version marker.
	ErrVersionExists = errors.New("repository version already set")
)
