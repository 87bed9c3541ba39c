package refs

import "errors"

var (
	// ErrInvalidTagSpec is returned when a TagSpec string fails to parse.
	ErrInvalidTagSpec = errors.New("invalid tag spec")

	// ErrInvalidEnvSpec is returned when an EnvSpec string has no items,
	// or one of its items fails to parse as any recognized form.
	ErrInvalidEnvSpec = errors.New("invalid env spec")

	// ErrUnknownReference is returned when a ref cannot be resolved to a
	// tag, digest, or live-layer path.
	ErrUnknownReference = errors.New("unknown reference")

	// ErrAmbiguousReference is returned when a partial digest prefix
	// matches more than one object.
	ErrAmbiguousReference = errors.New("ambiguous reference")
)
