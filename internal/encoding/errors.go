package encoding

import "errors"

var (
	// ErrInvalidHeader is returned when a decoded header does not match the
	// expected magic sequence for the object kind being read.
	ErrInvalidHeader = errors.New("invalid header")

	// ErrStringHasNull is returned when encoding a string containing a NUL
	// byte, which would be ambiguous with the NUL-terminator convention.
	ErrStringHasNull = errors.New("string contains null byte")

	// ErrInvalidDigest is returned when a digest cannot be parsed from its
	// string form.
	ErrInvalidDigest = errors.New("invalid digest")

	// ErrInvalidPartialDigest is returned when a partial digest string is
	// empty or has an odd nibble count.
	ErrInvalidPartialDigest = errors.New("invalid partial digest")

	// ErrUnknownKind is returned when decoding an object whose kind byte
	// does not correspond to any known [ObjectKind].
	ErrUnknownKind = errors.New("unknown object kind")
)
