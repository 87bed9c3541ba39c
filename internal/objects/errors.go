package objects

import "errors"

var (
	// ErrDuplicateEntry is returned when decoding a Tree whose entries
	// contain a repeated name.
	ErrDuplicateEntry = errors.New("duplicate entry name")

	// ErrOutOfOrder is returned when decoding a Tree whose entries are not
	// sorted by (kind, name).
	ErrOutOfOrder = errors.New("entries out of order")

	// ErrLayerHasAnnotationsUnderV1 is returned when encoding a Layer with
	// annotations under the v1 scheme, which has no representation for
	// them.
	ErrLayerHasAnnotationsUnderV1 = errors.New("layer has annotations, which v1 encoding cannot represent")

	// ErrLayerEmpty is returned when a Layer would have neither a manifest
	// nor any annotations.
	ErrLayerEmpty = errors.New("layer has neither manifest nor annotations")

	// ErrUnknownObject is returned when an object referenced by digest
	// cannot be found during a child walk.
	ErrUnknownObject = errors.New("unknown object")

	// ErrInvalidAnnotationValue is returned when an annotation value tag
	// does not match a known variant.
	ErrInvalidAnnotationValue = errors.New("invalid annotation value")
)
