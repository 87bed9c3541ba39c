package recipe

import "errors"

var (
	ErrInvalidVersion     = errors.New("invalid version")
	ErrInvalidIdent       = errors.New("invalid package ident")
	ErrInvalidRangeIdent  = errors.New("invalid range ident")
	ErrIncompatibleRange  = errors.New("incompatible version ranges")
	ErrInvalidRecipeYAML  = errors.New("invalid recipe document")
)
