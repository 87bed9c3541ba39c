// Package refs implements tag streams and reference resolution: EnvSpec/TagSpec parsing, Tag records, and the reference
// resolution order (digest, partial digest, tag spec, live-layer path).
//
// No close analog for this exact grammar exists elsewhere in this
// codebase, so the parser is built directly from stdlib
// strings/strconv, the justified stdlib choice noted in DESIGN.md for a
// small bespoke format unique to this system.
package refs

import (
	"fmt"
	"strconv"
	"strings"
)

// TagSpec identifies a single entry in a tag stream by path and age:
// `(org, name, version)` where version counts backwards from the stream
// head. Canonical text form: `[org/]name[~version]`. org may itself
// contain "/" separated components.
type TagSpec struct {
	Org     string // empty if unset
	Name    string
	Version uint64
}

// ParseTagSpec parses the canonical text form of a TagSpec. A spec with
// no explicit "~version" suffix resolves to version 0.
func ParseTagSpec(s string) (TagSpec, error) {
	if s == "" {
		return TagSpec{}, fmt.Errorf("%w: empty string", ErrInvalidTagSpec)
	}

	pathPart := s
	var version uint64
	if i := strings.LastIndexByte(s, '~'); i >= 0 {
		pathPart = s[:i]
		v, err := strconv.ParseUint(s[i+1:], 10, 64)
		if err != nil {
			return TagSpec{}, fmt.Errorf("%w: %q: invalid version: %w", ErrInvalidTagSpec, s, err)
		}
		version = v
	}

	if pathPart == "" {
		return TagSpec{}, fmt.Errorf("%w: %q: empty name", ErrInvalidTagSpec, s)
	}

	var org, name string
	if i := strings.LastIndexByte(pathPart, '/'); i >= 0 {
		org = pathPart[:i]
		name = pathPart[i+1:]
	} else {
		name = pathPart
	}

	if name == "" {
		return TagSpec{}, fmt.Errorf("%w: %q: empty name", ErrInvalidTagSpec, s)
	}
	if err := validateTagPathComponents(org); err != nil {
		return TagSpec{}, fmt.Errorf("%w: %q: %w", ErrInvalidTagSpec, s, err)
	}
	if err := validateTagPathComponents(name); err != nil {
		return TagSpec{}, fmt.Errorf("%w: %q: %w", ErrInvalidTagSpec, s, err)
	}

	return TagSpec{Org: org, Name: name, Version: version}, nil
}

// validateTagPathComponents enforces the tag path grammar: each
// "/"-separated component is restricted to [A-Za-z0-9_.-].
func validateTagPathComponents(path string) error {
	if path == "" {
		return nil
	}
	for _, component := range strings.Split(path, "/") {
		if component == "" {
			return fmt.Errorf("empty path component")
		}
		for _, r := range component {
			if !isTagPathRune(r) {
				return fmt.Errorf("invalid character %q in path component %q", r, component)
			}
		}
	}
	return nil
}

func isTagPathRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '.' || r == '-':
		return true
	default:
		return false
	}
}

// StreamPath returns the tag-store path this spec's stream is stored
// under: "[org/]name", with no version suffix (a stream, unlike a single
// tag, has no version).
func (t TagSpec) StreamPath() string {
	if t.Org == "" {
		return t.Name
	}
	return t.Org + "/" + t.Name
}

// String returns the canonical text form. The version suffix is omitted
// when it is 0, the implicit default.
func (t TagSpec) String() string {
	s := t.StreamPath()
	if t.Version != 0 {
		s += "~" + strconv.FormatUint(t.Version, 10)
	}
	return s
}
