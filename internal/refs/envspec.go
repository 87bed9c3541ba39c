package refs

import (
	"fmt"
	"strings"

	"github.com/cruciblehq/spfs/internal/encoding"
)

// EnvSpecItemKind distinguishes the three forms an EnvSpec item may
// take: a full object digest, a tag spec, or a path to an existing live
// layer on disk.
type EnvSpecItemKind int

const (
	EnvSpecItemDigest EnvSpecItemKind = iota
	EnvSpecItemTagSpec
	EnvSpecItemLiveLayer
)

// EnvSpecItem is one "+"-separated component of an EnvSpec.
type EnvSpecItem struct {
	Kind   EnvSpecItemKind
	Digest encoding.Digest
	Tag    TagSpec
	Path   string
}

func (i EnvSpecItem) String() string {
	switch i.Kind {
	case EnvSpecItemDigest:
		return i.Digest.String()
	case EnvSpecItemLiveLayer:
		return i.Path
	default:
		return i.Tag.String()
	}
}

// parseEnvSpecItem parses a single EnvSpec component. A full-length
// digest is recognized first (unambiguous, fixed width); a leading "/",
// "./" or "../" marks a live-layer filesystem path; anything else is parsed as
// a TagSpec.
func parseEnvSpecItem(s string) (EnvSpecItem, error) {
	if s == "" {
		return EnvSpecItem{}, fmt.Errorf("%w: empty item", ErrInvalidEnvSpec)
	}

	if d, err := encoding.ParseDigest(s); err == nil {
		return EnvSpecItem{Kind: EnvSpecItemDigest, Digest: d}, nil
	}

	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") {
		return EnvSpecItem{Kind: EnvSpecItemLiveLayer, Path: s}, nil
	}

	tag, err := ParseTagSpec(s)
	if err != nil {
		return EnvSpecItem{}, fmt.Errorf("%w: %q: %w", ErrInvalidEnvSpec, s, err)
	}
	return EnvSpecItem{Kind: EnvSpecItemTagSpec, Tag: tag}, nil
}

// EnvSpec names an ordered, non-empty stack of items to compose into a
// runtime environment: later items overlay earlier ones.
type EnvSpec struct {
	Items []EnvSpecItem
}

// ParseEnvSpec parses a "+"-joined list of items. At least one item is
// required.
func ParseEnvSpec(s string) (EnvSpec, error) {
	if s == "" {
		return EnvSpec{}, fmt.Errorf("%w: empty spec", ErrInvalidEnvSpec)
	}

	parts := strings.Split(s, "+")
	items := make([]EnvSpecItem, 0, len(parts))
	for _, part := range parts {
		item, err := parseEnvSpecItem(part)
		if err != nil {
			return EnvSpec{}, err
		}
		items = append(items, item)
	}

	return EnvSpec{Items: items}, nil
}

// String renders the canonical "+"-joined text form. Parsing the result
// of String always reproduces an equal EnvSpec.
func (e EnvSpec) String() string {
	parts := make([]string, len(e.Items))
	for i, item := range e.Items {
		parts[i] = item.String()
	}
	return strings.Join(parts, "+")
}
