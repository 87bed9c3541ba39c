package recipe

import (
	"encoding/base32"
	"sort"
	"strings"

	"github.com/cruciblehq/spfs/internal/encoding"
)

// OptionMap is an unordered Name->Value mapping of build/runtime
// options. The zero value is an empty map.
type OptionMap map[string]string

// NewOptionMap builds an OptionMap from "key=value" pairs, for convenience
// in tests and CLI argument parsing. Pairs without "=" are stored with an
// empty value.
func NewOptionMap(pairs ...string) OptionMap {
	m := make(OptionMap, len(pairs))
	for _, p := range pairs {
		if i := strings.IndexByte(p, '='); i >= 0 {
			m[p[:i]] = p[i+1:]
		} else {
			m[p] = ""
		}
	}
	return m
}

// Clone returns a shallow copy of m.
func (m OptionMap) Clone() OptionMap {
	out := make(OptionMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// sortedKeys returns m's keys in ascending order, for deterministic
// iteration (display and hashing both need this).
func (m OptionMap) sortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders m as "{k=v, k=v}" in key-sorted order, matching the
// original implementation's FormatOptionMap convention.
func (m OptionMap) String() string {
	keys := m.sortedKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// canonicalEncode produces a deterministic byte encoding of m: entries
// sorted by key, each as "key\x00value\x00". This is the input to
// BuildId's digest, not a CAFS object encoding (OptionMap never enters
// the object graph), so it deliberately does not use the object-scheme
// headers in internal/encoding.
func (m OptionMap) canonicalEncode() []byte {
	var buf strings.Builder
	for _, k := range m.sortedKeys() {
		buf.WriteString(k)
		buf.WriteByte(0)
		buf.WriteString(m[k])
		buf.WriteByte(0)
	}
	return []byte(buf.String())
}

// buildIDEncoding is unpadded standard base32, truncated to
// buildIDLength characters: 5 raw bytes encode to exactly 8 base32
// characters with no padding needed.
var buildIDEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const buildIDLength = 8

// BuildId derives the package's build identifier from its resolved
// option map: hash the
// canonical encoding and base32-encode the first 5 bytes.
func (m OptionMap) BuildId() string {
	sum := encoding.Hash(m.canonicalEncode())
	return buildIDEncoding.EncodeToString(sum[:5])[:buildIDLength]
}

// ResolveForPackage computes the effective option map for package pkgName
// given its declared defaults and a global option map:
//
//  1. start from defaults (the package's own declared option values);
//  2. overlay any global entry whose bare key matches one of the
//     package's own option names;
//  3. overlay any global entry namespaced "pkgName.opt", unconditionally,
//     even for options the package never declared.
func ResolveForPackage(pkgName string, defaults, global OptionMap) OptionMap {
	resolved := defaults.Clone()

	for key, value := range global {
		if strings.Contains(key, ".") {
			continue
		}
		if _, declared := defaults[key]; declared {
			resolved[key] = value
		}
	}

	prefix := pkgName + "."
	for key, value := range global {
		if name, ok := strings.CutPrefix(key, prefix); ok {
			resolved[name] = value
		}
	}

	return resolved
}
