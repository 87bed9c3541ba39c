package objects

import (
	"bufio"
	"fmt"
	"io"

	"github.com/cruciblehq/spfs/internal/encoding"
)

// Object is the common interface satisfied by every kind in the object
// graph: Blob, Tree (and the Manifest wrapper around it), Layer, Platform,
// and Mask.
type Object interface {
	Kind() encoding.ObjectKind
	Encode(w io.Writer, scheme encoding.Scheme) error
	ChildObjects() []encoding.Digest
}

// Decode reads a framed object of unknown kind, dispatching to the
// matching kind-specific decoder. The returned value is one of *Blob,
// *Tree, *Layer, *Platform, or Mask.
//
// This only works for v2-framed objects: a v1 header carries no kind
// byte, so a v1 object's kind can only be recovered by a caller that
// already knows what it is asking for (DecodeBlob, DecodeTree, ...
// directly) — there is no self-describing v1 frame to fall back to, so
// generic dispatch is scoped to the scheme that actually supports it.
func Decode(r *bufio.Reader) (Object, error) {
	peeked, err := r.Peek(len(headerV2Prefix) + 1)
	if err != nil {
		return nil, fmt.Errorf("peek header: %w", err)
	}
	if string(peeked[:len(headerV2Prefix)]) != headerV2Prefix {
		return nil, fmt.Errorf("%w: generic Decode only supports v2-framed objects", encoding.ErrInvalidHeader)
	}

	switch encoding.ObjectKind(peeked[len(peeked)-1]) {
	case encoding.KindBlob:
		return DecodeBlob(r)
	case encoding.KindTree:
		return DecodeTree(r)
	case encoding.KindLayer:
		return DecodeLayer(r)
	case encoding.KindPlatform:
		return DecodePlatform(r)
	case encoding.KindMask:
		return DecodeMask(r)
	default:
		return nil, fmt.Errorf("%w: kind byte %d", encoding.ErrUnknownKind, peeked[len(peeked)-1])
	}
}

const headerV2Prefix = "spfs.obj.v2\n"

// Resolver looks up an object by digest, the abstraction an integrity walk
// or manifest-merge needs without depending on internal/repo directly.
type Resolver interface {
	Object(d encoding.Digest) (Object, error)
}

// WalkIntegrity performs a DFS over root's child digests, verifying via
// resolver that every transitively referenced object exists. Cycles are
// impossible by construction since digests are content-addressed; the
// visited set guards only against redundant re-visits of shared
// subtrees, not cycles.
func WalkIntegrity(resolver Resolver, root encoding.Digest) error {
	visited := make(map[encoding.Digest]bool)
	return walkIntegrity(resolver, root, visited)
}

func walkIntegrity(resolver Resolver, d encoding.Digest, visited map[encoding.Digest]bool) error {
	if visited[d] {
		return nil
	}
	visited[d] = true

	obj, err := resolver.Object(d)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnknownObject, d, err)
	}
	for _, child := range obj.ChildObjects() {
		if err := walkIntegrity(resolver, child, visited); err != nil {
			return err
		}
	}
	return nil
}
