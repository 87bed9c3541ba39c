package refs

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/repo"
)

// RefKind distinguishes what a resolved reference ultimately points at.
type RefKind int

const (
	// RefDigest means Resolved.Digest names an object already stored in
	// the repository.
	RefDigest RefKind = iota
	// RefLiveLayer means Resolved.Path names an on-disk live layer spec
	// that has not (yet) been committed into the CAFS.
	RefLiveLayer
)

// Resolved is the outcome of resolving a ref string.
type Resolved struct {
	Kind   RefKind
	Digest encoding.Digest
	Path   string
}

// ResolveTag locates spec's stream, walks Version hops back from its
// head, and decodes the Tag found there. Walking past the
// end of the stream, or a stream with no entries at all, is
// ErrUnknownReference.
func ResolveTag(store repo.TagStore, spec TagSpec) (Tag, error) {
	stream, err := store.ListStream(spec.StreamPath())
	if err != nil {
		return Tag{}, fmt.Errorf("resolve tag %s: %w", spec, err)
	}
	if int(spec.Version) >= len(stream) {
		return Tag{}, fmt.Errorf("%w: %s: stream has %d entries, version %d requested",
			ErrUnknownReference, spec, len(stream), spec.Version)
	}

	tag, err := DecodeTag(stream[spec.Version].Data)
	if err != nil {
		return Tag{}, fmt.Errorf("resolve tag %s: %w", spec, err)
	}
	return tag, nil
}

// PushTag builds a new Tag for spec (parented on the stream's current
// head, or [encoding.NullDigest] if the stream is empty) pointing at
// target, and appends it.
func PushTag(store repo.TagStore, spec TagSpec, target encoding.Digest, user string) (Tag, error) {
	parent := encoding.NullDigest
	stream, err := store.ListStream(spec.StreamPath())
	if err != nil {
		return Tag{}, fmt.Errorf("push tag %s: %w", spec, err)
	}
	if len(stream) > 0 {
		head, err := DecodeTag(stream[0].Data)
		if err != nil {
			return Tag{}, fmt.Errorf("push tag %s: decode current head: %w", spec, err)
		}
		parent = head.Digest()
	}

	tag := Tag{
		Org:    spec.Org,
		Name:   spec.Name,
		Target: target,
		Parent: parent,
		User:   user,
		Time:   time.Now().UTC(),
	}
	if _, err := store.PushTag(spec.StreamPath(), tag.Encode()); err != nil {
		return Tag{}, fmt.Errorf("push tag %s: %w", spec, err)
	}
	return tag, nil
}

// ResolveRef resolves a ref string against store using a four-step
// order: full digest, then partial digest, then TagSpec, then (only once
// the preceding forms fail to resolve) a live-layer filesystem path.
func ResolveRef(store repo.Repository, ref string) (Resolved, error) {
	if d, err := encoding.ParseDigest(ref); err == nil {
		return Resolved{Kind: RefDigest, Digest: d}, nil
	}

	if pd, err := encoding.ParsePartialDigest(ref); err == nil {
		d, rerr := store.ResolvePartial(pd)
		switch {
		case rerr == nil:
			return Resolved{Kind: RefDigest, Digest: d}, nil
		case errors.Is(rerr, repo.ErrAmbiguousReference):
			return Resolved{}, fmt.Errorf("%w: %s: %w", ErrAmbiguousReference, ref, rerr)
		}
		// Not found under the partial-digest index; fall through to the
		// remaining forms.
	}

	if spec, err := ParseTagSpec(ref); err == nil {
		tag, terr := ResolveTag(store, spec)
		if terr == nil {
			return Resolved{Kind: RefDigest, Digest: tag.Target}, nil
		}
	}

	if _, err := os.Stat(ref); err == nil {
		return Resolved{Kind: RefLiveLayer, Path: ref}, nil
	}

	return Resolved{}, fmt.Errorf("%w: %q", ErrUnknownReference, ref)
}
