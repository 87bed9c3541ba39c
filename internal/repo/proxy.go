package repo

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/objects"
)

// FallbackProxy composes a primary repository with an ordered list of
// secondaries. Reads try the primary first; on
// [ErrUnknownObject]/[ErrUnknownPayload]/[ErrUnknownReference] they try
// each secondary in order. Writes always target the primary.
//
// Heal controls whether a successful secondary read is copied back into
// the primary. This is a configurable mode, defaulting to false
// (read-through only), since a silent mutation of the primary on a read
// path is a surprising side effect for a caller that
// only asked to read.
type FallbackProxy struct {
	Primary     Repository
	Secondaries []Repository
	Heal        bool
}

// NewFallbackProxy builds a proxy reading through primary then
// secondaries in order, with healing off by default.
func NewFallbackProxy(primary Repository, secondaries ...Repository) *FallbackProxy {
	return &FallbackProxy{Primary: primary, Secondaries: secondaries}
}

func (p *FallbackProxy) Scheme() encoding.Scheme { return p.Primary.Scheme() }

func isNotFound(err error) bool {
	return errors.Is(err, ErrUnknownObject) || errors.Is(err, ErrUnknownPayload) || errors.Is(err, ErrUnknownReference)
}

func (p *FallbackProxy) HasObject(d encoding.Digest) bool {
	if p.Primary.HasObject(d) {
		return true
	}
	for _, s := range p.Secondaries {
		if s.HasObject(d) {
			return true
		}
	}
	return false
}

func (p *FallbackProxy) ReadObject(d encoding.Digest) (objects.Object, error) {
	obj, err := p.Primary.ReadObject(d)
	if err == nil || !isNotFound(err) {
		return obj, err
	}

	for _, s := range p.Secondaries {
		obj, serr := s.ReadObject(d)
		if serr == nil {
			if p.Heal {
				p.healObject(d, obj)
			}
			return obj, nil
		}
		if !isNotFound(serr) {
			return nil, serr
		}
	}
	return nil, err
}

func (p *FallbackProxy) healObject(d encoding.Digest, obj objects.Object) {
	if _, err := p.Primary.WriteObject(p.Primary.Scheme(), obj); err != nil {
		slog.Warn("fallback proxy self-heal failed", "digest", d, "error", err)
	}
}

func (p *FallbackProxy) WriteObject(scheme encoding.Scheme, obj objects.Object) (encoding.Digest, error) {
	return p.Primary.WriteObject(scheme, obj)
}

func (p *FallbackProxy) RemoveObject(d encoding.Digest) error {
	return p.Primary.RemoveObject(d)
}

func (p *FallbackProxy) IterObjects() ObjectIterator    { return p.Primary.IterObjects() }
func (p *FallbackProxy) IterLayers() ObjectIterator     { return p.Primary.IterLayers() }
func (p *FallbackProxy) IterPlatforms() ObjectIterator  { return p.Primary.IterPlatforms() }

func (p *FallbackProxy) ResolvePartial(pd encoding.PartialDigest) (encoding.Digest, error) {
	return p.Primary.ResolvePartial(pd)
}

func (p *FallbackProxy) WritePayload(r io.Reader) (encoding.Digest, uint64, error) {
	return p.Primary.WritePayload(r)
}

func (p *FallbackProxy) OpenPayload(d encoding.Digest) (io.ReadCloser, string, error) {
	rc, name, err := p.Primary.OpenPayload(d)
	if err == nil || !isNotFound(err) {
		return rc, name, err
	}

	for _, s := range p.Secondaries {
		rc, name, serr := s.OpenPayload(d)
		if serr == nil {
			if p.Heal {
				p.healPayload(d, rc)
				rc, _, err = s.OpenPayload(d)
				return rc, name, err
			}
			return rc, name, nil
		}
		if !isNotFound(serr) {
			return nil, "", serr
		}
	}
	return nil, "", err
}

// healPayload copies a payload read from a secondary back into the
// primary, consuming and closing the source reader.
func (p *FallbackProxy) healPayload(d encoding.Digest, r io.ReadCloser) {
	defer r.Close()
	if _, _, err := p.Primary.WritePayload(r); err != nil {
		slog.Warn("fallback proxy self-heal failed", "digest", d, "error", err)
	}
}

func (p *FallbackProxy) HasPayload(d encoding.Digest) bool {
	if p.Primary.HasPayload(d) {
		return true
	}
	for _, s := range p.Secondaries {
		if s.HasPayload(d) {
			return true
		}
	}
	return false
}

func (p *FallbackProxy) RemovePayload(d encoding.Digest) error {
	return p.Primary.RemovePayload(d)
}

func (p *FallbackProxy) PushTag(streamPath string, data []byte) (encoding.Digest, error) {
	return p.Primary.PushTag(streamPath, data)
}

func (p *FallbackProxy) ListStream(streamPath string) ([]StoredTag, error) {
	tags, err := p.Primary.ListStream(streamPath)
	if err == nil && len(tags) > 0 {
		return tags, nil
	}
	for _, s := range p.Secondaries {
		tags, serr := s.ListStream(streamPath)
		if serr == nil && len(tags) > 0 {
			return tags, nil
		}
	}
	return tags, err
}

func (p *FallbackProxy) RemoveTag(streamPath string, digest encoding.Digest) error {
	return p.Primary.RemoveTag(streamPath, digest)
}

func (p *FallbackProxy) RemoveStream(streamPath string) error {
	return p.Primary.RemoveStream(streamPath)
}

func (p *FallbackProxy) ListPaths(prefix string) ([]TagListing, error) {
	return p.Primary.ListPaths(prefix)
}

func (p *FallbackProxy) Object(d encoding.Digest) (objects.Object, error) {
	return p.ReadObject(d)
}

func (p *FallbackProxy) Tree(d encoding.Digest) (*objects.Tree, error) {
	obj, err := p.ReadObject(d)
	if err != nil {
		return nil, err
	}
	switch t := obj.(type) {
	case *objects.Tree:
		return t, nil
	case *objects.Manifest:
		return t.Root, nil
	default:
		return nil, fmt.Errorf("%w: %s is not a tree", ErrUnknownObject, d)
	}
}
