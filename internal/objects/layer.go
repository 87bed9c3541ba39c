package objects

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/cruciblehq/spfs/internal/encoding"
)

// AnnotationValue is either a plain string or a reference to a Blob by
// digest.
type AnnotationValue struct {
	// IsBlobDigest selects which field is populated.
	IsBlobDigest bool
	String       string
	BlobDigest   encoding.Digest
}

const (
	annotationTagString     = 0
	annotationTagBlobDigest = 1
)

// Layer is a single filesystem change-set plus optional annotations.
// Under v1 encoding a layer must have a manifest and no annotations;
// under v2 a layer may have annotations, manifest, or both, but not
// neither.
type Layer struct {
	Manifest    *encoding.Digest // nil if absent
	Annotations map[string]AnnotationValue
}

func (l *Layer) Kind() encoding.ObjectKind { return encoding.KindLayer }

func (l *Layer) Digest(scheme encoding.Scheme) encoding.Digest {
	return encoding.DigestBody(scheme, encoding.KindLayer, l.body())
}

// sortedAnnotationKeys returns annotation keys in a deterministic order so
// encoding is stable regardless of map iteration order.
func (l *Layer) sortedAnnotationKeys() []string {
	keys := make([]string, 0, len(l.Annotations))
	for k := range l.Annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (l *Layer) body() []byte {
	var buf bytes.Buffer

	if l.Manifest != nil {
		encoding.WriteUint(&buf, 1)
		encoding.WriteDigest(&buf, *l.Manifest)
	} else {
		encoding.WriteUint(&buf, 0)
	}

	keys := l.sortedAnnotationKeys()
	encoding.WriteUint(&buf, uint64(len(keys)))
	for _, k := range keys {
		v := l.Annotations[k]
		encoding.WriteString(&buf, k)
		if v.IsBlobDigest {
			encoding.WriteUint(&buf, annotationTagBlobDigest)
			encoding.WriteDigest(&buf, v.BlobDigest)
		} else {
			encoding.WriteUint(&buf, annotationTagString)
			encoding.WriteString(&buf, v.String)
		}
	}
	return buf.Bytes()
}

// Validate enforces the v1/v2 shape invariant for the given scheme. Writers
// MUST call this before Encode; it is also applied on Decode, using the
// scheme named by the object's header.
func (l *Layer) Validate(scheme encoding.Scheme) error {
	hasManifest := l.Manifest != nil
	hasAnnotations := len(l.Annotations) > 0

	if scheme == encoding.SchemeV1 && hasAnnotations {
		return ErrLayerHasAnnotationsUnderV1
	}
	if scheme == encoding.SchemeV1 && !hasManifest {
		return ErrLayerEmpty
	}
	if !hasManifest && !hasAnnotations {
		return ErrLayerEmpty
	}
	return nil
}

// Encode enforces [Layer.Validate] for scheme before writing: writers
// targeting v1 MUST refuse an invalid shape.
func (l *Layer) Encode(w io.Writer, scheme encoding.Scheme) error {
	if err := l.Validate(scheme); err != nil {
		return err
	}
	if err := encoding.WriteHeader(w, scheme, encoding.KindLayer); err != nil {
		return err
	}
	_, err := w.Write(l.body())
	return err
}

func DecodeLayer(r *bufio.Reader) (*Layer, error) {
	scheme, err := encoding.ConsumeTypedHeader(r, encoding.KindLayer)
	if err != nil {
		return nil, err
	}

	hasManifest, err := encoding.ReadUint(r)
	if err != nil {
		return nil, fmt.Errorf("manifest flag: %w", err)
	}

	l := &Layer{Annotations: map[string]AnnotationValue{}}
	if hasManifest == 1 {
		d, err := encoding.ReadDigest(r)
		if err != nil {
			return nil, fmt.Errorf("manifest digest: %w", err)
		}
		l.Manifest = &d
	}

	count, err := encoding.ReadUint(r)
	if err != nil {
		return nil, fmt.Errorf("annotation count: %w", err)
	}
	for i := uint64(0); i < count; i++ {
		key, err := encoding.ReadString(r)
		if err != nil {
			return nil, fmt.Errorf("annotation %d key: %w", i, err)
		}
		tag, err := encoding.ReadUint(r)
		if err != nil {
			return nil, fmt.Errorf("annotation %d tag: %w", i, err)
		}
		switch tag {
		case annotationTagString:
			s, err := encoding.ReadString(r)
			if err != nil {
				return nil, fmt.Errorf("annotation %d value: %w", i, err)
			}
			l.Annotations[key] = AnnotationValue{String: s}
		case annotationTagBlobDigest:
			d, err := encoding.ReadDigest(r)
			if err != nil {
				return nil, fmt.Errorf("annotation %d blob digest: %w", i, err)
			}
			l.Annotations[key] = AnnotationValue{IsBlobDigest: true, BlobDigest: d}
		default:
			return nil, fmt.Errorf("%w: tag %d", ErrInvalidAnnotationValue, tag)
		}
	}

	if err := l.Validate(scheme); err != nil {
		return nil, err
	}
	return l, nil
}

// ChildObjects returns the manifest digest (if present) and any
// Blob-Digest annotation references.
func (l *Layer) ChildObjects() []encoding.Digest {
	var out []encoding.Digest
	if l.Manifest != nil {
		out = append(out, *l.Manifest)
	}
	for _, k := range l.sortedAnnotationKeys() {
		v := l.Annotations[k]
		if v.IsBlobDigest {
			out = append(out, v.BlobDigest)
		}
	}
	return out
}
