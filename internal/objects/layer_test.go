package objects

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/cruciblehq/spfs/internal/encoding"
)

func TestLayerValidateV1RequiresManifestNoAnnotations(t *testing.T) {
	d := mustDigest("manifest")
	l := &Layer{Manifest: &d}
	if err := l.Validate(encoding.SchemeV1); err != nil {
		t.Fatalf("expected valid v1 layer, got %v", err)
	}

	l.Annotations = map[string]AnnotationValue{"k": {String: "v"}}
	if err := l.Validate(encoding.SchemeV1); !errors.Is(err, ErrLayerHasAnnotationsUnderV1) {
		t.Fatalf("expected ErrLayerHasAnnotationsUnderV1, got %v", err)
	}
}

func TestLayerValidateV1RejectsMissingManifest(t *testing.T) {
	l := &Layer{Manifest: nil}
	if err := l.Validate(encoding.SchemeV1); !errors.Is(err, ErrLayerEmpty) {
		t.Fatalf("expected ErrLayerEmpty, got %v", err)
	}
}

func TestLayerValidateV2AllowsAnnotationsOnly(t *testing.T) {
	l := &Layer{Annotations: map[string]AnnotationValue{"k": {String: "v"}}}
	if err := l.Validate(encoding.SchemeV2); err != nil {
		t.Fatalf("expected valid v2 annotations-only layer, got %v", err)
	}
}

func TestLayerValidateV2RejectsEmpty(t *testing.T) {
	l := &Layer{}
	if err := l.Validate(encoding.SchemeV2); !errors.Is(err, ErrLayerEmpty) {
		t.Fatalf("expected ErrLayerEmpty, got %v", err)
	}
}

func TestLayerEncodeDecodeRoundTrip(t *testing.T) {
	manifestDigest := mustDigest("manifest")
	blobDigest := mustDigest("blob")
	l := &Layer{
		Manifest: &manifestDigest,
		Annotations: map[string]AnnotationValue{
			"note":   {String: "hello"},
			"source": {IsBlobDigest: true, BlobDigest: blobDigest},
		},
	}
	if err := l.Validate(encoding.SchemeV2); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	var buf bytes.Buffer
	if err := l.Encode(&buf, encoding.SchemeV2); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := DecodeLayer(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("DecodeLayer: %v", err)
	}
	if *decoded.Manifest != manifestDigest {
		t.Fatalf("manifest digest mismatch")
	}
	if decoded.Annotations["note"].String != "hello" {
		t.Fatalf("string annotation mismatch: %+v", decoded.Annotations["note"])
	}
	if !decoded.Annotations["source"].IsBlobDigest || decoded.Annotations["source"].BlobDigest != blobDigest {
		t.Fatalf("blob digest annotation mismatch: %+v", decoded.Annotations["source"])
	}
}

func TestLayerChildObjectsIncludesManifestAndBlobAnnotations(t *testing.T) {
	manifestDigest := mustDigest("manifest")
	blobDigest := mustDigest("blob")
	l := &Layer{
		Manifest: &manifestDigest,
		Annotations: map[string]AnnotationValue{
			"source": {IsBlobDigest: true, BlobDigest: blobDigest},
			"note":   {String: "no child here"},
		},
	}
	children := l.ChildObjects()
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d: %v", len(children), children)
	}
}

func TestDecodeLayerRejectsEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	encoding.WriteHeader(&buf, encoding.SchemeV2, encoding.KindLayer)
	encoding.WriteUint(&buf, 0) // no manifest
	encoding.WriteUint(&buf, 0) // no annotations

	_, err := DecodeLayer(bufio.NewReader(&buf))
	if !errors.Is(err, ErrLayerEmpty) {
		t.Fatalf("expected ErrLayerEmpty, got %v", err)
	}
}
