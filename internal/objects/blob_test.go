package objects

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/cruciblehq/spfs/internal/encoding"
)

func TestBlobEncodeDecodeRoundTrip(t *testing.T) {
	b := &Blob{PayloadDigest: mustDigest("payload"), Size: 1024}

	var buf bytes.Buffer
	if err := b.Encode(&buf, encoding.SchemeV2); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := DecodeBlob(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("DecodeBlob: %v", err)
	}
	if decoded.PayloadDigest != b.PayloadDigest || decoded.Size != b.Size {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, b)
	}
}

func TestBlobHasNoChildObjects(t *testing.T) {
	b := &Blob{PayloadDigest: mustDigest("payload"), Size: 1}
	if b.ChildObjects() != nil {
		t.Fatal("blob should have no object-graph children")
	}
}
