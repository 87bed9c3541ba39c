package encoding

import (
	"bufio"
	"bytes"
	"errors"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHeader(&buf, SchemeV2, KindBlob); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	_, kind, err := ConsumeHeader(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ConsumeHeader: %v", err)
	}
	if kind != KindBlob {
		t.Fatalf("expected KindBlob, got %v", kind)
	}
}

func TestHeaderRoundTripDistinguishesKinds(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHeader(&buf, SchemeV2, KindLayer); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	_, kind, err := ConsumeHeader(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ConsumeHeader: %v", err)
	}
	if kind != KindLayer {
		t.Fatalf("expected KindLayer, got %v", kind)
	}
}

func TestConsumeHeaderRejectsGarbage(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("not.a.header\n")))
	_, _, err := ConsumeHeader(r)
	if !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
}

func TestUintRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteUint(&buf, 0xDEADBEEFCAFE); err != nil {
		t.Fatalf("WriteUint: %v", err)
	}
	if buf.Len() != 8 {
		t.Fatalf("expected 8-byte fixed width encoding, got %d bytes", buf.Len())
	}

	got, err := ReadUint(&buf)
	if err != nil {
		t.Fatalf("ReadUint: %v", err)
	}
	if got != 0xDEADBEEFCAFE {
		t.Fatalf("round trip mismatch: got %x", got)
	}
}

func TestIntRoundTripNegative(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteInt(&buf, -42); err != nil {
		t.Fatalf("WriteInt: %v", err)
	}
	got, err := ReadInt(&buf)
	if err != nil {
		t.Fatalf("ReadInt: %v", err)
	}
	if got != -42 {
		t.Fatalf("round trip mismatch: got %d", got)
	}
}

func TestStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteString(&buf, "hello/world.txt"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}

	got, err := ReadString(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if got != "hello/world.txt" {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}

func TestWriteStringRejectsEmbeddedNull(t *testing.T) {
	var buf bytes.Buffer
	err := WriteString(&buf, "bad\x00name")
	if !errors.Is(err, ErrStringHasNull) {
		t.Fatalf("expected ErrStringHasNull, got %v", err)
	}
}

func TestWriteStringAllowsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteString(&buf, ""); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	got, err := ReadString(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestDigestRoundTripThroughBinaryCodec(t *testing.T) {
	d := Hash([]byte("framed"))
	var buf bytes.Buffer
	if err := WriteDigest(&buf, d); err != nil {
		t.Fatalf("WriteDigest: %v", err)
	}
	got, err := ReadDigest(&buf)
	if err != nil {
		t.Fatalf("ReadDigest: %v", err)
	}
	if got != d {
		t.Fatalf("round trip mismatch: got %s, want %s", got, d)
	}
}

func TestDigestBodySchemeV1IgnoresKind(t *testing.T) {
	body := []byte("same body")
	blobDigest := DigestBody(SchemeV1, KindBlob, body)
	layerDigest := DigestBody(SchemeV1, KindLayer, body)
	if blobDigest != layerDigest {
		t.Fatal("v1 scheme digest must not depend on kind")
	}
}

func TestDigestBodySchemeV2DependsOnKind(t *testing.T) {
	body := []byte("same body")
	blobDigest := DigestBody(SchemeV2, KindBlob, body)
	layerDigest := DigestBody(SchemeV2, KindLayer, body)
	if blobDigest == layerDigest {
		t.Fatal("v2 scheme digest must depend on kind")
	}
}

func TestDigestBodySchemeV1MatchesPlainHash(t *testing.T) {
	body := []byte("raw bytes")
	if DigestBody(SchemeV1, KindBlob, body) != Hash(body) {
		t.Fatal("v1 scheme digest should equal a plain hash of the body")
	}
}

func TestVerifyDigestRecoversScheme(t *testing.T) {
	body := []byte("verify me")

	v1 := DigestBody(SchemeV1, KindBlob, body)
	scheme, ok := VerifyDigest(KindBlob, body, v1)
	if !ok || scheme != SchemeV1 {
		t.Fatalf("expected SchemeV1 match, got scheme=%v ok=%v", scheme, ok)
	}

	v2 := DigestBody(SchemeV2, KindBlob, body)
	scheme, ok = VerifyDigest(KindBlob, body, v2)
	if !ok || scheme != SchemeV2 {
		t.Fatalf("expected SchemeV2 match, got scheme=%v ok=%v", scheme, ok)
	}
}

func TestVerifyDigestRejectsMismatch(t *testing.T) {
	_, ok := VerifyDigest(KindBlob, []byte("a"), Hash([]byte("b")))
	if ok {
		t.Fatal("expected VerifyDigest to reject a mismatched digest")
	}
}

func TestObjectKindStringAndValid(t *testing.T) {
	if KindBlob.String() != "blob" {
		t.Fatalf("unexpected blob kind string: %s", KindBlob.String())
	}
	if !KindMask.Valid() {
		t.Fatal("KindMask should be valid")
	}
	if ObjectKind(200).Valid() {
		t.Fatal("out of range kind should be invalid")
	}
	if ObjectKind(200).String() != "unknown" {
		t.Fatalf("expected unknown, got %s", ObjectKind(200).String())
	}
}
