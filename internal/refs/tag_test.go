package refs

import (
	"testing"
	"time"

	"github.com/cruciblehq/spfs/internal/encoding"
)

func TestTagEncodeDecodeRoundTrip(t *testing.T) {
	tag := Tag{
		Org:    "acme",
		Name:   "widgets",
		Target: encoding.Hash([]byte("target")),
		Parent: encoding.Hash([]byte("parent")),
		User:   "alice",
		Time:   time.Unix(1700000000, 123000000).UTC(),
	}

	data := tag.Encode()
	got, err := DecodeTag(data)
	if err != nil {
		t.Fatalf("DecodeTag: %v", err)
	}

	if got.Org != tag.Org || got.Name != tag.Name || got.User != tag.User {
		t.Fatalf("decoded = %+v, want %+v", got, tag)
	}
	if got.Target != tag.Target || got.Parent != tag.Parent {
		t.Fatalf("decoded digests mismatch: %+v", got)
	}
	if !got.Time.Equal(tag.Time) {
		t.Fatalf("Time = %v, want %v", got.Time, tag.Time)
	}
}

func TestTagEncodeTimeIsLastEightBytes(t *testing.T) {
	tag := Tag{
		Org:    "acme",
		Name:   "widgets",
		Target: encoding.NullDigest,
		Parent: encoding.NullDigest,
		User:   "",
		Time:   time.Unix(0, 1234567890).UTC(),
	}

	data := tag.Encode()
	if len(data) < 8 {
		t.Fatalf("record too short: %d bytes", len(data))
	}

	trailer := data[len(data)-8:]
	var nanos int64
	for _, b := range trailer {
		nanos = nanos<<8 | int64(b)
	}
	if nanos != tag.Time.UnixNano() {
		t.Fatalf("trailer nanos = %d, want %d", nanos, tag.Time.UnixNano())
	}
}

func TestTagDigestDeterministic(t *testing.T) {
	tag := Tag{Org: "acme", Name: "widgets", Target: encoding.NullDigest, Parent: encoding.NullDigest, Time: time.Unix(1, 0)}
	d1 := tag.Digest()
	d2 := tag.Digest()
	if d1 != d2 {
		t.Fatalf("Digest() not deterministic: %s != %s", d1, d2)
	}
}

func TestTagSpecFromTag(t *testing.T) {
	tag := Tag{Org: "acme", Name: "widgets"}
	if got := tag.Spec(); got.Org != "acme" || got.Name != "widgets" || got.Version != 0 {
		t.Fatalf("Spec() = %+v", got)
	}
}
