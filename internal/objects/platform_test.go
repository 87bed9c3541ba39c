package objects

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/cruciblehq/spfs/internal/encoding"
)

func TestStackPushDeduplicatesLastOccurrenceWins(t *testing.T) {
	a := mustDigest("a")
	b := mustDigest("b")
	c := mustDigest("c")

	s := NewStack([]encoding.Digest{a, b, c, a})
	layers := s.Layers()
	if len(layers) != 3 {
		t.Fatalf("expected 3 layers after dedup, got %d: %v", len(layers), layers)
	}
	if layers[len(layers)-1] != a {
		t.Fatalf("expected re-pushed digest to move to the top, got %v", layers)
	}
	if layers[0] != b {
		t.Fatalf("expected b to remain bottom after a's original occurrence was removed, got %v", layers)
	}
}

func TestStackTop(t *testing.T) {
	s := NewStack(nil)
	if _, ok := s.Top(); ok {
		t.Fatal("empty stack should have no top")
	}
	a := mustDigest("a")
	s.Push(a)
	top, ok := s.Top()
	if !ok || top != a {
		t.Fatalf("expected top %v, got %v (ok=%v)", a, top, ok)
	}
}

func TestPlatformEncodeDecodeRoundTrip(t *testing.T) {
	s := NewStack([]encoding.Digest{mustDigest("a"), mustDigest("b")})
	p := &Platform{Stack: s}

	var buf bytes.Buffer
	if err := p.Encode(&buf, encoding.SchemeV2); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := DecodePlatform(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("DecodePlatform: %v", err)
	}
	if decoded.Stack.Len() != 2 {
		t.Fatalf("expected 2 layers, got %d", decoded.Stack.Len())
	}
	for i, d := range decoded.Stack.Layers() {
		if d != s.Layers()[i] {
			t.Fatalf("layer %d mismatch", i)
		}
	}
}

func TestPlatformChildObjectsMatchesStack(t *testing.T) {
	s := NewStack([]encoding.Digest{mustDigest("a"), mustDigest("b")})
	p := &Platform{Stack: s}
	if len(p.ChildObjects()) != 2 {
		t.Fatalf("expected 2 child objects, got %d", len(p.ChildObjects()))
	}
}
