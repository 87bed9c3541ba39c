package objects

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/cruciblehq/spfs/internal/encoding"
)

// Stack is an ordered list of layer digests, bottom-up. A digest may
// appear at most once: pushing a duplicate removes any previous
// occurrence and the new push takes its position — "last occurrence wins,
// others removed". This canonicalization is applied
// on construction, not left to callers to maintain.
type Stack struct {
	layers []encoding.Digest
}

// NewStack builds a canonicalized Stack from an ordered list of layer
// digests, applying last-occurrence-wins deduplication.
func NewStack(layers []encoding.Digest) *Stack {
	s := &Stack{}
	for _, d := range layers {
		s.Push(d)
	}
	return s
}

// Push appends d to the top of the stack, removing any prior occurrence
// of d first so it ends up in the new position.
func (s *Stack) Push(d encoding.Digest) {
	out := s.layers[:0:0]
	for _, existing := range s.layers {
		if existing != d {
			out = append(out, existing)
		}
	}
	s.layers = append(out, d)
}

// Layers returns the stack's digests, bottom-up.
func (s *Stack) Layers() []encoding.Digest {
	return append([]encoding.Digest(nil), s.layers...)
}

// Len returns the number of layers in the stack.
func (s *Stack) Len() int { return len(s.layers) }

// Top returns the most recently pushed layer digest, if any.
func (s *Stack) Top() (encoding.Digest, bool) {
	if len(s.layers) == 0 {
		return encoding.Digest{}, false
	}
	return s.layers[len(s.layers)-1], true
}

// Platform is an ordered Stack of layer digests intended to be mounted
// together.
type Platform struct {
	Stack *Stack
}

func (p *Platform) Kind() encoding.ObjectKind { return encoding.KindPlatform }

func (p *Platform) Digest(scheme encoding.Scheme) encoding.Digest {
	return encoding.DigestBody(scheme, encoding.KindPlatform, p.body())
}

func (p *Platform) body() []byte {
	var buf bytes.Buffer
	layers := p.Stack.Layers()
	encoding.WriteUint(&buf, uint64(len(layers)))
	for _, d := range layers {
		encoding.WriteDigest(&buf, d)
	}
	return buf.Bytes()
}

func (p *Platform) Encode(w io.Writer, scheme encoding.Scheme) error {
	if err := encoding.WriteHeader(w, scheme, encoding.KindPlatform); err != nil {
		return err
	}
	_, err := w.Write(p.body())
	return err
}

func DecodePlatform(r *bufio.Reader) (*Platform, error) {
	if _, err := encoding.ConsumeTypedHeader(r, encoding.KindPlatform); err != nil {
		return nil, err
	}

	count, err := encoding.ReadUint(r)
	if err != nil {
		return nil, fmt.Errorf("layer count: %w", err)
	}
	layers := make([]encoding.Digest, 0, count)
	for i := uint64(0); i < count; i++ {
		d, err := encoding.ReadDigest(r)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layers = append(layers, d)
	}
	return &Platform{Stack: NewStack(layers)}, nil
}

// ChildObjects returns the platform's layer digests.
func (p *Platform) ChildObjects() []encoding.Digest {
	return p.Stack.Layers()
}
