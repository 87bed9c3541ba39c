package objects

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/cruciblehq/spfs/internal/encoding"
)

// Blob is a payload-carrying leaf object. The payload bytes themselves
// live in a separate payload store keyed by PayloadDigest.
type Blob struct {
	PayloadDigest encoding.Digest
	Size          uint64
}

func (b *Blob) Kind() encoding.ObjectKind { return encoding.KindBlob }

func (b *Blob) Digest(scheme encoding.Scheme) encoding.Digest {
	return encoding.DigestBody(scheme, encoding.KindBlob, b.body())
}

func (b *Blob) body() []byte {
	var buf bytes.Buffer
	encoding.WriteDigest(&buf, b.PayloadDigest)
	encoding.WriteUint(&buf, b.Size)
	return buf.Bytes()
}

func (b *Blob) Encode(w io.Writer, scheme encoding.Scheme) error {
	if err := encoding.WriteHeader(w, scheme, encoding.KindBlob); err != nil {
		return err
	}
	_, err := w.Write(b.body())
	return err
}

func DecodeBlob(r *bufio.Reader) (*Blob, error) {
	if _, err := encoding.ConsumeTypedHeader(r, encoding.KindBlob); err != nil {
		return nil, err
	}
	payloadDigest, err := encoding.ReadDigest(r)
	if err != nil {
		return nil, fmt.Errorf("payload digest: %w", err)
	}
	size, err := encoding.ReadUint(r)
	if err != nil {
		return nil, fmt.Errorf("size: %w", err)
	}
	return &Blob{PayloadDigest: payloadDigest, Size: size}, nil
}

// ChildObjects returns nothing: a Blob's payload lives in the payload
// store, not the object graph, so it has no object-graph children.
func (b *Blob) ChildObjects() []encoding.Digest { return nil }
