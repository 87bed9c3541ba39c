package objects

import (
	"bufio"
	"io"

	"github.com/cruciblehq/spfs/internal/encoding"
)

// Mask is the zero-sized marker object referenced by a Tree Entry whose
// kind is [EntryKindMask]: its presence at a path hides any lower-layer
// entry of the same name in the overlay view.
type Mask struct{}

func (m Mask) Kind() encoding.ObjectKind { return encoding.KindMask }

// Digest returns the (scheme-dependent) digest of the empty mask body.
// Every Mask object has the same digest under a given scheme, since its
// body is always empty.
func (m Mask) Digest(scheme encoding.Scheme) encoding.Digest {
	return encoding.DigestBody(scheme, encoding.KindMask, nil)
}

func (m Mask) Encode(w io.Writer, scheme encoding.Scheme) error {
	return encoding.WriteHeader(w, scheme, encoding.KindMask)
}

func DecodeMask(r *bufio.Reader) (Mask, error) {
	if _, err := encoding.ConsumeTypedHeader(r, encoding.KindMask); err != nil {
		return Mask{}, err
	}
	return Mask{}, nil
}

// ChildObjects returns nothing: a mask references no other object.
func (m Mask) ChildObjects() []encoding.Digest { return nil }
