// Package digest is the content hash used to address blobs and trees.
package digest

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Kind is mixed into every digest so blob and tree addresses never alias.
type Kind byte

const (
	KindBlob Kind = 0x01
	KindTree Kind = 0x02
)

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindTree:
		return "tree"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Digest is a 64-bit xxhash of a kind byte followed by the object bytes.
type Digest uint64

// None is the zero digest; never produced for stored content.
const None Digest = 0

const Size = 8

func Sum(kind Kind, data []byte) Digest {
	h := New(kind)
	h.Write(data)
	return h.Sum()
}

// Hasher streams content into a digest.
type Hasher struct {
	d *xxhash.Digest
}

func New(kind Kind) *Hasher {
	d := xxhash.New()
	d.Write([]byte{byte(kind)})
	return &Hasher{d: d}
}

func (h *Hasher) Write(p []byte) (int, error) {
	return h.d.Write(p)
}

func (h *Hasher) Sum() Digest {
	return Digest(h.d.Sum64())
}

func (d Digest) String() string {
	return fmt.Sprintf("%016x", uint64(d))
}

// Short is the abbreviated form used in CLI output.
func (d Digest) Short() string {
	return d.String()[:8]
}

func (d Digest) Bytes() []byte {
	b := make([]byte, Size)
	binary.BigEndian.PutUint64(b, uint64(d))
	return b
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Parse accepts the 16-character hex form.
func Parse(s string) (Digest, error) {
	if len(s) != 2*Size {
		return None, fmt.Errorf("invalid digest %q: want %d hex characters", s, 2*Size)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return None, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	return Digest(binary.BigEndian.Uint64(b)), nil
}
