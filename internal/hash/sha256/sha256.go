// Package sha256 computes the digests recorded for downloaded advisory assets.
// Digests carry their algorithm, as in "sha256:<hex>", so that archived object
// metadata and published events name it without a side channel.
package sha256

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Algorithm prefixes every digest produced by Hasher.
const Algorithm = "sha256:"

// ErrMismatch is returned by Verify when content does not match its digest.
var ErrMismatch = errors.New("digest mismatch")

// Hasher implements advisory.Hasher.
type Hasher struct{}

// New returns a Hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the tagged digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return Algorithm + hex.EncodeToString(sum[:]), nil
}

// Verify reports whether data still matches digest. Malformed digests are
// rejected rather than compared.
func (h *Hasher) Verify(data []byte, digest string) error {
	want, err := decode(digest)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	if subtle.ConstantTimeCompare(sum[:], want) != 1 {
		return fmt.Errorf("%w: have %s%x, want %s", ErrMismatch, Algorithm, sum, digest)
	}
	return nil
}

func decode(digest string) ([]byte, error) {
	raw, ok := strings.CutPrefix(digest, Algorithm)
	if !ok {
		return nil, fmt.Errorf("digest %q: missing %s prefix", digest, Algorithm)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("digest %q: %w", digest, err)
	}
	if len(b) != sha256.Size {
		return nil, fmt.Errorf("digest %q: want %d bytes, got %d", digest, sha256.Size, len(b))
	}
	return b, nil
}
