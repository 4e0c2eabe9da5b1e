package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/minio/sha256-simd"
)

// DigestSize is the length in bytes of a content digest.
const DigestSize = sha256.Size

// Digest is the SHA-256 of a blob's exact bytes. It is both the storage key and
// the deduplication key.
type Digest [DigestSize]byte

// SumDigest hashes the payload.
func SumDigest(payload []byte) Digest {
	return Digest(sha256.Sum256(payload))
}

// Hex renders the digest as uppercase hex, the canonical on-disk and outward form.
func (d Digest) Hex() string {
	return strings.ToUpper(hex.EncodeToString(d[:]))
}

func (d Digest) String() string {
	return d.Hex()
}

// Bytes returns a copy suitable for binding into SQL.
func (d Digest) Bytes() []byte {
	out := make([]byte, DigestSize)
	copy(out, d[:])
	return out
}

// DigestFromBytes rebuilds a digest read back from storage.
func DigestFromBytes(raw []byte) (Digest, error) {
	var d Digest
	if len(raw) != DigestSize {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

// ParseDigest accepts hex in either case.
func ParseDigest(value string) (Digest, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return Digest{}, fmt.Errorf("decode digest: %w", err)
	}
	return DigestFromBytes(raw)
}
