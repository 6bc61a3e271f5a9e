package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	mrand "math/rand"
	"time"
)

// NewDrawSeed derives a published draw seed from a high-resolution timestamp
// combined with secure random bytes, hashed to a fixed-length hex string.
// The seed is persisted before any selection so a draw can be audited and
// replayed.
func NewDrawSeed() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}

	combined := time.Now().UTC().Format(time.RFC3339Nano) + hex.EncodeToString(randomBytes)
	hashed := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hashed[:]), nil
}

// DrawStream returns the deterministic pseudo-random stream derived from a
// seed string. The same seed always yields the same stream, which is what
// makes winner selection reproducible.
func DrawStream(seed string) *mrand.Rand {
	hashed := sha256.Sum256([]byte(seed))
	source := int64(binary.BigEndian.Uint64(hashed[:8]))
	return mrand.New(mrand.NewSource(source))
}

func SHA256(b []byte) string {
	hashed := sha256.Sum256(b)
	return hex.EncodeToString(hashed[:])
}
