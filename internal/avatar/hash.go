package avatar

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/spec-kit/messaging-service/internal/domain"
)

// HashEmail returns the lower-case hex SHA-256 of the normalized email. Case
// and surrounding whitespace do not change the result.
//
// The hash is unkeyed, as the avatar service expects. It hides the address
// from casual readers only: anyone holding a list of candidate emails can
// recover a match by hashing them, so treat the identifier as public.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(domain.NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])
}
