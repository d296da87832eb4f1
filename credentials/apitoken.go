package credentials

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/devaulthq/devault/internal/util"
)

// APITokenPrefix makes raw tokens recognizable in config files and scanners.
const APITokenPrefix = "dvt_"

const apiTokenBytes = 32

// GenerateAPIToken returns a fresh opaque API token and its lookup hash.
// The raw value is shown to the caller exactly once; only the hash is stored.
func GenerateAPIToken() (raw, hash string, err error) {
	b, err := util.RandomBytes(apiTokenBytes)
	if err != nil {
		return "", "", err
	}
	raw = APITokenPrefix + hex.EncodeToString(b)
	return raw, HashAPIToken(raw), nil
}

// HashAPIToken derives the stored lookup hash for a raw token. A fast hash is
// deliberate: the token already carries 256 bits of entropy, so a slow
// password hash would buy nothing.
func HashAPIToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
