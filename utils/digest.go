package utils

import (
	"encoding/hex"
	"strings"

	"golang.org/x/xerrors"
)

// DigestHexLen is the length of a hex-encoded SHA-256 digest.
const DigestHexLen = 64

// ParseDigest normalizes a hex content digest coming from the outside: it
// strips an optional 0x prefix, lowercases the rest and checks that it is
// valid hex of even length. It returns the normalized form.
func ParseDigest(s string) (string, error) {
	d := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if d == "" {
		return "", xerrors.New("empty digest")
	}
	if _, err := hex.DecodeString(d); err != nil {
		return "", xerrors.Errorf("invalid hex digest %q: %v", s, err)
	}
	return d, nil
}

// ParseDigest32 is ParseDigest restricted to 256-bit digests, the size every
// anchored content hash is expected to have.
func ParseDigest32(s string) (string, error) {
	d, err := ParseDigest(s)
	if err != nil {
		return "", err
	}
	if len(d) != DigestHexLen {
		return "", xerrors.Errorf("digest %q: got %d hex chars, want %d",
			s, len(d), DigestHexLen)
	}
	return d, nil
}
