package accesscode

import (
	"crypto/rand"
	"encoding/base32"
	"strings"

	"github.com/pkg/errors"
)

const (
	codeBytes     = 10 // 16 base32 chars
	codeGroupSize = 4
)

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// MintCode generates a new opaque code token from crypto/rand, base32-encoded
// and dash-grouped for readability, e.g. "Q2VH-7RGB-3KJM-ACE5".
func MintCode() (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	raw := codeEncoding.EncodeToString(buf)

	var b strings.Builder
	for i := 0; i < len(raw); i += codeGroupSize {
		if i > 0 {
			b.WriteByte('-')
		}
		end := i + codeGroupSize
		if end > len(raw) {
			end = len(raw)
		}
		b.WriteString(raw[i:end])
	}
	return b.String(), nil
}
