// Package joincode mints the short human-facing codes audiences type to
// join a live session. Codes only need to be unique among concurrently
// active sessions, so they stay short; the alphabet drops characters that
// are easy to misread on a projector (0/O, 1/I/L).
package joincode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	// Length of minted codes. 31^5 ~ 28.6M combinations, plenty for the
	// handful of sessions active at once.
	Length = 5
)

// Mint returns a fresh join code. Callers are responsible for checking
// uniqueness against currently-active sessions and re-minting on
// collision.
func Mint() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

// Normalize maps user input to canonical code form. Lookup is
// case-insensitive.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
