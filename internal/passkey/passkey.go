// Package passkey derives archive passwords from the key attribute of a
// recovery manifest transfer entry.
package passkey

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Fixed protocol constants. Changing any of them produces passwords the
// recovery archives will not accept.
const (
	alphabet   = "k`gybs0vampjd"
	alphabetSz = 13
	cycle      = 3
	offset     = 2
)

// EncodingError reports a derived code point that is not a valid Unicode
// scalar value.
type EncodingError struct {
	Position  int
	CodePoint int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("derived code point %#x at position %d is not a valid character", e.CodePoint, e.Position)
}

// Transform maps a manifest key to the archive password. The empty key maps
// to the empty password.
func Transform(secret string) (string, error) {
	if secret == "" {
		return "", nil
	}

	var b strings.Builder
	b.Grow(len(secret))

	i := 0
	for _, r := range secret {
		idx := int(r) % alphabetSz
		cp := int(alphabet[idx]) - (i % cycle) + offset
		if !utf8.ValidRune(rune(cp)) {
			return "", &EncodingError{Position: i, CodePoint: cp}
		}
		b.WriteRune(rune(cp))
		i++
	}
	return b.String(), nil
}
