package chat

import (
	"math/rand/v2"
	"strings"
)

// lightHexDigits keeps every channel in the upper half so names stay
// readable on dark text.
const lightHexDigits = "89ABCDEF"

// RandomColor returns a light "#RRGGBB" color.
func RandomColor() string {
	var b strings.Builder
	b.Grow(7)
	b.WriteByte('#')
	for range 6 {
		b.WriteByte(lightHexDigits[rand.IntN(len(lightHexDigits))])
	}
	return b.String()
}
