// Package email holds helpers for addresses supplied by operators.
package email

import (
	"strings"
	"unicode"
)

// DisplayName builds a readable name from the local part of an address,
// so "ama.owusu+shop@example.com" becomes "Ama Owusu Shop". An address
// with no usable local part yields "Vendor".
func DisplayName(address string) string {
	local := address
	if at := strings.IndexByte(address, '@'); at >= 0 {
		local = address[:at]
	}
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "Vendor"
	}
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
