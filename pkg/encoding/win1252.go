package encoding

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Catalogs migrated from the old Delphi PDV arrive with Windows-1252 bytes
// in TEXT columns. Everything leaving for the backend must be valid UTF-8.

// ToUTF8 converts a slice of bytes (WIN1252) to a UTF-8 string
// If the data is already valid UTF-8, it returns it as is
func ToUTF8(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	if utf8.Valid(b) {
		return strings.TrimSpace(string(b))
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		// Fallback: return raw string if decoding fails (better than crashing)
		return strings.TrimSpace(string(b))
	}

	return strings.TrimSpace(string(decoded))
}

// SanitizeText is the string-typed variant used by the outbound payload
// builder on every TEXT column
func SanitizeText(s string) string {
	if s == "" {
		return ""
	}
	if utf8.ValidString(s) {
		return strings.TrimSpace(s)
	}
	return ToUTF8([]byte(s))
}
