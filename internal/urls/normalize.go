// Package urls turns raw request paths from report files into canonical page names and
// decides which of them are worth storing.
package urls

import (
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultStripPrefix is the article path segment removed from wiki URLs.
const DefaultStripPrefix = "wiki/"

// Normalizer canonicalizes raw path tokens.
type Normalizer struct {
	StripPrefix string
}

// NewNormalizer returns a Normalizer that removes stripPrefix after the leading slash.
func NewNormalizer(stripPrefix string) Normalizer {
	return Normalizer{StripPrefix: stripPrefix}
}

// Normalize applies, in order: strip one leading "/", strip the configured prefix,
// percent-decode, and replace underscores with spaces.
//
//	/wiki/Caf%C3%A9_du_Monde -> Café du Monde
func (n Normalizer) Normalize(raw string) string {
	path := strings.TrimPrefix(raw, "/")
	if n.StripPrefix != "" {
		path = strings.TrimPrefix(path, n.StripPrefix)
	}
	return canonicalize(path)
}

// CanonicalTitle brings a page title from the content API into the same form Normalize
// produces, so both sides of the allowlist comparison agree.
func CanonicalTitle(title string) string {
	return canonicalize(title)
}

func canonicalize(s string) string {
	s = unquote(s)
	s = strings.ReplaceAll(s, "_", " ")
	return norm.NFC.String(s)
}

// unquote decodes each valid %XX escape on its own; a malformed escape stays literal
// without spoiling the others. Bytes that do not form UTF-8 become U+FFFD.
func unquote(s string) string {
	if !strings.Contains(s, "%") {
		return strings.ToValidUTF8(s, "\uFFFD")
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if v, err := hex.DecodeString(s[i+1 : i+3]); err == nil {
				b.WriteByte(v[0])
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}
