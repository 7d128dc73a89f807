// Package urlnorm puts candidate navigation URLs in the form that is compared
// against the current location and written to history.
//
// The path is percent-encoded the way encodeURI does, with '#' and '?' also
// escaped so they cannot be mistaken for the query or fragment delimiter.
// The query has '#' and '+' escaped and its spaces written either as '+' or
// as %20. The fragment is percent-encoded. Existing escapes are kept, so
// encoding is stable for the path and fragment.
package urlnorm

import (
	"net/url"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// uriReserved holds the bytes encodeURI leaves alone besides alphanumerics.
const uriReserved = ";,/?:@&=+$-_.!~*'()#"

func unescaped(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte(uriReserved, c) >= 0
}

func ishex(c byte) bool {
	switch {
	case '0' <= c && c <= '9', 'a' <= c && c <= 'f', 'A' <= c && c <= 'F':
		return true
	}
	return false
}

// EncodeURI percent-encodes s like encodeURI, leaving valid %XX escapes as is.
func EncodeURI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%' && i+2 < len(s) && ishex(s[i+1]) && ishex(s[i+2]):
			b.WriteString(s[i : i+3])
			i += 2
		case unescaped(c):
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
		}
	}
	return b.String()
}

// Path encodes an escaped path.
func Path(escapedPath string) string {
	p := EncodeURI(escapedPath)
	p = strings.ReplaceAll(p, "#", "%23")
	return strings.ReplaceAll(p, "?", "%3F")
}

// Query encodes a raw query (without '?').
func Query(rawQuery string, spaceAsPlus bool) string {
	if rawQuery == "" {
		return ""
	}
	q := strings.ReplaceAll(rawQuery, "#", "%23")
	q = strings.ReplaceAll(q, "+", "%2B")
	if spaceAsPlus {
		q = strings.Map(func(r rune) rune {
			switch r {
			case ' ', '\t', '\n', '\r', '\f', '\v':
				return '+'
			}
			return r
		}, q)
		q = strings.ReplaceAll(q, "%20", "+")
	} else {
		q = strings.ReplaceAll(q, " ", "%20")
	}
	return EncodeURI(q)
}

// Fragment encodes an escaped fragment (without '#').
func Fragment(escapedFragment string) string {
	return EncodeURI(escapedFragment)
}

// Normalize returns the normalized absolute form of u.
func Normalize(u *url.URL, spaceAsPlus bool) (*url.URL, error) {
	var b strings.Builder
	origin := url.URL{Scheme: strings.ToLower(u.Scheme), Host: strings.ToLower(u.Host)}
	b.WriteString(origin.String())

	path := Path(u.EscapedPath())
	if path == "" {
		path = "/"
	}
	b.WriteString(path)

	if q := Query(u.RawQuery, spaceAsPlus); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	if f := Fragment(u.EscapedFragment()); f != "" {
		b.WriteByte('#')
		b.WriteString(f)
	}
	return url.Parse(b.String())
}

// Same reports whether a and b have the same path, query and fragment in
// their escaped forms.
func Same(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return a.EscapedPath() == b.EscapedPath() &&
		a.RawQuery == b.RawQuery &&
		a.EscapedFragment() == b.EscapedFragment()
}
