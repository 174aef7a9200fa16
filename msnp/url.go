package msnp

// MSNP percent-encodes display names and group names using the classic
// RFC 3986 unreserved set, leaving the space as %20 rather than '+'. The
// standard library's net/url.QueryEscape encodes spaces as '+' and is meant
// for application/x-www-form-urlencoded bodies, which is not what the wire
// protocol expects, so we keep a small dedicated encoder here instead.
const upperhex = "0123456789ABCDEF"

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	}
	return false
}

// EscapeString percent-encodes s the way the MSNP wire protocol expects.
func EscapeString(s string) string {
	needsEscape := false
	for i := 0; i < len(s); i++ {
		if !isUnreserved(s[i]) {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return s
	}

	buf := make([]byte, 0, len(s)*3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			buf = append(buf, c)
			continue
		}
		buf = append(buf, '%', upperhex[c>>4], upperhex[c&0xf])
	}
	return string(buf)
}

// UnescapeString reverses EscapeString. Malformed escapes are passed through
// unchanged rather than returning an error, matching the forgiving behaviour
// the reference client relies on for server-generated text.
func UnescapeString(s string) string {
	hasPercent := false
	for i := 0; i < len(s); i++ {
		if s[i] == '%' {
			hasPercent = true
			break
		}
	}
	if !hasPercent {
		return s
	}

	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, okHi := unhex(s[i+1])
			lo, okLo := unhex(s[i+2])
			if okHi && okLo {
				buf = append(buf, hi<<4|lo)
				i += 2
				continue
			}
		}
		buf = append(buf, s[i])
	}
	return string(buf)
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
