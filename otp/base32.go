package otp

import (
	"errors"
	"strings"
)

// Authenticator secrets use the RFC 4648 alphabet without lowercase.
const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

var errInvalidBase32 = errors.New("invalid base32 character")

// DecodeBase32 decodes a secret in the A-Z2-7 alphabet. Input is
// case-insensitive and may contain spaces or dashes, which are stripped;
// short trailing blocks are treated as '=' padded.
func DecodeBase32(s string) ([]byte, error) {
	normalized := normalizeBase32(s)
	if normalized == "" {
		return nil, errors.New("empty base32 input")
	}

	out := make([]byte, 0, len(normalized)*5/8)
	var buf uint32
	var bits uint

	for i := 0; i < len(normalized); i++ {
		c := normalized[i]
		if c == '=' {
			break
		}
		v := strings.IndexByte(base32Alphabet, c)
		if v < 0 {
			return nil, errInvalidBase32
		}
		buf = buf<<5 | uint32(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buf>>bits))
		}
	}

	return out, nil
}

// EncodeBase32 encodes src in the A-Z2-7 alphabet, padding the final block
// to 8 characters with '='.
func EncodeBase32(src []byte) string {
	if len(src) == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow((len(src) + 4) / 5 * 8)

	var buf uint32
	var bits uint
	for _, c := range src {
		buf = buf<<8 | uint32(c)
		bits += 8
		for bits >= 5 {
			bits -= 5
			b.WriteByte(base32Alphabet[buf>>bits&0x1f])
		}
	}
	if bits > 0 {
		b.WriteByte(base32Alphabet[buf<<(5-bits)&0x1f])
	}
	for b.Len()%8 != 0 {
		b.WriteByte('=')
	}
	return b.String()
}

func normalizeBase32(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}
