package otp

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// NewNumericCode returns a uniformly random decimal code of the given digit
// count, suitable for email/SMS delivery.
func NewNumericCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid code digit count")
	}

	var b strings.Builder
	b.Grow(digits)

	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
