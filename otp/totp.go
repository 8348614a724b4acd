// Package otp implements the one-time-code mechanisms used for second-factor
// verification: time-based codes (RFC 6238 over an HOTP core), short-lived
// random numeric codes for email/SMS delivery, and static backup codes.
package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SecretLength is the number of base32 characters in a generated TOTP secret
// (decodes to 20 raw bytes).
const SecretLength = 32

// TOTPConfig controls code derivation and the provisioning URI.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"
}

// Manager derives and validates time-based codes from per-user secrets.
type Manager struct {
	config TOTPConfig
}

// NewManager applies defaults to cfg and returns a Manager.
func NewManager(cfg TOTPConfig) *Manager {
	if cfg.Digits <= 0 {
		cfg.Digits = 6
	}
	if cfg.Period <= 0 {
		cfg.Period = 30
	}
	if cfg.Skew < 0 {
		cfg.Skew = 0
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	return &Manager{config: cfg}
}

// GenerateSecret returns a fresh random secret of SecretLength base32
// characters, generated once per enrollment.
func (m *Manager) GenerateSecret() (string, error) {
	raw := make([]byte, SecretLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(SecretLength)
	for _, c := range raw {
		b.WriteByte(base32Alphabet[int(c)%len(base32Alphabet)])
	}
	return b.String(), nil
}

// ProvisionURI builds the otpauth:// enrollment URI for authenticator apps.
// Issuer and account are percent-encoded in the label.
func (m *Manager) ProvisionURI(secretBase32, account string) string {
	return m.ProvisionURIWithIssuer(secretBase32, account, m.config.Issuer)
}

// ProvisionURIWithIssuer is ProvisionURI with an explicit issuer override.
func (m *Manager) ProvisionURIWithIssuer(secretBase32, account, issuer string) string {
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(m.config.Period))
	v.Set("digits", strconv.Itoa(m.config.Digits))
	v.Set("algorithm", strings.ToUpper(m.config.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// CheckFormat reports whether code has the exact shape of a valid
// time-based code (configured digit count, ASCII digits only).
func (m *Manager) CheckFormat(code string) bool {
	trimmed := strings.TrimSpace(code)
	return len(trimmed) == m.config.Digits && isNumericString(trimmed)
}

// VerifyCode reports whether code matches the secret at any step within the
// configured skew of now. A skew of 1 accepts the previous, current, and
// next 30-second step, tolerating up to one period of clock drift.
func (m *Manager) VerifyCode(secretBase32, code string, now time.Time) (bool, error) {
	if !m.CheckFormat(code) {
		return false, nil
	}

	secret, err := DecodeBase32(secretBase32)
	if err != nil {
		return false, fmt.Errorf("malformed totp secret: %w", err)
	}
	if len(secret) == 0 {
		return false, errors.New("empty totp secret")
	}

	trimmed := strings.TrimSpace(code)
	baseCounter := now.Unix() / int64(m.config.Period)
	for step := -m.config.Skew; step <= m.config.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(secret, counter, m.config.Digits, m.config.Algorithm)
		if err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

// CodeAt derives the code for the time step containing at. Exposed for
// enrollment confirmation flows and tests.
func (m *Manager) CodeAt(secretBase32 string, at time.Time) (string, error) {
	secret, err := DecodeBase32(secretBase32)
	if err != nil {
		return "", fmt.Errorf("malformed totp secret: %w", err)
	}
	return hotpCode(secret, at.Unix()/int64(m.config.Period), m.config.Digits, m.config.Algorithm)
}

// hotpCode is the HOTP core: HMAC over the big-endian 8-byte counter,
// dynamic truncation at the low nibble of the final byte, sign bit masked,
// reduced to the requested digit count.
func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	for i := 7; i >= 0; i-- {
		msg[i] = byte(counter)
		counter >>= 8
	}

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}

func isNumericString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
