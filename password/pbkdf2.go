// Package password implements salted, iterated password hashing for the
// access-control core. Hashes are PBKDF2-SHA256 encoded as a single
// PHC-style string carrying the iteration count and salt, so stored
// credentials remain verifiable after parameter upgrades.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	minIterations = 1_000
	minSaltLength = 16
	minKeyLength  = 16
	minPassBytes  = 8
	algorithmID   = "pbkdf2-sha256"
)

// Config holds the key-derivation parameters used for new hashes.
type Config struct {
	Iterations int
	SaltLength int
	KeyLength  int
}

// Hasher derives and verifies PBKDF2-SHA256 password hashes.
type Hasher struct {
	config Config
}

type parsedPHC struct {
	iterations int
	salt       []byte
	hash       []byte
}

// NewHasher validates cfg and returns a ready Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Hasher{config: cfg}, nil
}

// Hash derives a new salted hash of password and returns it in encoded form.
// A fresh random salt is generated on every call.
func (h *Hasher) Hash(password string) (string, error) {
	// Password bytes are used exactly as provided (no Unicode normalization).
	if len(password) < minPassBytes {
		return "", fmt.Errorf("password must be at least %d bytes", minPassBytes)
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := pbkdf2.Key([]byte(password), salt, h.config.Iterations, h.config.KeyLength, sha256.New)

	saltEncoded := base64.StdEncoding.EncodeToString(salt)
	hashEncoded := base64.StdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$%s$i=%d$%s$%s", algorithmID, h.config.Iterations, saltEncoded, hashEncoded), nil
}

// Verify reports whether password matches encodedHash. Derivation always
// uses the parameters stored in the hash, and comparison is constant-time.
func (h *Hasher) Verify(password string, encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := pbkdf2.Key([]byte(password), parsed.salt, parsed.iterations, len(parsed.hash), sha256.New)
	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

func parsePHC(encoded string) (*parsedPHC, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" {
		return nil, errors.New("malformed password hash")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported password hash algorithm")
	}

	if !strings.HasPrefix(parts[2], "i=") {
		return nil, errors.New("malformed password hash parameters")
	}
	iterations, err := strconv.Atoi(strings.TrimPrefix(parts[2], "i="))
	if err != nil || iterations < 1 {
		return nil, errors.New("malformed password hash iteration count")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, errors.New("malformed password hash salt")
	}
	hash, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, errors.New("malformed password hash digest")
	}
	if len(salt) == 0 || len(hash) == 0 {
		return nil, errors.New("empty password hash fields")
	}

	return &parsedPHC{iterations: iterations, salt: salt, hash: hash}, nil
}

func validateConfig(cfg Config) error {
	if cfg.Iterations < minIterations {
		return fmt.Errorf("iterations below minimum %d", minIterations)
	}
	if cfg.SaltLength < minSaltLength {
		return fmt.Errorf("salt length below minimum %d", minSaltLength)
	}
	if cfg.KeyLength < minKeyLength {
		return fmt.Errorf("key length below minimum %d", minKeyLength)
	}
	return nil
}
