// Package password hashes and verifies passwords using PBKDF2-SHA256 in the
// modular crypt format "$pbkdf2-sha256$<rounds>$<salt>$<checksum>", where salt
// and checksum use the "adapted base64" alphabet ('.' instead of '+', no padding).
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	DefaultRounds = 29000
	saltSize      = 16
	keySize       = 32
	ident         = "pbkdf2-sha256"
)

var ErrMalformedHash = errors.New("malformed password hash")

// Hash returns a modular-crypt hash of raw using DefaultRounds.
func Hash(raw string) (string, error) {
	return HashWithRounds(raw, DefaultRounds)
}

func HashWithRounds(raw string, rounds int) (string, error) {
	if rounds < 1 {
		return "", fmt.Errorf("rounds must be positive, got %d", rounds)
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return format(rounds, salt, derive(raw, salt, rounds)), nil
}

// Verify reports whether raw matches hashed. A malformed hash never matches.
func Verify(raw, hashed string) bool {
	rounds, salt, checksum, err := parse(hashed)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(derive(raw, salt, rounds), checksum) == 1
}

func derive(raw string, salt []byte, rounds int) []byte {
	return pbkdf2.Key([]byte(raw), salt, rounds, keySize, sha256.New)
}

func format(rounds int, salt, checksum []byte) string {
	return fmt.Sprintf("$%s$%d$%s$%s", ident, rounds, ab64Encode(salt), ab64Encode(checksum))
}

func parse(hashed string) (int, []byte, []byte, error) {
	parts := strings.Split(hashed, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != ident {
		return 0, nil, nil, ErrMalformedHash
	}
	rounds, err := strconv.Atoi(parts[2])
	if err != nil || rounds < 1 {
		return 0, nil, nil, ErrMalformedHash
	}
	salt, err := ab64Decode(parts[3])
	if err != nil {
		return 0, nil, nil, ErrMalformedHash
	}
	checksum, err := ab64Decode(parts[4])
	if err != nil || len(checksum) != keySize {
		return 0, nil, nil, ErrMalformedHash
	}
	return rounds, salt, checksum, nil
}

func ab64Encode(b []byte) string {
	return strings.ReplaceAll(base64.RawStdEncoding.EncodeToString(b), "+", ".")
}

func ab64Decode(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.ReplaceAll(s, ".", "+"))
}
