package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters, per the OWASP password storage guidance.
const (
	hashIterations  = 3
	hashMemoryKiB   = 64 * 1024
	hashParallelism = 1
	hashLen         = 32
	saltLen         = 16
)

var errMalformedHash = errors.New("malformed password hash")

// phcParams are the cost parameters recovered from a stored hash, so
// verification keeps working after the defaults above change.
type phcParams struct {
	iterations  uint32
	memoryKiB   uint32
	parallelism uint8
}

// HashPassword derives an Argon2id hash of the password and encodes it
// in PHC form: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, hashIterations, hashMemoryKiB, hashParallelism, hashLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, hashMemoryKiB, hashIterations, hashParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
	return encoded, nil
}

// VerifyPassword reports whether the password matches a stored PHC
// hash. The comparison is constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	salt, want, params, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(password), salt,
		params.iterations, params.memoryKiB, params.parallelism, uint32(len(want))) //nolint:gosec // key length fits uint32
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

func decodePHC(encoded string) ([]byte, []byte, phcParams, error) {
	var params phcParams

	// $argon2id$v=19$m=...,t=...,p=...$<salt>$<hash> splits into six
	// fields, the first of them empty.
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 {
		return nil, nil, params, errMalformedHash
	}
	if fields[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("%w: unsupported algorithm %q", errMalformedHash, fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return nil, nil, params, fmt.Errorf("%w: version: %w", errMalformedHash, err)
	}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d",
		&params.memoryKiB, &params.iterations, &params.parallelism); err != nil {
		return nil, nil, params, fmt.Errorf("%w: parameters: %w", errMalformedHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(fields[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("%w: salt: %w", errMalformedHash, err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(fields[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("%w: hash: %w", errMalformedHash, err)
	}

	return salt, hash, params, nil
}
