// Package password hashes and verifies user passwords with argon2id.
//
// Hashes are encoded in the PHC string format so the parameters needed to
// verify them travel with the hash:
//
//	$argon2id$v=19$m=<memory KiB>,t=<iterations>,p=<threads>$<salt>$<digest>
//
// Salt and digest are unpadded standard base64.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const algorithm = "argon2id"

// Upper bounds on costs read back from a stored hash. Anything larger is
// treated as malformed instead of being handed to argon2.
const (
	maxMemoryKiB = 1 << 20 // 1 GiB
	maxTime      = 64
)

// Params are the argon2id cost parameters.
type Params struct {
	Time       uint32 // Number of passes over memory
	MemoryKiB  uint32 // Memory cost in KiB
	Threads    uint8  // Degree of parallelism
	SaltLength uint32 // Random salt length in bytes
	KeyLength  uint32 // Digest length in bytes
}

// DefaultParams keep a single hash well under 100ms on commodity hardware so
// login does not starve the request handlers.
var DefaultParams = Params{
	Time:       3,
	MemoryKiB:  64 * 1024,
	Threads:    2,
	SaltLength: 16,
	KeyLength:  32,
}

// Hasher produces and checks argon2id hashes.
type Hasher struct {
	params Params
}

// NewHasher creates a Hasher with the given cost parameters. Zero values are
// replaced with DefaultParams; memory and time are capped at the limits
// Verify accepts.
func NewHasher(params Params) *Hasher {
	params.MemoryKiB = min(params.MemoryKiB, maxMemoryKiB)
	params.Time = min(params.Time, maxTime)
	if params.Time == 0 {
		params.Time = DefaultParams.Time
	}
	if params.MemoryKiB == 0 {
		params.MemoryKiB = DefaultParams.MemoryKiB
	}
	if params.Threads == 0 {
		params.Threads = DefaultParams.Threads
	}
	if params.SaltLength == 0 {
		params.SaltLength = DefaultParams.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = DefaultParams.KeyLength
	}
	return &Hasher{params: params}
}

// Params returns the parameters new hashes are produced with.
func (h *Hasher) Params() Params {
	return h.params
}

// Hash returns the encoded argon2id hash of plaintext using a fresh random salt.
func (h *Hasher) Hash(plaintext string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	digest := argon2.IDKey([]byte(plaintext), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm,
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	), nil
}

// Verify reports whether plaintext matches the encoded hash. The parameters
// are taken from the encoded string, not from the Hasher, so hashes produced
// with older costs still verify. Malformed input yields false.
func (h *Hasher) Verify(plaintext, encoded string) bool {
	params, salt, digest, err := decode(encoded)
	if err != nil {
		return false
	}

	candidate := argon2.IDKey([]byte(plaintext), salt, params.Time, params.MemoryKiB, params.Threads, uint32(len(digest)))
	return subtle.ConstantTimeCompare(digest, candidate) == 1
}

// NeedsRehash reports whether encoded was produced with parameters different
// from the Hasher's current ones. Malformed hashes always need a rehash.
func (h *Hasher) NeedsRehash(encoded string) bool {
	params, salt, digest, err := decode(encoded)
	if err != nil {
		return true
	}
	return params.Time != h.params.Time ||
		params.MemoryKiB != h.params.MemoryKiB ||
		params.Threads != h.params.Threads ||
		uint32(len(salt)) != h.params.SaltLength ||
		uint32(len(digest)) != h.params.KeyLength
}

func decode(encoded string) (Params, []byte, []byte, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, digest
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Params{}, nil, nil, fmt.Errorf("invalid hash format")
	}
	if parts[1] != algorithm {
		return Params{}, nil, nil, fmt.Errorf("unsupported algorithm %q", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, fmt.Errorf("invalid version: %w", err)
	}
	if version != argon2.Version {
		return Params{}, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var params Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.MemoryKiB, &params.Time, &params.Threads); err != nil {
		return Params{}, nil, nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.MemoryKiB == 0 || params.Time == 0 || params.Threads == 0 {
		return Params{}, nil, nil, fmt.Errorf("invalid parameters")
	}
	if params.MemoryKiB > maxMemoryKiB || params.Time > maxTime {
		return Params{}, nil, nil, fmt.Errorf("parameters exceed limits: m=%d,t=%d", params.MemoryKiB, params.Time)
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Params{}, nil, nil, fmt.Errorf("invalid salt")
	}
	digest, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil || len(digest) == 0 {
		return Params{}, nil, nil, fmt.Errorf("invalid digest")
	}

	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(digest))
	return params, salt, digest, nil
}
