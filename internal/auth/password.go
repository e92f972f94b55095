package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedHash is returned for stored hashes that are not argon2id PHC strings.
var ErrMalformedHash = errors.New("malformed password hash")

// PasswordParams is an Argon2id cost setting. It is encoded into every hash,
// so hashes made under older settings still verify.
type PasswordParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// DefaultPasswordParams is what new hashes are made with.
var DefaultPasswordParams = PasswordParams{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 1,
	KeyLen:  32,
	SaltLen: 16,
}

var b64 = base64.RawStdEncoding

// HashPassword hashes with DefaultPasswordParams.
func HashPassword(password string) (string, error) {
	return DefaultPasswordParams.Hash(password)
}

// Hash returns the PHC string $argon2id$v=19$m=<mem>,t=<time>,p=<threads>$<salt>$<key>.
func (p PasswordParams) Hash(password string) (string, error) {
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// VerifyPassword recomputes the key under the hash's own parameters and
// compares in constant time.
func VerifyPassword(password, encodedHash string) (bool, error) {
	h, err := parseHash(encodedHash)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), h.salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
	return subtle.ConstantTimeCompare(h.key, key) == 1, nil
}

// NeedsRehash reports whether encodedHash was made with weaker or different
// parameters than want. Unreadable hashes always need one.
func NeedsRehash(encodedHash string, want PasswordParams) bool {
	h, err := parseHash(encodedHash)
	if err != nil {
		return true
	}
	return h.params != want
}

type parsedHash struct {
	params PasswordParams
	salt   []byte
	key    []byte
}

func parseHash(encoded string) (*parsedHash, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return nil, ErrMalformedHash
	}
	if fields[1] != "argon2id" {
		return nil, fmt.Errorf("%w: algorithm %q", ErrMalformedHash, fields[1])
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, fmt.Errorf("%w: version %q", ErrMalformedHash, fields[2])
	}

	var h parsedHash
	for _, kv := range strings.Split(fields[3], ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("%w: parameter %q", ErrMalformedHash, kv)
		}
		bits := 32
		if name == "p" {
			bits = 8
		}
		n, err := strconv.ParseUint(raw, 10, bits)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("%w: parameter %q", ErrMalformedHash, kv)
		}
		switch name {
		case "m":
			h.params.Memory = uint32(n)
		case "t":
			h.params.Time = uint32(n)
		case "p":
			h.params.Threads = uint8(n)
		default:
			return nil, fmt.Errorf("%w: parameter %q", ErrMalformedHash, kv)
		}
	}
	if h.params.Memory == 0 || h.params.Time == 0 || h.params.Threads == 0 {
		return nil, fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}

	var err error
	if h.salt, err = b64.DecodeString(fields[4]); err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	if h.key, err = b64.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return nil, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	h.params.SaltLen = uint32(len(h.salt)) //nolint:gosec // decoded from a short string
	h.params.KeyLen = uint32(len(h.key))   //nolint:gosec // decoded from a short string
	return &h, nil
}
