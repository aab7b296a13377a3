package application

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrInvalidPasswordHash = errors.New("invalid password hash format")
	ErrUnsupportedHash     = errors.New("unsupported password hash algorithm")
)

const (
	argon2idPrefix = "$argon2id$"
	pbkdf2Prefix   = "pbkdf2_sha256$"
)

// HashParams tunes the argon2id key derivation used for new passwords.
type HashParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultHashParams is used by HashPassword.
var DefaultHashParams = HashParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// HashPassword encodes password as an argon2id PHC string with DefaultHashParams.
func HashPassword(password string) (string, error) {
	return HashPasswordWith(password, DefaultHashParams)
}

// HashPasswordWith encodes password as $argon2id$v=19$m=..,t=..,p=..$salt$key.
func HashPasswordWith(password string, params HashParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	var b strings.Builder
	b.WriteString(argon2idPrefix)
	fmt.Fprintf(&b, "v=%d$m=%d,t=%d,p=%d$", argon2.Version, params.Memory, params.Iterations, params.Parallelism)
	b.WriteString(base64.RawStdEncoding.EncodeToString(salt))
	b.WriteByte('$')
	b.WriteString(base64.RawStdEncoding.EncodeToString(key))
	return b.String(), nil
}

// VerifyPassword checks password against an argon2id hash or a
// pbkdf2_sha256 hash carried over from accounts imported from the legacy site.
func VerifyPassword(encoded, password string) error {
	var (
		stored, derived []byte
		err             error
	)
	switch {
	case strings.HasPrefix(encoded, argon2idPrefix):
		stored, derived, err = deriveArgon2id(encoded, password)
	case strings.HasPrefix(encoded, pbkdf2Prefix):
		stored, derived, err = derivePBKDF2(encoded, password)
	default:
		return ErrUnsupportedHash
	}
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(stored, derived) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// NeedsRehash reports whether encoded should be replaced with a fresh argon2id hash.
func NeedsRehash(encoded string) bool {
	return !strings.HasPrefix(encoded, argon2idPrefix)
}

func deriveArgon2id(encoded, password string) ([]byte, []byte, error) {
	fields := strings.Split(strings.TrimPrefix(encoded, argon2idPrefix), "$")
	if len(fields) != 4 {
		return nil, nil, ErrInvalidPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, ErrInvalidPasswordHash
	}
	var params HashParams
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return nil, nil, ErrInvalidPasswordHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(fields[2])
	if err != nil {
		return nil, nil, ErrInvalidPasswordHash
	}
	key, err := base64.RawStdEncoding.DecodeString(fields[3])
	if err != nil || len(key) == 0 {
		return nil, nil, ErrInvalidPasswordHash
	}

	derived := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(key)))
	return key, derived, nil
}

// derivePBKDF2 reads pbkdf2_sha256$<iterations>$<salt>$<base64 key>.
func derivePBKDF2(encoded, password string) ([]byte, []byte, error) {
	fields := strings.Split(strings.TrimPrefix(encoded, pbkdf2Prefix), "$")
	if len(fields) != 3 {
		return nil, nil, ErrInvalidPasswordHash
	}
	iterations, err := strconv.Atoi(fields[0])
	if err != nil || iterations <= 0 {
		return nil, nil, ErrInvalidPasswordHash
	}
	key, err := base64.StdEncoding.DecodeString(fields[2])
	if err != nil || len(key) == 0 {
		return nil, nil, ErrInvalidPasswordHash
	}

	derived := pbkdf2.Key([]byte(password), []byte(fields[1]), iterations, len(key), sha256.New)
	return key, derived, nil
}
