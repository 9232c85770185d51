package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Envelope prefix for versioned ciphertexts. Values without it are treated as
// legacy plaintext and returned unchanged by Decrypt.
const EncPrefix = "enc_v1:"

const envelopeAlg = "aes-256-gcm"

var (
	ErrMissingKey     = errors.New("secrets: key material is required")
	ErrUnsupportedAlg = errors.New("secrets: unsupported ciphertext alg")
	ErrMalformed      = errors.New("secrets: malformed envelope")
)

type envelope struct {
	V    int    `json:"v"`
	Alg  string `json:"alg"`
	IV   string `json:"ivB64"`
	Tag  string `json:"tagB64"`
	Data string `json:"dataB64"`
}

// IsEncrypted reports whether value carries the enc_v1 envelope prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncPrefix)
}

// Encrypt seals plaintext under AES-256-GCM with a key derived as
// SHA-256(keyMaterial), and wraps the result in an enc_v1 envelope.
func Encrypt(plaintext, keyMaterial string) (string, error) {
	if keyMaterial == "" {
		return "", ErrMissingKey
	}
	gcm, err := newGCM(keyMaterial)
	if err != nil {
		return "", err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("secrets: iv generation failed: %w", err)
	}
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	// GCM appends the 16-byte tag; the envelope stores data and tag separately.
	split := len(sealed) - gcm.Overhead()
	env := envelope{
		V:    1,
		Alg:  envelopeAlg,
		IV:   base64.StdEncoding.EncodeToString(iv),
		Tag:  base64.StdEncoding.EncodeToString(sealed[split:]),
		Data: base64.StdEncoding.EncodeToString(sealed[:split]),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return EncPrefix + base64.StdEncoding.EncodeToString(raw), nil
}

// Decrypt opens an enc_v1 envelope. Input without the prefix is returned
// verbatim so long-lived rows holding plaintext tokens keep working.
func Decrypt(value, keyMaterial string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if keyMaterial == "" {
		return "", ErrMissingKey
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Alg != envelopeAlg {
		return "", ErrUnsupportedAlg
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return "", fmt.Errorf("%w: bad iv: %v", ErrMalformed, err)
	}
	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	if err != nil {
		return "", fmt.Errorf("%w: bad tag: %v", ErrMalformed, err)
	}
	data, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return "", fmt.Errorf("%w: bad data: %v", ErrMalformed, err)
	}
	gcm, err := newGCM(keyMaterial)
	if err != nil {
		return "", err
	}
	if len(iv) != gcm.NonceSize() {
		return "", fmt.Errorf("%w: iv length %d", ErrMalformed, len(iv))
	}
	plain, err := gcm.Open(nil, iv, append(data, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("secrets: decrypt failed: %w", err)
	}
	return string(plain), nil
}

func newGCM(keyMaterial string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(keyMaterial))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
