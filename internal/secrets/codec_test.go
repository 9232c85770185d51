package secrets

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := "test-key-material"
	plain := "eyJhbGciOiJIUzI1NiJ9.access-token"

	enc, err := Encrypt(plain, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !strings.HasPrefix(enc, EncPrefix) {
		t.Fatalf("missing envelope prefix: %q", enc)
	}
	if strings.Contains(enc, plain) {
		t.Fatalf("ciphertext leaks plaintext")
	}

	got, err := Decrypt(enc, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != plain {
		t.Fatalf("round trip mismatch: got %q want %q", got, plain)
	}
}

func TestEncryptProducesDistinctCiphertexts(t *testing.T) {
	a, err := Encrypt("same", "k")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := Encrypt("same", "k")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Fatalf("expected random iv to vary ciphertexts")
	}
}

func TestDecryptPassThroughForPlaintext(t *testing.T) {
	got, err := Decrypt("legacy-plain-token", "key")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "legacy-plain-token" {
		t.Fatalf("plaintext must pass through unchanged, got %q", got)
	}
	// Pass-through does not need key material at all.
	got, err = Decrypt("another-plain", "")
	if err != nil || got != "another-plain" {
		t.Fatalf("pass-through without key failed: %q %v", got, err)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	enc, err := Encrypt("secret", "key-one")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(enc, "key-two"); err == nil {
		t.Fatalf("expected auth failure with wrong key")
	}
}

func TestDecryptUnsupportedAlg(t *testing.T) {
	env := map[string]any{
		"v":       1,
		"alg":     "aes-256-cbc",
		"ivB64":   base64.StdEncoding.EncodeToString(make([]byte, 12)),
		"tagB64":  base64.StdEncoding.EncodeToString(make([]byte, 16)),
		"dataB64": base64.StdEncoding.EncodeToString([]byte("x")),
	}
	raw, _ := json.Marshal(env)
	value := EncPrefix + base64.StdEncoding.EncodeToString(raw)
	if _, err := Decrypt(value, "key"); !errors.Is(err, ErrUnsupportedAlg) {
		t.Fatalf("want ErrUnsupportedAlg, got %v", err)
	}
}

func TestDecryptMalformedEnvelope(t *testing.T) {
	cases := []string{
		EncPrefix + "%%%not-base64%%%",
		EncPrefix + base64.StdEncoding.EncodeToString([]byte("not json")),
	}
	for _, c := range cases {
		if _, err := Decrypt(c, "key"); !errors.Is(err, ErrMalformed) {
			t.Fatalf("case %q: want ErrMalformed, got %v", c, err)
		}
	}
}

func TestEncryptRequiresKey(t *testing.T) {
	if _, err := Encrypt("x", ""); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("want ErrMissingKey, got %v", err)
	}
	enc, _ := Encrypt("x", "k")
	if _, err := Decrypt(enc, ""); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("want ErrMissingKey for encrypted input without key, got %v", err)
	}
}
