package encryption

import (
	"encoding/base64"
	"fmt"
	"strings"

	"cozychat/internal/chat"
)

// testHeader marks frames produced by TestCipher so decoded output is
// clearly different from plaintext while remaining deterministic.
const testHeader = "CZTEST"

// TestCipher is a cheap, deterministic chat.Cipher for tests. It base64
// encodes header, secret and plaintext, preserving the two contracts that
// matter: ciphertext is line-safe, and decrypting under a different secret
// fails with chat.ErrWrongSecret instead of returning garbage.
type TestCipher struct {
	secret string
}

var _ chat.Cipher = (*TestCipher)(nil)

// NewTestCipher creates a TestCipher keyed by secret.
func NewTestCipher(secret string) *TestCipher {
	return &TestCipher{secret: secret}
}

func (c *TestCipher) Encrypt(plaintext string) (string, error) {
	payload := testHeader + "\x00" + c.secret + "\x00" + plaintext
	return base64.StdEncoding.EncodeToString([]byte(payload)), nil
}

func (c *TestCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding frame: %w", err)
	}

	parts := strings.SplitN(string(raw), "\x00", 3)
	if len(parts) != 3 || parts[0] != testHeader {
		return "", fmt.Errorf("%w: invalid test frame header", chat.ErrWrongSecret)
	}
	if parts[1] != c.secret {
		return "", fmt.Errorf("%w: secret mismatch", chat.ErrWrongSecret)
	}
	return parts[2], nil
}
