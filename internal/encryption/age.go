package encryption

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"

	"cozychat/internal/chat"
)

// DefaultWorkFactor is the scrypt work factor used when the config does not
// set one. It is lower than age's file-encryption default because the cipher
// runs once per chat line and key derivation dominates the cost.
const DefaultWorkFactor = 12

// AgeCipher implements chat.Cipher using age's scrypt-based passphrase
// encryption. Every participant derives the same key material from the
// shared secret, so any frame encrypted by one peer decrypts for all others.
// Ciphertext is base64-encoded to guarantee it contains no line breaks.
type AgeCipher struct {
	secret     string
	workFactor int
}

var _ chat.Cipher = (*AgeCipher)(nil)

// NewAgeCipher creates an AgeCipher keyed by the shared secret.
// workFactor <= 0 selects DefaultWorkFactor.
func NewAgeCipher(secret string, workFactor int) *AgeCipher {
	if workFactor <= 0 {
		workFactor = DefaultWorkFactor
	}
	return &AgeCipher{secret: secret, workFactor: workFactor}
}

// Encrypt seals plaintext under the shared secret and returns a single-line
// base64 frame.
func (c *AgeCipher) Encrypt(plaintext string) (string, error) {
	recipient, err := age.NewScryptRecipient(c.secret)
	if err != nil {
		return "", fmt.Errorf("creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(c.workFactor)

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return "", fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("encrypting frame: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing frame: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decrypt opens a frame produced by Encrypt. A frame sealed under a
// different secret fails with an error wrapping chat.ErrWrongSecret.
func (c *AgeCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding frame: %w", err)
	}

	identity, err := age.NewScryptIdentity(c.secret)
	if err != nil {
		return "", fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		// age refuses to produce output when the passphrase does not
		// match; surface that as the distinct wrong-secret failure.
		return "", fmt.Errorf("%w: %v", chat.ErrWrongSecret, err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", chat.ErrWrongSecret, err)
	}

	return string(plaintext), nil
}
