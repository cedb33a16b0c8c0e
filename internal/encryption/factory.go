package encryption

import (
	"fmt"

	"cozychat/internal/chat"
	"cozychat/internal/config"
)

// NewCipherFromConfig creates a Cipher based on the configuration type,
// keyed by the shared secret.
func NewCipherFromConfig(cfg config.EncryptionConfig, secret string) (chat.Cipher, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeCipher(secret, cfg.WorkFactor), nil
	case "test":
		return NewTestCipher(secret), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
