package chat

// Cipher encrypts and decrypts single protocol frames using a key derived
// from the shared secret.
//
// Encrypt must produce ciphertext free of line-break characters: one frame
// travels as exactly one newline-terminated line, and the line separator is
// the only delimiter on the wire. Plaintext may contain newlines.
//
// Decrypt must fail with an error wrapping ErrWrongSecret when the frame was
// produced under a different secret, rather than returning garbage bytes.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
