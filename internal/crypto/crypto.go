// ABOUTME: Credential encryption/decryption for stored agent private keys
// ABOUTME: AES-256-GCM under a PBKDF2-derived key from the process-wide master secret

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// ErrDecryptFailed is returned when ciphertext cannot be decrypted,
// whether from corruption, truncation, or a wrong master secret.
var ErrDecryptFailed = errors.New("decrypt failed")

const (
	keyLen   = 32
	nonceLen = 12

	// OWASP recommended PBKDF2-SHA256 iteration count
	iterations = 480000
)

// Keychain decrypts stored agent credentials using a key derived once from
// the master secret. The derived key is read-only after construction, safe
// for unsynchronized concurrent use.
type Keychain struct {
	key []byte
}

// NewKeychain derives the credential encryption key from the master secret
// and salt. Both come from process configuration and must be non-empty.
func NewKeychain(masterSecret, salt string) (*Keychain, error) {
	if masterSecret == "" {
		return nil, fmt.Errorf("master secret cannot be empty")
	}
	if salt == "" {
		return nil, fmt.Errorf("salt cannot be empty")
	}

	key := pbkdf2.Key([]byte(masterSecret), []byte(salt), iterations, keyLen, sha256.New)
	return &Keychain{key: key}, nil
}

// Encrypt encrypts a plaintext credential (e.g. a private key PEM) and
// returns base64(nonce || ciphertext). Used by the registration subsystem
// and by tests; the pipeline only decrypts.
func (k *Keychain) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt decrypts a base64(nonce || ciphertext) credential blob.
// Returns ErrDecryptFailed for any malformed or unauthentic input.
func (k *Keychain) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	if len(raw) < nonceLen {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptFailed)
	}

	block, err := aes.NewCipher(k.key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}

	nonce, sealed := raw[:nonceLen], raw[nonceLen:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}

	return string(plaintext), nil
}
