package postgres

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// blobVersion is the version byte for the sealed metadata format.
	// This allows future format changes while maintaining backward compatibility.
	blobVersion = 0x01

	// nonceSize is the AES-GCM nonce size (12 bytes is standard)
	nonceSize = 12

	// keySize is the required key size for AES-256
	keySize = 32
)

var (
	// ErrInvalidKeySize is returned when the encryption key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

	// ErrInvalidBlobSize is returned when the sealed blob is too small.
	ErrInvalidBlobSize = errors.New("sealed blob is too small")

	// ErrUnsupportedVersion is returned when the blob version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported blob version")

	// ErrUnsealFailed is returned when decryption fails (wrong key or corrupted data).
	ErrUnsealFailed = errors.New("failed to unseal metadata blob")
)

// TokenCipher seals checkpoint metadata bags with AES-256-GCM before they
// reach disk. Metadata carries provider resume tokens (Gmail history IDs,
// Graph delta links) which can grant partial read access if leaked, so the
// durable tier never stores them in the clear.
// Sealed format: version(1) || nonce(12) || ciphertext(N)
type TokenCipher struct {
	gcm cipher.AEAD
}

// NewTokenCipher creates a cipher with the given 32-byte key.
func NewTokenCipher(key []byte) (*TokenCipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &TokenCipher{gcm: gcm}, nil
}

// Seal encrypts a metadata bag to a blob. A nil or empty bag seals to nil.
func (c *TokenCipher) Seal(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}

	plaintext, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := c.gcm.Seal(nil, nonce, plaintext, nil)

	blob := make([]byte, 1+nonceSize+len(ciphertext))
	blob[0] = blobVersion
	copy(blob[1:1+nonceSize], nonce)
	copy(blob[1+nonceSize:], ciphertext)

	return blob, nil
}

// Open decrypts a blob back to a metadata bag. A nil blob opens to nil.
func (c *TokenCipher) Open(blob []byte) (map[string]string, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob) < 1+nonceSize+1 {
		return nil, ErrInvalidBlobSize
	}
	if blob[0] != blobVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, blob[0])
	}

	nonce := blob[1 : 1+nonceSize]
	ciphertext := blob[1+nonceSize:]

	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrUnsealFailed
	}

	var metadata map[string]string
	if err := json.Unmarshal(plaintext, &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return metadata, nil
}
