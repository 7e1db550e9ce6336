package services

import (
	"crm_advocacia_go/models"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

var (
	// ErrEncryptionSecretNotSet indicates the credential encryption secret is not configured
	ErrEncryptionSecretNotSet = errors.New("CREDENTIAL_ENCRYPTION_KEY environment variable is not set")
	// ErrCredentialIntegrity indicates the authentication tag did not verify
	ErrCredentialIntegrity = errors.New("credential integrity check failed")
	// ErrInvalidEnvelope indicates a malformed ciphertext/iv/tag envelope
	ErrInvalidEnvelope = errors.New("invalid encrypted credential envelope")
)

const (
	vaultSalt    = "static_salt_for_key_derivation"
	vaultIVSize  = 16
	vaultTagSize = 16
)

// CredentialVault encrypts portal passwords with AES-256-GCM.
// The key is derived once from the configured secret with scrypt.
type CredentialVault struct {
	aead cipher.AEAD
}

// NewCredentialVault derives the key and fails fast when the secret is empty
func NewCredentialVault(secret string) (*CredentialVault, error) {
	if secret == "" {
		return nil, ErrEncryptionSecretNotSet
	}

	key, err := scrypt.Key([]byte(secret), []byte(vaultSalt), 16384, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, vaultIVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &CredentialVault{aead: gcm}, nil
}

// Encrypt seals plaintext under a fresh random IV
func (v *CredentialVault) Encrypt(plaintext string) (models.EncryptedSecret, error) {
	iv := make([]byte, vaultIVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return models.EncryptedSecret{}, fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := v.aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-vaultTagSize], sealed[len(sealed)-vaultTagSize:]

	return models.EncryptedSecret{
		Ciphertext: hex.EncodeToString(ciphertext),
		IV:         hex.EncodeToString(iv),
		AuthTag:    hex.EncodeToString(tag),
	}, nil
}

// Decrypt opens an envelope. A tag that does not verify yields ErrCredentialIntegrity.
func (v *CredentialVault) Decrypt(secret models.EncryptedSecret) (string, error) {
	ciphertext, err := hex.DecodeString(secret.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext: %v", ErrInvalidEnvelope, err)
	}
	iv, err := hex.DecodeString(secret.IV)
	if err != nil || len(iv) != vaultIVSize {
		return "", fmt.Errorf("%w: iv", ErrInvalidEnvelope)
	}
	tag, err := hex.DecodeString(secret.AuthTag)
	if err != nil || len(tag) != vaultTagSize {
		return "", fmt.Errorf("%w: auth tag", ErrInvalidEnvelope)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := v.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrCredentialIntegrity
	}

	return string(plaintext), nil
}
