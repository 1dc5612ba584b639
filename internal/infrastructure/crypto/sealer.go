package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manorfm/healthshield-mfa/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

const (
	sealedPrefix = "v1:"
	aesKeyLen    = 32
	hkdfInfo     = "healthshield-mfa/totp-secret/v1"
)

var (
	// ErrMissingKeyMaterial indicates an empty encryption key
	ErrMissingKeyMaterial = errors.New("crypto: missing key material")
	// ErrEmptySecret indicates an empty plaintext secret
	ErrEmptySecret = errors.New("crypto: secret is empty")
)

// PlainSealer stores secrets as-is.
type PlainSealer struct{}

// NewPlainSealer creates a sealer that performs no encryption
func NewPlainSealer() *PlainSealer {
	return &PlainSealer{}
}

func (PlainSealer) Seal(_, secret string) (string, error) {
	if secret == "" {
		return "", domain.ErrInvalidSecret
	}
	return secret, nil
}

func (PlainSealer) Open(_, stored string) (string, error) {
	if stored == "" {
		return "", domain.ErrInvalidSecret
	}
	return stored, nil
}

// AESSealer encrypts secrets with AES-256-GCM. The ciphertext is bound to the
// owning user id so a value copied to another row will not open.
type AESSealer struct {
	aead   cipher.AEAD
	logger *zap.Logger
}

// NewAESSealer derives the encryption key from keyMaterial with HKDF-SHA256
func NewAESSealer(keyMaterial string, logger *zap.Logger) (*AESSealer, error) {
	if keyMaterial == "" {
		return nil, ErrMissingKeyMaterial
	}

	key := make([]byte, aesKeyLen)
	kdf := hkdf.New(sha256.New, []byte(keyMaterial), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: aes init failed: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm init failed: %w", err)
	}

	return &AESSealer{aead: aead, logger: logger}, nil
}

// Seal encrypts secret and returns v1:<base64(nonce||ciphertext)>
func (s *AESSealer) Seal(userID, secret string) (string, error) {
	if secret == "" {
		return "", domain.ErrInvalidSecret
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		s.logger.Error("failed to generate nonce", zap.Error(err))
		return "", domain.ErrInternal
	}

	out := s.aead.Seal(nonce, nonce, []byte(secret), associatedData(userID))
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal for the same user
func (s *AESSealer) Open(userID, stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		s.logger.Error("stored secret is not sealed", zap.String("user_id", userID))
		return "", domain.ErrInvalidSecret
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		s.logger.Error("sealed secret is not valid base64", zap.String("user_id", userID))
		return "", domain.ErrInvalidSecret
	}

	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize+s.aead.Overhead()+1 {
		s.logger.Error("sealed secret too short", zap.String("user_id", userID))
		return "", domain.ErrInvalidSecret
	}

	plain, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], associatedData(userID))
	if err != nil {
		s.logger.Error("failed to open sealed secret", zap.String("user_id", userID))
		return "", domain.ErrInvalidSecret
	}

	return string(plain), nil
}

func associatedData(userID string) []byte {
	sum := sha256.Sum256([]byte("uid=" + userID + "\npurpose=totp\n"))
	return sum[:]
}
