// Package token stores OAuth tokens at rest, encrypted with AES-256-GCM
// under a PBKDF2-derived key.
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/oauth2"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 100_000
)

// ErrNotFound is returned by Load when no token has been stored yet.
var ErrNotFound = errors.New("token not found")

// Storage encrypts tokens into a single file.
type Storage struct {
	path     string
	password string
}

// NewStorage creates token storage at path. The parent directory is
// created with owner-only permissions.
func NewStorage(path, password string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create token directory: %w", err)
	}
	return &Storage{path: path, password: password}, nil
}

// Save encrypts and writes the token, overwriting any previous one.
func (s *Storage) Save(tok *oauth2.Token) error {
	plaintext, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := s.cipher(salt)
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	blob := append(salt, gcm.Seal(nonce, nonce, plaintext, nil)...)
	encoded := base64.StdEncoding.EncodeToString(blob)

	if err := os.WriteFile(s.path, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// Load decrypts the stored token. A missing file yields ErrNotFound; a
// corrupt or wrongly-keyed file is an error.
func (s *Storage) Load() (*oauth2.Token, error) {
	encoded, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}

	blob, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	if len(blob) < saltSize {
		return nil, fmt.Errorf("token file too short")
	}
	salt, rest := blob[:saltSize], blob[saltSize:]

	gcm, err := s.cipher(salt)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("token file too short")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(plaintext, &tok); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return &tok, nil
}

func (s *Storage) cipher(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(s.password), salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
