// Package profile stores the user's personal snapshot used to fill opt-out
// forms. The profile is encrypted at rest with AES-256-GCM; the key is
// generated on first use and kept beside the profile with owner-only
// permissions.
package profile

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/entrhq/unlist/pkg/types"
)

const (
	profileFilename = "profile.enc"
	keyFilename     = "secret.key"
	keySize         = 32
	nonceSize       = 12
)

// Store reads and writes the encrypted profile.
type Store struct {
	dir string
	mu  sync.RWMutex
	key []byte
}

// NewStore opens a store rooted at dir, or ~/.unlist when dir is empty. The
// encryption key is created on first use.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".unlist")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	s := &Store{dir: dir}
	if err := s.loadOrCreateKey(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) profilePath() string { return filepath.Join(s.dir, profileFilename) }
func (s *Store) keyPath() string     { return filepath.Join(s.dir, keyFilename) }

func (s *Store) loadOrCreateKey() error {
	data, err := os.ReadFile(s.keyPath())
	if err == nil {
		key, decErr := base64.StdEncoding.DecodeString(string(data))
		if decErr != nil || len(key) != keySize {
			return errors.New("profile key file is corrupt")
		}
		s.key = key
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read profile key: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate profile key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(s.keyPath(), []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write profile key: %w", err)
	}
	s.key = key
	return nil
}

// Save encrypts and persists the profile, replacing any previous one.
func (s *Store) Save(p *types.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plaintext, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	encrypted, err := encrypt(plaintext, s.key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.profilePath(), []byte(encrypted), 0600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// Load decrypts and returns the stored profile, or (nil, nil) when none has
// been saved.
func (s *Store) Load() (*types.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.profilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	plaintext, err := decrypt(string(data), s.key)
	if err != nil {
		return nil, err
	}
	var p types.Profile
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &p, nil
}

// Snapshot returns the profile a run fills forms from. Runs take the
// snapshot once at start so mid-run edits do not bleed in.
func (s *Store) Snapshot() (*types.Profile, error) {
	return s.Load()
}

// Delete removes the stored profile. The key is kept so a re-saved profile
// remains readable by running sessions.
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.profilePath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

// encrypt seals plaintext with AES-256-GCM and returns
// base64(nonce || ciphertext).
func encrypt(plaintext, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// decrypt reverses encrypt.
func decrypt(encoded string, key []byte) ([]byte, error) {
	combined, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	if len(combined) <= nonceSize {
		return nil, errors.New("decryption failed: data too short")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	nonce, ciphertext := combined[:nonceSize], combined[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("decryption failed: wrong key or corrupt data")
	}
	return plaintext, nil
}
