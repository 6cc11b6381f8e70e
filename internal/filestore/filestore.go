// Package filestore persists the session token pair in a local JSON file,
// optionally sealed with a passphrase.
package filestore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kiranshivaraju/darkwatch/internal/session"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// ErrDecrypt is returned when a sealed file cannot be opened with the
// configured passphrase.
var ErrDecrypt = errors.New("cannot decrypt token file")

const (
	fileMode = 0o600
	dirMode  = 0o700

	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	// scrypt cost parameters for interactive logins.
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// sealed is the on-disk form when a passphrase is set.
type sealed struct {
	Version int    `json:"version"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Box     []byte `json:"box"`
}

// Store implements session.TokenStore over a single file. Every write
// rewrites the file through a temp file and rename.
type Store struct {
	path       string
	passphrase []byte

	mu sync.Mutex
}

// New creates a Store at path. An empty passphrase stores plain JSON.
func New(path, passphrase string) *Store {
	s := &Store{path: path}
	if passphrase != "" {
		s.passphrase = []byte(passphrase)
	}
	return s
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

// Delete removes keys; the file itself is removed once it holds nothing.
func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil && !errors.Is(err, ErrDecrypt) {
		return err
	}
	// An unreadable file is discarded on delete so logout always succeeds.
	if errors.Is(err, ErrDecrypt) {
		values = map[string]string{}
	}
	for _, k := range keys {
		delete(values, k)
	}
	if len(values) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove token file: %w", err)
		}
		return nil
	}
	return s.save(values)
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	if s.passphrase != nil {
		data, err = s.open(data)
		if err != nil {
			return nil, err
		}
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return values, nil
}

func (s *Store) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}
	if s.passphrase != nil {
		data, err = s.seal(data)
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

func (s *Store) seal(plain []byte) ([]byte, error) {
	env := sealed{Version: 1, Salt: make([]byte, saltSize), Nonce: make([]byte, nonceSize)}
	if _, err := io.ReadFull(rand.Reader, env.Salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, env.Nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	key, err := s.deriveKey(env.Salt)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], env.Nonce)
	env.Box = secretbox.Seal(nil, plain, &nonce, key)

	return json.Marshal(env)
}

func (s *Store) open(data []byte) ([]byte, error) {
	var env sealed
	if err := json.Unmarshal(data, &env); err != nil || env.Version != 1 || len(env.Nonce) != nonceSize {
		return nil, ErrDecrypt
	}
	key, err := s.deriveKey(env.Salt)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], env.Nonce)
	plain, ok := secretbox.Open(nil, env.Box, &nonce, key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}

func (s *Store) deriveKey(salt []byte) (*[keySize]byte, error) {
	raw, err := scrypt.Key(s.passphrase, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}

var _ session.TokenStore = (*Store)(nil)
