package keys

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

const (
	keyDirPermissions  = 0o700
	keyFilePermissions = 0o600
)

// FileStore keeps a keypair as a JSON array of its 64 secret key bytes, the
// format produced by solana-keygen.
type FileStore struct {
	path string
	log  zerolog.Logger
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path: path,
		log:  logger.With().Str("component", "key_store").Str("path", path).Logger(),
	}
}

// Location returns the key file path.
func (fs *FileStore) Location() string {
	return fs.path
}

// Load reads the key file.
func (fs *FileStore) Load() (solana.PrivateKey, error) {
	info, err := os.Stat(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to stat key file %s: %w", fs.path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("key path %s is a directory", fs.path)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		fs.log.Warn().
			Str("current_perms", perm.String()).
			Msg("key file is readable by other users (should be 600)")
	}

	data, err := os.ReadFile(filepath.Clean(fs.path))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", fs.path, err)
	}

	key, err := ParseSecret(data)
	if err != nil {
		return nil, fmt.Errorf("invalid key file %s: %w", fs.path, err)
	}
	return key, nil
}

// CreateAndPersist generates a keypair and writes it. Existing files are never
// overwritten.
func (fs *FileStore) CreateAndPersist() (solana.PrivateKey, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	if err := fs.write(key); err != nil {
		return nil, err
	}

	fs.log.Info().Str("address", key.PublicKey().String()).Msg("created new keypair")
	return key, nil
}

// Import stores an externally supplied key. Existing files are never overwritten.
func (fs *FileStore) Import(key solana.PrivateKey) error {
	if err := validateSecret(key); err != nil {
		return err
	}
	return fs.write(key)
}

func (fs *FileStore) write(key solana.PrivateKey) error {
	if err := ensureKeyDir(filepath.Dir(fs.path), fs.log); err != nil {
		return err
	}

	data, err := json.Marshal(secretBytes(key))
	if err != nil {
		return fmt.Errorf("failed to encode keypair: %w", err)
	}

	f, err := os.OpenFile(fs.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, keyFilePermissions)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("refusing to overwrite existing key file %s", fs.path)
		}
		return fmt.Errorf("failed to create key file %s: %w", fs.path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write key file %s: %w", fs.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync key file %s: %w", fs.path, err)
	}
	return f.Close()
}

// secretBytes converts the key to []int so it encodes as a JSON number array
// rather than base64.
func secretBytes(key solana.PrivateKey) []int {
	out := make([]int, len(key))
	for i, b := range key {
		out[i] = int(b)
	}
	return out
}

// ensureKeyDir creates dir with owner-only permissions, tightening an existing
// directory when needed.
func ensureKeyDir(dir string, log zerolog.Logger) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir, keyDirPermissions); err != nil {
				return fmt.Errorf("failed to create key directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to check key directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("key directory path is not a directory: %s", dir)
	}
	if info.Mode().Perm()&0o077 != 0 {
		log.Warn().
			Str("dir", dir).
			Str("current_perms", info.Mode().Perm().String()).
			Msg("key directory permissions are not optimal (should be 700)")
	}
	return nil
}
