package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
)

// Key is the fixed entry the auth token is stored under.
const Key = "genvid_token"

const (
	fileName = "credentials.json"
	lockName = ".credentials.lock"
	filePerm = 0o600
	dirPerm  = 0o700

	lockRetryDelay = 50 * time.Millisecond
)

var ErrNotFound = errors.New("tokenstore: no token stored")

// Store persists the auth token as a small JSON document of key/value pairs.
type Store struct {
	fs   afero.Fs
	dir  string
	lock *flock.Flock
}

// New stores credentials under dir on fs. Cross-process locking is only
// available on the OS filesystem, see NewOS.
func New(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// NewOS stores credentials on disk under dir, or under the user config
// directory when dir is empty, guarded by a file lock.
func NewOS(dir string) (*Store, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("tokenstore: resolve config dir: %w", err)
		}
		dir = filepath.Join(base, "genvid")
	}
	s := New(afero.NewOsFs(), dir)
	s.lock = flock.New(filepath.Join(dir, lockName))
	return s, nil
}

func (s *Store) Path() string {
	return filepath.Join(s.dir, fileName)
}

// Load returns the stored token or ErrNotFound.
func (s *Store) Load(ctx context.Context) (string, error) {
	var token string
	err := s.withLock(ctx, func() error {
		values, err := s.read()
		if err != nil {
			return err
		}
		token = values[Key]
		return nil
	})
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

func (s *Store) Save(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("tokenstore: refusing to store an empty token")
	}
	return s.withLock(ctx, func() error {
		values, err := s.read()
		if err != nil {
			return err
		}
		values[Key] = token
		return s.write(values)
	})
}

// Clear removes the token. Clearing an empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	return s.withLock(ctx, func() error {
		values, err := s.read()
		if err != nil {
			return err
		}
		if _, ok := values[Key]; !ok {
			return nil
		}
		delete(values, Key)
		if len(values) == 0 {
			if err := s.fs.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("tokenstore: remove credentials: %w", err)
			}
			return nil
		}
		return s.write(values)
	})
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	if s.lock == nil {
		return fn()
	}
	if err := s.fs.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("tokenstore: create dir: %w", err)
	}
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("tokenstore: acquire lock: %w", err)
	}
	if !locked {
		return errors.New("tokenstore: lock not acquired")
	}
	defer s.lock.Unlock()
	return fn()
}

func (s *Store) read() (map[string]string, error) {
	data, err := afero.ReadFile(s.fs, s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("tokenstore: read credentials: %w", err)
	}
	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("tokenstore: parse credentials: %w", err)
	}
	return values, nil
}

// write replaces the credentials file atomically.
func (s *Store) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenstore: encode credentials: %w", err)
	}
	if err := s.fs.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("tokenstore: create dir: %w", err)
	}
	tmp := s.Path() + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, filePerm); err != nil {
		return fmt.Errorf("tokenstore: write credentials: %w", err)
	}
	if err := s.fs.Rename(tmp, s.Path()); err != nil {
		return fmt.Errorf("tokenstore: replace credentials: %w", err)
	}
	return nil
}
