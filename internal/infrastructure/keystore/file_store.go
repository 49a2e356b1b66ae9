package keystore

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/internal/domain/repository"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

const (
	keyFilePrefix = "key-"
	keyFileSuffix = ".json"
)

// FileStore keeps one JSON document per key in a directory shared by every
// cooperating service, e.g. a mounted volume.
type FileStore struct {
	dir     string
	logger  logger.Logger
	changes chan struct{}
	watcher *DirWatcher
}

var (
	_ repository.KeyStore          = (*FileStore)(nil)
	_ repository.KeyChangeNotifier = (*FileStore)(nil)
)

// NewFileStore opens (and creates, if needed) a key directory.
func NewFileStore(dir string, log logger.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.ErrInvalidConfig("keyring.directory", "must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.ErrKeyStore("open", err)
	}
	return &FileStore{
		dir:     dir,
		logger:  log.WithComponent("FileStore"),
		changes: make(chan struct{}, 1),
	}, nil
}

// Name implements repository.KeyStore.
func (s *FileStore) Name() string { return string(constants.KeySourceFile) }

// Dir returns the key directory.
func (s *FileStore) Dir() string { return s.dir }

// Watch starts signalling Changes on external modifications of the directory.
func (s *FileStore) Watch() error {
	if s.watcher != nil {
		return nil
	}
	w, err := NewDirWatcher(s.dir, isKeyFile, s.signal, s.logger)
	if err != nil {
		return errors.ErrKeyStore("watch", err)
	}
	s.watcher = w
	return nil
}

// Changes implements repository.KeyChangeNotifier.
func (s *FileStore) Changes() <-chan struct{} { return s.changes }

// Close stops watching.
func (s *FileStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

// LoadAll implements repository.KeyStore.
func (s *FileStore) LoadAll(ctx context.Context) ([]*models.KeyEntry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.ErrKeyStore("load", err)
	}

	keys := make([]*models.KeyEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isKeyFile(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.ErrKeyStore("load", err)
		}

		path := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(path)
		if stderrors.Is(err, fs.ErrNotExist) {
			// purged between listing and reading
			continue
		}
		if err != nil {
			return nil, errors.ErrKeyStore("load", fmt.Errorf("read %s: %w", e.Name(), err))
		}
		key, err := DecodeKey(data)
		if err != nil {
			s.logger.Warn(ctx, "Skipping invalid key file", logger.String("file", e.Name()), logger.Error(err))
			continue
		}
		if e.Name() != keyFileName(key.ID) {
			s.logger.Warn(ctx, "Key file name does not match its key id",
				logger.String("file", e.Name()),
				logger.String("key_id", key.ID.String()),
			)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Save writes the key through a temporary file and an atomic rename, so readers
// never observe a partial document.
func (s *FileStore) Save(ctx context.Context, key *models.KeyEntry) error {
	data, err := EncodeKey(key)
	if err != nil {
		return errors.ErrKeyStore("save", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".key-*.tmp")
	if err != nil {
		return errors.ErrKeyStore("save", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.ErrKeyStore("save", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.ErrKeyStore("save", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.ErrKeyStore("save", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.ErrKeyStore("save", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, keyFileName(key.ID))); err != nil {
		return errors.ErrKeyStore("save", err)
	}
	return nil
}

// Delete implements repository.KeyStore.
func (s *FileStore) Delete(ctx context.Context, id uuid.UUID) error {
	err := os.Remove(filepath.Join(s.dir, keyFileName(id)))
	if err != nil && !os.IsNotExist(err) {
		return errors.ErrKeyStore("delete", err)
	}
	return nil
}

func (s *FileStore) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func keyFileName(id uuid.UUID) string {
	return fmt.Sprintf("%s%s%s", keyFilePrefix, id, keyFileSuffix)
}

func isKeyFile(name string) bool {
	return strings.HasPrefix(name, keyFilePrefix) && strings.HasSuffix(name, keyFileSuffix)
}
