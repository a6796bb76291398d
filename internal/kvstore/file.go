package kvstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor"
	"go.uber.org/zap"
)

// FileStore keeps the whole store in one file, a canonical CBOR map.
// Every Set rewrites the snapshot through a temporary file and a rename.
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]string
	logger *zap.Logger
}

func NewFileStore(logger *zap.Logger, path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("store file path is empty")
	}

	store := &FileStore{
		path:   path,
		values: make(map[string]string),
		logger: logger,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("store file does not exist yet", zap.String("path", path))
		return store, nil
	}
	if err != nil {
		return nil, errors.New("failed to read the store file: " + err.Error())
	}

	if len(data) > 0 {
		if err := cbor.Unmarshal(data, &store.values); err != nil {
			return nil, errors.New("failed to decode the store file: " + err.Error())
		}
	}

	return store, nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[key]
	return value, ok, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(s.values)+1)
	for k, v := range s.values {
		next[k] = v
	}
	next[key] = value

	if err := s.persist(next); err != nil {
		return err
	}
	s.values = next

	return nil
}

func (s *FileStore) persist(values map[string]string) error {
	data, err := cbor.Marshal(values, cbor.CanonicalEncOptions())
	if err != nil {
		return errors.New("failed to encode the store: " + err.Error())
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.New("failed to create the store snapshot: " + err.Error())
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.New("failed to write the store snapshot: " + err.Error())
	}
	if err := tmp.Close(); err != nil {
		return errors.New("failed to close the store snapshot: " + err.Error())
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.New("failed to replace the store file: " + err.Error())
	}

	return nil
}
