package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileStore persists credentials as a JSON document on disk. The primary
// and authentication surfaces may live in different OS processes, so every
// operation takes a file lock, and writes go through a temp file plus
// rename so readers never see a half-written document.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore creates a store backed by the document at path. The parent
// directory is created if missing.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (s *FileStore) Save(cred Credential) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock credential store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	doc, err := s.read()
	if err != nil {
		return err
	}

	doc[cred.ServiceURL] = cred
	return s.write(doc)
}

func (s *FileStore) Load(serviceURL string) (*Credential, error) {
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock credential store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	cred, ok := doc[serviceURL]
	if !ok {
		return nil, ErrNotFound
	}
	return &cred, nil
}

func (s *FileStore) Delete(serviceURL string) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock credential store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	doc, err := s.read()
	if err != nil {
		return err
	}

	if _, ok := doc[serviceURL]; !ok {
		return nil
	}
	delete(doc, serviceURL)
	return s.write(doc)
}

func (s *FileStore) IsAuthenticated(serviceURL string) bool {
	return isAuthenticated(s, serviceURL)
}

// read loads the whole document. A missing file is an empty document.
func (s *FileStore) read() (map[string]Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]Credential), nil
		}
		return nil, fmt.Errorf("failed to read credential store: %w", err)
	}

	doc := make(map[string]Credential)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse credential store: %w", err)
		}
	}
	return doc, nil
}

// write replaces the document atomically via temp file plus rename.
func (s *FileStore) write(doc map[string]Credential) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential store: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace credential store: %w", err)
	}
	return nil
}
