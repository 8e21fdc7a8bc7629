package credstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore persists credentials in the operating system keychain,
// one entry per service URL under a fixed service name. The keychain is
// visible to every process of the same user, which covers the
// cross-surface requirement without a file on disk.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a store writing under the given keychain service
// name.
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Save(cred Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	if err := keyring.Set(s.service, cred.ServiceURL, string(data)); err != nil {
		return fmt.Errorf("failed to write keychain entry: %w", err)
	}
	return nil
}

func (s *KeyringStore) Load(serviceURL string) (*Credential, error) {
	data, err := keyring.Get(s.service, serviceURL)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read keychain entry: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to parse keychain entry: %w", err)
	}
	return &cred, nil
}

func (s *KeyringStore) Delete(serviceURL string) error {
	if err := keyring.Delete(s.service, serviceURL); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete keychain entry: %w", err)
	}
	return nil
}

func (s *KeyringStore) IsAuthenticated(serviceURL string) bool {
	return isAuthenticated(s, serviceURL)
}
