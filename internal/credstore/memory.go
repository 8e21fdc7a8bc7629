package credstore

import "sync"

// MemoryStore keeps credentials in process memory. It satisfies the store
// contract for a single process only; tests and ephemeral sessions use it.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credential)}
}

func (s *MemoryStore) Save(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.ServiceURL] = cred
	return nil
}

func (s *MemoryStore) Load(serviceURL string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[serviceURL]
	if !ok {
		return nil, ErrNotFound
	}
	return &cred, nil
}

func (s *MemoryStore) Delete(serviceURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, serviceURL)
	return nil
}

func (s *MemoryStore) IsAuthenticated(serviceURL string) bool {
	return isAuthenticated(s, serviceURL)
}
