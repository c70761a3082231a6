package credential

import (
	"context"
	"fmt"
	"sync"

	"attester/internal/chain"
	id "attester/pkg/domain"
	"attester/pkg/platform/sentinel"
)

// InMemoryStore keeps credential records in a mutex-guarded map. Reads hand
// out copies so callers never observe a half-written record.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.CredentialID]*Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.CredentialID]*Record)}
}

func (s *InMemoryStore) Add(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.records[record.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, credentialID id.CredentialID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyRecord(record), nil
}

func (s *InMemoryStore) List(ctx context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]*Record, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, copyRecord(record))
	}
	return records, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, credentialID id.CredentialID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[credentialID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, credentialID)
	return nil
}

func (s *InMemoryStore) SetAttestation(ctx context.Context, credentialID id.CredentialID, attestation chain.Attestation) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if record.Revoked() && !attestation.Revoked {
		return nil, fmt.Errorf("%w: revocation is monotonic", sentinel.ErrInvalidState)
	}

	updated := *record
	updated.Attestation = &attestation
	s.records[credentialID] = &updated

	return copyRecord(&updated), nil
}

func copyRecord(record *Record) *Record {
	copied := *record
	if record.Attestation != nil {
		attestation := *record.Attestation
		copied.Attestation = &attestation
	}
	return &copied
}
