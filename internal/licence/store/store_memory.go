package store

import (
	"context"
	"sort"
	"sync"

	"cvl/internal/licence/models"
	"cvl/pkg/domain"
	"cvl/pkg/platform/sentinel"
)

// MemoryStore keeps licences in a map. It backs unit tests and doubles as the
// service fake; semantics match the PostgreSQL store, including stale-status
// detection.
type MemoryStore struct {
	mu       sync.RWMutex
	licences map[domain.LicenceID]*models.Licence
	nextID   domain.LicenceID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		licences: make(map[domain.LicenceID]*models.Licence),
		nextID:   1,
	}
}

func (s *MemoryStore) Create(_ context.Context, licence *models.Licence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	licence.ID = s.nextID
	s.nextID++
	s.licences[licence.ID] = clone(licence)
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id domain.LicenceID) (*models.Licence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	licence, ok := s.licences[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(licence), nil
}

func (s *MemoryStore) Update(_ context.Context, licence *models.Licence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.licences[licence.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.licences[licence.ID] = clone(licence)
	return nil
}

func (s *MemoryStore) UpdateIfStatus(_ context.Context, licence *models.Licence, expected models.LicenceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.licences[licence.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != expected {
		return sentinel.ErrStaleStatus
	}
	s.licences[licence.ID] = clone(licence)
	return nil
}

func (s *MemoryStore) FindByStatusIn(_ context.Context, statuses ...models.LicenceStatus) ([]*models.Licence, error) {
	wanted := make(map[models.LicenceStatus]bool, len(statuses))
	for _, status := range statuses {
		wanted[status] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Licence
	for _, licence := range s.licences {
		if wanted[licence.Status] {
			out = append(out, clone(licence))
		}
	}
	sortByID(out)
	return out, nil
}

func (s *MemoryStore) FindByNomisIDs(_ context.Context, nomisIDs []domain.NomisID) ([]*models.Licence, error) {
	wanted := make(map[domain.NomisID]bool, len(nomisIDs))
	for _, id := range nomisIDs {
		wanted[id] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Licence
	for _, licence := range s.licences {
		if wanted[licence.NomisID] {
			out = append(out, clone(licence))
		}
	}
	sortByID(out)
	return out, nil
}

func (s *MemoryStore) FindByCRN(_ context.Context, crn domain.CRN) ([]*models.Licence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Licence
	for _, licence := range s.licences {
		if licence.CRN == crn {
			out = append(out, clone(licence))
		}
	}
	sortByID(out)
	return out, nil
}

func (s *MemoryStore) ListIDsBefore(_ context.Context, cursor domain.LicenceID, limit int) ([]domain.LicenceID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []domain.LicenceID
	for id := range s.licences {
		if cursor == 0 || id < cursor {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func sortByID(licences []*models.Licence) {
	sort.Slice(licences, func(i, j int) bool { return licences[i].ID < licences[j].ID })
}

func clone(licence *models.Licence) *models.Licence {
	copied := *licence
	if licence.Conditions != nil {
		copied.Conditions = make([]models.Condition, len(licence.Conditions))
		copy(copied.Conditions, licence.Conditions)
	}
	return &copied
}
