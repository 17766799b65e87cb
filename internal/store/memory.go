package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"safety-tracker/internal/models"
)

// MemoryStore keeps records in process memory. Used by tests and by
// deployments that run with STORE_DRIVER=memory.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	subjects map[string]time.Time
	records  map[int64]models.AnomalyRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subjects: make(map[string]time.Time),
		records:  make(map[int64]models.AnomalyRecord),
	}
}

func (m *MemoryStore) Touch(ctx context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchLocked(subjectID)
	return nil
}

func (m *MemoryStore) touchLocked(subjectID string) {
	if _, ok := m.subjects[subjectID]; !ok {
		m.subjects[subjectID] = time.Now()
	}
}

func (m *MemoryStore) Seen(ctx context.Context, subjectID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.subjects[subjectID]
	return ok, nil
}

func (m *MemoryStore) Record(ctx context.Context, rec models.AnomalyRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.touchLocked(rec.SubjectID)
	m.nextID++
	rec.ID = m.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.records[rec.ID] = rec
	return rec.ID, nil
}

func (m *MemoryStore) CountSince(ctx context.Context, subjectID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, rec := range m.records {
		if rec.SubjectID == subjectID && !rec.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListUnresolved(ctx context.Context) ([]models.AnomalyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := []models.AnomalyRecord{}
	for _, rec := range m.records {
		if !rec.Resolved {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].ID > records[j].ID
		}
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

func (m *MemoryStore) Resolve(ctx context.Context, id int64, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Resolved = true
	rec.ResolutionNotes = notes
	m.records[id] = rec
	return nil
}

func (m *MemoryStore) DeleteForSubject(ctx context.Context, subjectID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, rec := range m.records {
		if rec.SubjectID == subjectID {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
