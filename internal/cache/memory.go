package cache

import (
	"context"
	"sync"

	"safety-tracker/internal/models"
)

type memoryWindow struct {
	mu      sync.Mutex
	samples []models.LocationSample
	active  bool
	// retired is set once Reset unlinks the window from the map. Writers
	// holding a stale pointer must look the subject up again.
	retired bool
}

// append adds sample under the window lock and returns a copy of the
// trimmed window. It reports false if the window was retired.
func (w *memoryWindow) append(sample models.LocationSample, size int) ([]models.LocationSample, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.retired {
		return nil, false
	}

	w.samples = append(w.samples, sample)
	if over := len(w.samples) - size; over > 0 {
		w.samples = append(w.samples[:0], w.samples[over:]...)
	}

	out := make([]models.LocationSample, len(w.samples))
	copy(out, w.samples)
	return out, true
}

func (w *memoryWindow) start() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.retired {
		return false
	}
	w.samples = w.samples[:0]
	w.active = true
	return true
}

// MemoryStore is an in-process WindowStore. Each subject has its own lock so
// different subjects never contend.
type MemoryStore struct {
	windowSize int

	mu      sync.Mutex
	windows map[string]*memoryWindow
}

func NewMemoryStore(windowSize int) *MemoryStore {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &MemoryStore{
		windowSize: windowSize,
		windows:    make(map[string]*memoryWindow),
	}
}

func (m *MemoryStore) window(subjectID string) *memoryWindow {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[subjectID]
	if !ok {
		w = &memoryWindow{samples: make([]models.LocationSample, 0, m.windowSize)}
		m.windows[subjectID] = w
	}
	return w
}

func (m *MemoryStore) Start(_ context.Context, subjectID string) error {
	for !m.window(subjectID).start() {
	}
	return nil
}

func (m *MemoryStore) Append(_ context.Context, subjectID string, sample models.LocationSample) ([]models.LocationSample, error) {
	for {
		if out, ok := m.window(subjectID).append(sample, m.windowSize); ok {
			return out, nil
		}
	}
}

func (m *MemoryStore) Snapshot(_ context.Context, subjectID string) ([]models.LocationSample, error) {
	m.mu.Lock()
	w, ok := m.windows[subjectID]
	m.mu.Unlock()
	if !ok {
		return []models.LocationSample{}, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.LocationSample, len(w.samples))
	copy(out, w.samples)
	return out, nil
}

// Reset retires the subject's window before unlinking it, so an Append that
// already holds the old window cannot write samples that outlive the reset.
func (m *MemoryStore) Reset(_ context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[subjectID]
	if !ok {
		return nil
	}
	w.mu.Lock()
	w.samples = nil
	w.active = false
	w.retired = true
	w.mu.Unlock()

	delete(m.windows, subjectID)
	return nil
}

func (m *MemoryStore) HasActiveSession(_ context.Context, subjectID string) (bool, error) {
	m.mu.Lock()
	w, ok := m.windows[subjectID]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
