package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

// MemoryRepo is an in-memory Repo. Safe for concurrent access; intended for
// tests and local development.
type MemoryRepo struct {
	mu     sync.Mutex
	blocks map[string]domain.TimeBlock
	writes int
}

var _ Repo = (*MemoryRepo)(nil)

// NewMemory returns an empty MemoryRepo.
func NewMemory() *MemoryRepo {
	return &MemoryRepo{blocks: make(map[string]domain.TimeBlock)}
}

func (m *MemoryRepo) Close() error                 { return nil }
func (m *MemoryRepo) Ping(_ context.Context) error { return nil }

// Writes returns how many mutations TryClaim and Unclaim have applied.
func (m *MemoryRepo) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemoryRepo) InsertBlock(_ context.Context, b *domain.TimeBlock) error {
	if b == nil {
		return ErrNilBlock
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blocks[b.ID]; ok {
		return ErrDuplicate
	}
	cp := *b
	cp.StartAt = cp.StartAt.UTC()
	cp.EndAt = cp.EndAt.UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = cp.CreatedAt
	}
	m.blocks[cp.ID] = cp
	return nil
}

func (m *MemoryRepo) GetBlock(_ context.Context, id string) (*domain.TimeBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blocks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *MemoryRepo) FindDueCandidates(_ context.Context, from, to time.Time) ([]domain.TimeBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []domain.TimeBlock
	for _, b := range m.blocks {
		if b.ReminderSent || b.StartAt.Before(from) || b.StartAt.After(to) {
			continue
		}
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StartAt.Before(res[j].StartAt) })
	return res, nil
}

func (m *MemoryRepo) TryClaim(_ context.Context, id string) (domain.TimeBlock, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blocks[id]
	if !ok || b.ReminderSent {
		return domain.TimeBlock{}, false, nil
	}
	b.ReminderSent = true
	b.UpdatedAt = time.Now().UTC()
	m.blocks[id] = b
	m.writes++
	return b, true, nil
}

func (m *MemoryRepo) Unclaim(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blocks[id]
	if !ok {
		return nil
	}
	b.ReminderSent = false
	b.UpdatedAt = time.Now().UTC()
	m.blocks[id] = b
	m.writes++
	return nil
}
