package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SergeiKhy/pastebin/internal/clock"
	"github.com/SergeiKhy/pastebin/internal/models"
	"github.com/SergeiKhy/pastebin/internal/repository"
)

type storedPaste struct {
	data      []byte
	expiresAt time.Time // нулевое значение - без TTL
}

// MockPasteStore implements repository.PasteStore and repository.PasteUpdater for testing.
// Записи хранятся в закодированном виде и вытесняются по TTL относительно clock.
type MockPasteStore struct {
	mu     sync.Mutex
	clock  clock.Clock
	pastes map[string]storedPaste

	// Err, если задан, возвращается из всех операций
	Err error
	// Conflicts количество искусственных конфликтов, которые вернёт Update
	Conflicts int

	SetCalls    int
	DeleteCalls int
	UpdateCalls int
	LastTTL     map[string]time.Duration
}

func NewMockPasteStore(clk clock.Clock) *MockPasteStore {
	if clk == nil {
		clk = clock.Wall{}
	}
	return &MockPasteStore{
		clock:   clk,
		pastes:  make(map[string]storedPaste),
		LastTTL: make(map[string]time.Duration),
	}
}

func (m *MockPasteStore) Set(ctx context.Context, paste *models.Paste, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	return m.setLocked(paste, ttl)
}

func (m *MockPasteStore) setLocked(paste *models.Paste, ttl time.Duration) error {
	data, err := models.EncodePaste(paste)
	if err != nil {
		return err
	}

	entry := storedPaste{data: data}
	if ttl > 0 {
		entry.expiresAt = m.clock.Now().Add(ttl)
	}
	m.pastes[paste.ID] = entry
	m.LastTTL[paste.ID] = ttl
	m.SetCalls++
	return nil
}

func (m *MockPasteStore) Get(ctx context.Context, id string) (*models.Paste, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return m.getLocked(id)
}

func (m *MockPasteStore) getLocked(id string) (*models.Paste, error) {
	entry, exists := m.pastes[id]
	if !exists {
		return nil, repository.ErrPasteNotFound
	}
	if !entry.expiresAt.IsZero() && !m.clock.Now().Before(entry.expiresAt) {
		delete(m.pastes, id)
		return nil, repository.ErrPasteNotFound
	}
	return models.DecodePaste(entry.data)
}

func (m *MockPasteStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	delete(m.pastes, id)
	m.DeleteCalls++
	return nil
}

func (m *MockPasteStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

// Update выполняет fn под мьютексом, что эквивалентно успешной WATCH/MULTI транзакции
func (m *MockPasteStore) Update(ctx context.Context, id string, fn repository.UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCalls++
	if m.Err != nil {
		return m.Err
	}
	if m.Conflicts > 0 {
		m.Conflicts--
		return repository.ErrTxConflict
	}

	current, err := m.getLocked(id)
	if err != nil {
		return err
	}

	next, ttl, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		delete(m.pastes, id)
		m.DeleteCalls++
		return nil
	}
	return m.setLocked(next, ttl)
}

// Exists сообщает, лежит ли запись физически в хранилище (без учёта TTL)
func (m *MockPasteStore) Exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.pastes[id]
	return exists
}

func (m *MockPasteStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pastes = make(map[string]storedPaste)
	m.LastTTL = make(map[string]time.Duration)
	m.SetCalls, m.DeleteCalls, m.UpdateCalls = 0, 0, 0
}

// PlainPasteStore скрывает Update, оставляя только PasteStore
type PlainPasteStore struct {
	repository.PasteStore
}

// MockIDGenerator выдаёт идентификаторы из заданного списка, затем id-N
type MockIDGenerator struct {
	mu   sync.Mutex
	ids  []string
	next int
	Err  error
}

func NewMockIDGenerator(ids ...string) *MockIDGenerator {
	return &MockIDGenerator{ids: ids}
}

func (g *MockIDGenerator) Generate(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Err != nil {
		return "", g.Err
	}
	g.next++
	if g.next <= len(g.ids) {
		return g.ids[g.next-1], nil
	}
	return fmt.Sprintf("id-%d", g.next), nil
}

// MockViewRepository implements repository.ViewRepository for testing
type MockViewRepository struct {
	mu    sync.Mutex
	views []*models.View
	// FailTimes количество первых вызовов RecordView, завершающихся ошибкой
	FailTimes int
	Err       error
	Calls     int
}

func NewMockViewRepository() *MockViewRepository {
	return &MockViewRepository{}
}

func (m *MockViewRepository) RecordView(ctx context.Context, view *models.View) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if m.FailTimes > 0 {
		m.FailTimes--
		return m.Err
	}
	view.ID = int64(len(m.views) + 1)
	m.views = append(m.views, view)
	return nil
}

func (m *MockViewRepository) PurgeBefore(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.views[:0]
	var removed int64
	for _, v := range m.views {
		if v.ViewedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	m.views = kept
	return removed, nil
}

func (m *MockViewRepository) Views() []*models.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.View(nil), m.views...)
}
