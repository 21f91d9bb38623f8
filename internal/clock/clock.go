package clock

import (
	"strconv"
	"sync"
	"time"
)

// TestNowHeader заголовок с логическим временем запроса (мс с эпохи), учитывается только в тестовом режиме
const TestNowHeader = "x-test-now-ms"

// Clock источник физического времени
type Clock interface {
	Now() time.Time
}

// Wall системные часы с точностью до миллисекунды
type Wall struct{}

// Now возвращает текущее время в UTC, усечённое до миллисекунд
func (Wall) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Source определяет логическое время запроса.
// Переопределение через заголовок включается только явно при создании.
type Source struct {
	clock    Clock
	testMode bool
}

// NewSource создаёт источник логического времени поверх физических часов
func NewSource(clock Clock, testMode bool) *Source {
	if clock == nil {
		clock = Wall{}
	}
	return &Source{clock: clock, testMode: testMode}
}

// Now возвращает логическое время для значения заголовка TestNowHeader.
// Вне тестового режима и при невалидном значении используются физические часы.
func (s *Source) Now(override string) time.Time {
	if s.testMode && override != "" {
		if ms, err := strconv.ParseInt(override, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	}
	return s.clock.Now()
}

// TestMode сообщает, разрешено ли переопределение времени
func (s *Source) TestMode() bool {
	return s.testMode
}

// Manual управляемые вручную часы для тестов
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual создаёт часы, остановленные в момент now
func NewManual(now time.Time) *Manual {
	return &Manual{now: now.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set переводит часы на момент t
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t.UTC()
}

// Advance сдвигает часы вперёд на d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
