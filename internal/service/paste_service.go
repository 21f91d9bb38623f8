package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/pastebin/internal/clock"
	"github.com/SergeiKhy/pastebin/internal/metrics"
	"github.com/SergeiKhy/pastebin/internal/models"
	"github.com/SergeiKhy/pastebin/internal/repository"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	// ErrPasteNotFound паста не существует, истекла по времени или исчерпала просмотры.
	// Причина наружу не раскрывается.
	ErrPasteNotFound = errors.New("paste not found")
	// ErrInvalidInput параметры создания вне допустимого диапазона
	ErrInvalidInput = errors.New("invalid paste input")
	// ErrConcurrentUpdate оптимистичная транзакция не прошла за maxUpdateAttempts попыток
	ErrConcurrentUpdate = errors.New("paste is being updated concurrently")
)

const maxUpdateAttempts = 3

// IDGenerator источник идентификаторов паст
type IDGenerator interface {
	Generate(ctx context.Context) (string, error)
}

// Options настройки сервиса паст
type Options struct {
	// StrictViews: расходовать просмотры в оптимистичной транзакции, если хранилище это умеет
	StrictViews bool
}

// PasteService жизненный цикл пасты
type PasteService interface {
	Create(ctx context.Context, input *models.CreatePasteInput) (*models.Paste, error)
	Fetch(ctx context.Context, id string) (*models.Paste, error)
	ConsumeView(ctx context.Context, id string, now time.Time) (*models.Paste, error)
	Ping(ctx context.Context) error
}

// pasteService реализация сервиса паст.
//
// По умолчанию ConsumeView делает чтение и запись двумя отдельными запросами
// без проверки версии. Два параллельных запроса могут прочитать одинаковый
// view_count и оба записать k+1: паста с max_views будет показана больше раз,
// чем разрешено, а счётчик недосчитает просмотры. Опция StrictViews переводит
// расход просмотра в WATCH/MULTI транзакцию и закрывает эту гонку.
type pasteService struct {
	store   repository.PasteStore
	updater repository.PasteUpdater
	ids     IDGenerator
	clock   clock.Clock
	logger  *zap.Logger
}

// NewPasteService создаёт новый экземпляр сервиса
func NewPasteService(
	store repository.PasteStore,
	ids IDGenerator,
	clk clock.Clock,
	logger *zap.Logger,
	opts Options,
) PasteService {
	if clk == nil {
		clk = clock.Wall{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &pasteService{
		store:  store,
		ids:    ids,
		clock:  clk,
		logger: logger,
	}

	if opts.StrictViews {
		if updater, ok := store.(repository.PasteUpdater); ok {
			s.updater = updater
		} else {
			logger.Warn("Store does not support optimistic updates, strict view limit disabled")
		}
	}

	return s
}

// Create создаёт пасту и сохраняет её с TTL, равным сроку жизни
func (s *pasteService) Create(ctx context.Context, input *models.CreatePasteInput) (*models.Paste, error) {
	if input.TTLSeconds != nil && *input.TTLSeconds < 1 {
		return nil, fmt.Errorf("%w: ttl_seconds must be >= 1", ErrInvalidInput)
	}
	if input.MaxViews != nil && *input.MaxViews < 1 {
		return nil, fmt.Errorf("%w: max_views must be >= 1", ErrInvalidInput)
	}

	id, err := s.ids.Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate id: %w", err)
	}

	now := s.clock.Now().Truncate(time.Millisecond)
	paste := &models.Paste{
		ID:        id,
		Content:   input.Content,
		CreatedAt: now,
		ViewCount: 0,
	}

	var ttl time.Duration
	if input.TTLSeconds != nil {
		ttl = time.Duration(*input.TTLSeconds) * time.Second
		expiresAt := now.Add(ttl)
		paste.ExpiresAt = &expiresAt
	}
	if input.MaxViews != nil {
		maxViews := *input.MaxViews
		paste.MaxViews = &maxViews
	}

	if err := s.store.Set(ctx, paste, ttl); err != nil {
		metrics.StoreErrors.WithLabelValues("set").Inc()
		return nil, fmt.Errorf("failed to create paste: %w", err)
	}

	metrics.PastesCreated.Inc()
	return paste, nil
}

// Fetch читает запись как есть: без проверки доступности и без изменений
func (s *pasteService) Fetch(ctx context.Context, id string) (*models.Paste, error) {
	paste, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPasteNotFound) {
			return nil, ErrPasteNotFound
		}
		metrics.StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("failed to fetch paste: %w", err)
	}
	return paste, nil
}

// ConsumeView расходует один просмотр пасты в логический момент now
func (s *pasteService) ConsumeView(ctx context.Context, id string, now time.Time) (*models.Paste, error) {
	var (
		paste *models.Paste
		err   error
	)
	if s.updater != nil {
		paste, err = s.consumeViewAtomic(ctx, id, now)
	} else {
		paste, err = s.consumeView(ctx, id, now)
	}

	switch {
	case err == nil:
		metrics.PasteViews.WithLabelValues("served").Inc()
	case errors.Is(err, ErrPasteNotFound):
		metrics.PasteViews.WithLabelValues("not_found").Inc()
	default:
		metrics.PasteViews.WithLabelValues("error").Inc()
	}
	return paste, err
}

// consumeView чтение и запись двумя запросами (см. комментарий к pasteService)
func (s *pasteService) consumeView(ctx context.Context, id string, now time.Time) (*models.Paste, error) {
	paste, err := s.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if !paste.IsAvailable(now) {
		if paste.ExpiredAt(now) {
			s.evict(ctx, id)
		}
		return nil, ErrPasteNotFound
	}

	paste.ViewCount++

	ttl, alive := s.remainingTTL(paste)
	if !alive {
		// Логически паста жива, но физически её срок уже прошёл
		if err := s.store.Delete(ctx, id); err != nil {
			metrics.StoreErrors.WithLabelValues("delete").Inc()
			return nil, fmt.Errorf("failed to delete stale paste: %w", err)
		}
		metrics.LazyDeletions.Inc()
		s.logger.Debug("Stale paste deleted", zap.String("paste_id", id))
		return nil, ErrPasteNotFound
	}

	if err := s.store.Set(ctx, paste, ttl); err != nil {
		metrics.StoreErrors.WithLabelValues("set").Inc()
		return nil, fmt.Errorf("failed to persist view: %w", err)
	}

	return paste, nil
}

// consumeViewAtomic те же шаги внутри оптимистичной транзакции хранилища
func (s *pasteService) consumeViewAtomic(ctx context.Context, id string, now time.Time) (*models.Paste, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		var (
			result  *models.Paste
			deleted bool
		)

		err := s.updater.Update(ctx, id, func(current *models.Paste) (*models.Paste, time.Duration, error) {
			if !current.IsAvailable(now) {
				if current.ExpiredAt(now) {
					deleted = true
					return nil, 0, nil
				}
				return nil, 0, ErrPasteNotFound
			}

			next := *current
			next.ViewCount++

			ttl, alive := s.remainingTTL(&next)
			if !alive {
				deleted = true
				return nil, 0, nil
			}

			result = &next
			return result, ttl, nil
		})

		switch {
		case err == nil && deleted:
			metrics.LazyDeletions.Inc()
			s.logger.Debug("Expired paste deleted", zap.String("paste_id", id))
			return nil, ErrPasteNotFound
		case err == nil:
			return result, nil
		case errors.Is(err, ErrPasteNotFound), errors.Is(err, repository.ErrPasteNotFound):
			return nil, ErrPasteNotFound
		case errors.Is(err, repository.ErrTxConflict):
			s.logger.Debug("Concurrent paste update, retrying",
				zap.String("paste_id", id),
				zap.Int("attempt", attempt),
			)
			continue
		default:
			metrics.StoreErrors.WithLabelValues("update").Inc()
			return nil, fmt.Errorf("failed to consume view: %w", err)
		}
	}

	return nil, ErrConcurrentUpdate
}

// remainingTTL считает TTL для повторной записи по физическим часам, а не по логическому now:
// TTL в хранилище живёт в реальном времени независимо от переопределений в тестах.
// Возвращает false, если физический срок уже прошёл.
func (s *pasteService) remainingTTL(paste *models.Paste) (time.Duration, bool) {
	if paste.ExpiresAt == nil {
		return 0, true
	}

	remaining := paste.ExpiresAt.Sub(s.clock.Now())
	if remaining <= 0 {
		return 0, false
	}

	// Округление вверх до целых секунд
	seconds := (remaining + time.Second - 1) / time.Second
	return seconds * time.Second, true
}

// evict лениво удаляет истёкшую по времени пасту. Ошибка не влияет на ответ: паста уже недоступна.
func (s *pasteService) evict(ctx context.Context, id string) {
	if err := s.store.Delete(ctx, id); err != nil {
		metrics.StoreErrors.WithLabelValues("delete").Inc()
		s.logger.Warn("Failed to delete expired paste", zap.String("paste_id", id), zap.Error(err))
		return
	}
	metrics.LazyDeletions.Inc()
	s.logger.Debug("Expired paste deleted", zap.String("paste_id", id))
}

// Ping проверяет доступность хранилища
func (s *pasteService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
