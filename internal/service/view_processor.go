package service

import (
	"context"
	"sync"
	"time"

	"github.com/SergeiKhy/pastebin/internal/metrics"
	"github.com/SergeiKhy/pastebin/internal/models"
	"github.com/SergeiKhy/pastebin/internal/repository"
	"go.uber.org/zap"
)

// Константы worker pool
const (
	defaultWorkerCount   = 3    // Количество воркеров
	defaultChannelBuffer = 1000 // Размер буфера канала
	maxRetries           = 3    // Максимальное количество попыток записи
)

// ViewProcessor асинхронный журнал просмотров паст
type ViewProcessor interface {
	Start()
	Stop()
	RecordView(ctx context.Context, event *models.ViewEvent) error
}

// viewProcessor реализация журнала просмотров на Worker Pool
type viewProcessor struct {
	viewRepo    repository.ViewRepository
	logger      *zap.Logger
	viewChannel chan *models.ViewEvent
	workerCount int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewViewProcessor создаёт новый экземпляр процессора просмотров
func NewViewProcessor(viewRepo repository.ViewRepository, logger *zap.Logger) ViewProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &viewProcessor{
		viewRepo:    viewRepo,
		logger:      logger,
		viewChannel: make(chan *models.ViewEvent, defaultChannelBuffer),
		workerCount: defaultWorkerCount,
	}
}

// Start запускает worker pool
func (p *viewProcessor) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.logger.Info("Запуск воркеров журнала просмотров", zap.Int("count", p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop останавливает воркеров; события, оставшиеся в буфере, дописываются до выхода
func (p *viewProcessor) Stop() {
	p.logger.Info("Остановка журнала просмотров...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("Журнал просмотров остановлен")
}

// worker обрабатывает события просмотров из канала
func (p *viewProcessor) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Воркер журнала запущен", zap.Int("id", id))

	for {
		select {
		case <-p.ctx.Done():
			p.drain()
			p.logger.Debug("Воркер журнала остановлен", zap.Int("id", id))
			return

		case event := <-p.viewChannel:
			p.processView(context.Background(), event)
		}
	}
}

// drain дописывает то, что успело попасть в буфер до остановки
func (p *viewProcessor) drain() {
	for {
		select {
		case event := <-p.viewChannel:
			p.processView(context.Background(), event)
		default:
			return
		}
	}
}

// processView записывает одно событие с retry логикой
func (p *viewProcessor) processView(parent context.Context, event *models.ViewEvent) {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	view := &models.View{
		PasteID:   event.PasteID,
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
		Referer:   event.Referer,
		ViewedAt:  event.ViewedAt,
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = p.viewRepo.RecordView(ctx, view); err == nil {
			return
		}
		if i < maxRetries-1 {
			p.logger.Debug("Повторная попытка записи просмотра",
				zap.String("paste_id", event.PasteID),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}

	p.logger.Error("Не удалось записать просмотр после всех попыток",
		zap.String("paste_id", event.PasteID),
		zap.Error(err),
	)
}

// RecordView отправляет событие в worker pool (неблокирующая операция)
func (p *viewProcessor) RecordView(ctx context.Context, event *models.ViewEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.viewChannel <- event:
		return nil
	default:
		// Канал заполнен: теряем событие, но не задерживаем ответ
		metrics.ViewEventsDropped.Inc()
		p.logger.Warn("Буфер журнала просмотров заполнен, событие потеряно",
			zap.String("paste_id", event.PasteID),
		)
		return nil
	}
}

// NopViewProcessor используется, когда журнал просмотров выключен
type NopViewProcessor struct{}

func (NopViewProcessor) Start() {}
func (NopViewProcessor) Stop()  {}
func (NopViewProcessor) RecordView(context.Context, *models.ViewEvent) error {
	return nil
}
