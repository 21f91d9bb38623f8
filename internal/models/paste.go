package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCorruptRecord возвращается, если сохранённая запись не проходит проверку при декодировании
var ErrCorruptRecord = errors.New("corrupt paste record")

// ISOTimeLayout формат expires_at в публичном ответе: UTC с миллисекундами
const ISOTimeLayout = "2006-01-02T15:04:05.000Z"

// Paste запись пасты в хранилище
type Paste struct {
	ID        string
	Content   string
	CreatedAt time.Time
	ExpiresAt *time.Time // nil - без ограничения по времени
	MaxViews  *int       // nil - без ограничения по просмотрам
	ViewCount int
}

// CreatePasteInput входные данные для создания пасты (уже провалидированные)
type CreatePasteInput struct {
	Content    string
	TTLSeconds *int
	MaxViews   *int
}

// PasteResult единственное представление пасты, которое видит клиент
type PasteResult struct {
	Content        string  `json:"content"`
	RemainingViews *int    `json:"remaining_views"`
	ExpiresAt      *string `json:"expires_at"`
}

// IsAvailable проверяет, доступна ли паста в момент now.
// Момент now == ExpiresAt уже считается истёкшим.
func (p *Paste) IsAvailable(now time.Time) bool {
	if p.ExpiresAt != nil && !now.Before(*p.ExpiresAt) {
		return false
	}
	if p.MaxViews != nil && p.ViewCount >= *p.MaxViews {
		return false
	}
	return true
}

// ExpiredAt сообщает, истёк ли срок жизни пасты к моменту now (без учёта просмотров)
func (p *Paste) ExpiredAt(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// ToPublicResult проецирует запись в публичный ответ.
// ViewCount и CreatedAt наружу не отдаются.
func (p *Paste) ToPublicResult() PasteResult {
	result := PasteResult{Content: p.Content}

	if p.MaxViews != nil {
		remaining := max(0, *p.MaxViews-p.ViewCount)
		result.RemainingViews = &remaining
	}

	if p.ExpiresAt != nil {
		formatted := p.ExpiresAt.UTC().Format(ISOTimeLayout)
		result.ExpiresAt = &formatted
	}

	return result
}

// pasteRecord каноническое представление записи в Redis: время в миллисекундах с эпохи
type pasteRecord struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt *int64 `json:"expires_at"`
	MaxViews  *int   `json:"max_views"`
	ViewCount int    `json:"view_count"`
}

// EncodePaste сериализует пасту в каноническое JSON-представление
func EncodePaste(p *Paste) ([]byte, error) {
	rec := pasteRecord{
		ID:        p.ID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt.UnixMilli(),
		MaxViews:  p.MaxViews,
		ViewCount: p.ViewCount,
	}
	if p.ExpiresAt != nil {
		ms := p.ExpiresAt.UnixMilli()
		rec.ExpiresAt = &ms
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal paste: %w", err)
	}
	return data, nil
}

// DecodePaste восстанавливает пасту из канонического JSON-представления
func DecodePaste(data []byte) (*Paste, error) {
	var rec pasteRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal paste: %w", err)
	}

	if rec.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrCorruptRecord)
	}
	if rec.ViewCount < 0 {
		return nil, fmt.Errorf("%w: negative view_count", ErrCorruptRecord)
	}

	p := &Paste{
		ID:        rec.ID,
		Content:   rec.Content,
		CreatedAt: time.UnixMilli(rec.CreatedAt).UTC(),
		MaxViews:  rec.MaxViews,
		ViewCount: rec.ViewCount,
	}
	if rec.ExpiresAt != nil {
		t := time.UnixMilli(*rec.ExpiresAt).UTC()
		p.ExpiresAt = &t
	}

	return p, nil
}
