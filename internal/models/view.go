package models

import (
	"time"
)

// ViewEvent событие успешного просмотра пасты для журнала аудита
type ViewEvent struct {
	PasteID   string
	IPAddress string
	UserAgent string
	Referer   string
	ViewedAt  time.Time
}

// View строка журнала просмотров в PostgreSQL
type View struct {
	ID        int64     `json:"id"`
	PasteID   string    `json:"paste_id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Referer   string    `json:"referer"`
	ViewedAt  time.Time `json:"viewed_at"`
}
