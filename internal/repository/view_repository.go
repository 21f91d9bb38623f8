package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/pastebin/internal/models"
)

// ViewRepository журнал успешных просмотров паст
type ViewRepository interface {
	RecordView(ctx context.Context, view *models.View) error
	PurgeBefore(ctx context.Context, before time.Time) (int64, error)
}

type viewRepository struct {
	db *PostgresDB
}

func NewViewRepository(db *PostgresDB) ViewRepository {
	return &viewRepository{db: db}
}

func (r *viewRepository) RecordView(ctx context.Context, view *models.View) error {
	query := `
		INSERT INTO paste_views (paste_id, ip_address, user_agent, referer, viewed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		view.PasteID,
		view.IPAddress,
		view.UserAgent,
		view.Referer,
		view.ViewedAt,
	).Scan(&view.ID)

	if err != nil {
		return fmt.Errorf("failed to record view: %w", err)
	}

	return nil
}

// PurgeBefore удаляет записи журнала старше before и возвращает их количество
func (r *viewRepository) PurgeBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM paste_views WHERE viewed_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge views: %w", err)
	}

	return result.RowsAffected(), nil
}
