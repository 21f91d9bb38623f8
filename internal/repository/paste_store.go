package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/pastebin/internal/models"
	"github.com/redis/go-redis/v9"
)

var (
	ErrPasteNotFound = errors.New("paste not found")
	// ErrTxConflict запись изменилась между чтением и записью в оптимистичной транзакции
	ErrTxConflict = errors.New("paste changed concurrently")
)

const pasteKeyPrefix = "paste:"

// PasteStore хранилище паст с вытеснением по TTL.
// ttl == 0 означает запись без срока жизни.
type PasteStore interface {
	Set(ctx context.Context, paste *models.Paste, ttl time.Duration) error
	Get(ctx context.Context, id string) (*models.Paste, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// UpdateFunc получает текущую запись и возвращает новую вместе с TTL.
// next == nil означает удаление записи.
type UpdateFunc func(current *models.Paste) (next *models.Paste, ttl time.Duration, err error)

// PasteUpdater хранилище, поддерживающее атомарный read-modify-write
type PasteUpdater interface {
	Update(ctx context.Context, id string, fn UpdateFunc) error
}

// RedisPasteStore реализует PasteStore и PasteUpdater на Redis (SET EX / GET / DEL / WATCH)
type RedisPasteStore struct {
	redis *RedisDB
}

// NewRedisPasteStore создаёт хранилище паст поверх Redis
func NewRedisPasteStore(redis *RedisDB) *RedisPasteStore {
	return &RedisPasteStore{redis: redis}
}

func (r *RedisPasteStore) Set(ctx context.Context, paste *models.Paste, ttl time.Duration) error {
	data, err := models.EncodePaste(paste)
	if err != nil {
		return err
	}

	if err := r.redis.Client.Set(ctx, r.key(paste.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store paste: %w", err)
	}
	return nil
}

func (r *RedisPasteStore) Get(ctx context.Context, id string) (*models.Paste, error) {
	data, err := r.redis.Client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPasteNotFound
		}
		return nil, fmt.Errorf("failed to get paste: %w", err)
	}

	return models.DecodePaste(data)
}

func (r *RedisPasteStore) Delete(ctx context.Context, id string) error {
	if err := r.redis.Client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete paste: %w", err)
	}
	return nil
}

func (r *RedisPasteStore) Ping(ctx context.Context) error {
	return r.redis.Client.Ping(ctx).Err()
}

// Update выполняет fn под WATCH: если ключ изменился до EXEC, возвращается ErrTxConflict
func (r *RedisPasteStore) Update(ctx context.Context, id string, fn UpdateFunc) error {
	key := r.key(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrPasteNotFound
			}
			return fmt.Errorf("failed to get paste: %w", err)
		}

		current, err := models.DecodePaste(data)
		if err != nil {
			return err
		}

		next, ttl, err := fn(current)
		if err != nil {
			return err
		}

		var payload []byte
		if next != nil {
			if payload, err = models.EncodePaste(next); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		return err
	}

	err := r.redis.Client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrTxConflict
	}
	return err
}

func (r *RedisPasteStore) key(id string) string {
	return pasteKeyPrefix + id
}
