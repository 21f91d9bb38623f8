package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SergeiKhy/pastebin/internal/config"
	"github.com/SergeiKhy/pastebin/internal/models"
	"github.com/SergeiKhy/pastebin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis поднимает Redis в контейнере и возвращает подключение к нему
func setupRedis(t *testing.T) *repository.RedisDB {
	t.Helper()
	ctx := t.Context()

	container, err := redis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	db, err := repository.NewRedisClient(config.RedisConfig{Host: host, Port: port.Port()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

// setupPostgres поднимает PostgreSQL в контейнере и применяет схему журнала
func setupPostgres(t *testing.T) *repository.PostgresDB {
	t.Helper()
	ctx := t.Context()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("pastebin"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := repository.NewPostgresDB(ctx, config.DBConfig{
		Host:     host,
		Port:     port.Port(),
		User:     "user",
		Password: "password",
		Name:     "pastebin",
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	// Повторная миграция не должна падать
	require.NoError(t, db.Migrate(ctx))

	return db
}

func newPaste(id string, maxViews *int) *models.Paste {
	return &models.Paste{
		ID:        id,
		Content:   "integration",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		MaxViews:  maxViews,
	}
}

// TestIntegration_RedisPasteStore проверяет базовые операции хранилища
func TestIntegration_RedisPasteStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	db := setupRedis(t)
	store := repository.NewRedisPasteStore(db)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	t.Run("запись и чтение", func(t *testing.T) {
		paste := newPaste("roundtrip", nil)
		expires := paste.CreatedAt.Add(time.Minute)
		paste.ExpiresAt = &expires

		require.NoError(t, store.Set(ctx, paste, time.Minute))

		got, err := store.Get(ctx, paste.ID)
		require.NoError(t, err)
		assert.Equal(t, paste, got)

		ttl, err := db.Client.TTL(ctx, "paste:roundtrip").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 50*time.Second)
	})

	t.Run("запись без TTL", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, newPaste("forever", nil), 0))

		ttl, err := db.Client.TTL(ctx, "paste:forever").Result()
		require.NoError(t, err)
		assert.Equal(t, time.Duration(-1), ttl)
	})

	t.Run("вытеснение по TTL", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, newPaste("short", nil), time.Second))

		assert.Eventually(t, func() bool {
			_, err := store.Get(ctx, "short")
			return errors.Is(err, repository.ErrPasteNotFound)
		}, 5*time.Second, 100*time.Millisecond)
	})

	t.Run("удаление", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, newPaste("gone", nil), 0))
		require.NoError(t, store.Delete(ctx, "gone"))

		_, err := store.Get(ctx, "gone")
		assert.ErrorIs(t, err, repository.ErrPasteNotFound)

		// Удаление отсутствующего ключа не ошибка
		assert.NoError(t, store.Delete(ctx, "gone"))
	})

	t.Run("повреждённая запись", func(t *testing.T) {
		require.NoError(t, db.Client.Set(ctx, "paste:corrupt", `{"id":"","content":"x"}`, 0).Err())

		_, err := store.Get(ctx, "corrupt")
		assert.ErrorIs(t, err, models.ErrCorruptRecord)
	})
}

// TestIntegration_RedisPasteStore_Update проверяет оптимистичные транзакции
func TestIntegration_RedisPasteStore_Update(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	db := setupRedis(t)
	store := repository.NewRedisPasteStore(db)
	ctx := context.Background()

	t.Run("удаление через Update", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, newPaste("drop", nil), 0))

		err := store.Update(ctx, "drop", func(current *models.Paste) (*models.Paste, time.Duration, error) {
			return nil, 0, nil
		})
		require.NoError(t, err)

		_, err = store.Get(ctx, "drop")
		assert.ErrorIs(t, err, repository.ErrPasteNotFound)
	})

	t.Run("отсутствующий ключ", func(t *testing.T) {
		err := store.Update(ctx, "missing", func(current *models.Paste) (*models.Paste, time.Duration, error) {
			t.Fatal("fn не должна вызываться")
			return nil, 0, nil
		})
		assert.ErrorIs(t, err, repository.ErrPasteNotFound)
	})

	t.Run("конфликт при изменении ключа", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, newPaste("race", nil), 0))

		err := store.Update(ctx, "race", func(current *models.Paste) (*models.Paste, time.Duration, error) {
			// Параллельный писатель меняет ключ между WATCH и EXEC
			other := *current
			other.ViewCount = 100
			require.NoError(t, store.Set(ctx, &other, 0))

			next := *current
			next.ViewCount++
			return &next, 0, nil
		})
		assert.ErrorIs(t, err, repository.ErrTxConflict)

		got, err := store.Get(ctx, "race")
		require.NoError(t, err)
		assert.Equal(t, 100, got.ViewCount)
	})

	t.Run("параллельные инкременты с повтором", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, newPaste("counter", nil), 0))

		const workers = 20
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					err := store.Update(ctx, "counter", func(current *models.Paste) (*models.Paste, time.Duration, error) {
						next := *current
						next.ViewCount++
						return &next, 0, nil
					})
					if !errors.Is(err, repository.ErrTxConflict) {
						assert.NoError(t, err)
						return
					}
				}
			}()
		}
		wg.Wait()

		got, err := store.Get(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, workers, got.ViewCount)
	})
}

// TestIntegration_ViewRepository проверяет журнал просмотров в PostgreSQL
func TestIntegration_ViewRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	db := setupPostgres(t)
	repo := repository.NewViewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	old := &models.View{PasteID: "abc", IPAddress: "10.0.0.1", UserAgent: "curl", ViewedAt: now.Add(-48 * time.Hour)}
	fresh := &models.View{PasteID: "abc", IPAddress: "10.0.0.2", ViewedAt: now}

	require.NoError(t, repo.RecordView(ctx, old))
	require.NoError(t, repo.RecordView(ctx, fresh))
	assert.NotZero(t, old.ID)
	assert.Greater(t, fresh.ID, old.ID)

	removed, err := repo.PurgeBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	var remaining int
	require.NoError(t, db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM paste_views WHERE paste_id = $1`, "abc").Scan(&remaining))
	assert.Equal(t, 1, remaining)
}
