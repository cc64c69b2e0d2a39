package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type objectStore struct {
	db      *sql.DB
	baseURL string
}

// NewObjectStore создаёт хранилище бинарных объектов в таблице objects.
// URL объекта — baseURL + "/" + ключ; раздачу по нему обеспечивает внешний прокси.
func NewObjectStore(store *Store, baseURL string) domain.ObjectStore {
	return &objectStore{db: store.DB(), baseURL: strings.TrimRight(baseURL, "/")}
}

func (r *objectStore) Put(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("object key is required")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO objects (key, content, size_bytes)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET content = EXCLUDED.content, size_bytes = EXCLUDED.size_bytes, updated_at = NOW()
	`, key, data, len(data)); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (r *objectStore) ResolveURL(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE key = $1`, key).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", domain.ErrObjectNotFound, key)
		}
		return "", fmt.Errorf("resolve object: %w", err)
	}
	return r.baseURL + "/" + key, nil
}

func (r *objectStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM objects WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

var _ domain.ObjectStore = (*objectStore)(nil)
