package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// notifyChannel — канал pg_notify, в который триггер пишет имя изменённой коллекции.
const notifyChannel = "documents_changed"

// documentStore хранит документы коллекций в одной таблице с JSONB-полями.
type documentStore struct {
	store  *Store
	db     *sql.DB
	logger *log.Entry
}

// NewDocumentStore создаёт PostgreSQL-реализацию DocumentStore.
func NewDocumentStore(store *Store, logger *log.Entry) domain.DocumentStore {
	if logger == nil {
		logger = log.New().WithField("component", "postgres-documents")
	}
	return &documentStore{store: store, db: store.DB(), logger: logger}
}

func (r *documentStore) Find(ctx context.Context, collection string, q domain.Query) ([]domain.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query, args, err := buildFindQuery(collection, q)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, query, args...)
}

func (r *documentStore) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode document fields: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	id := uuid.NewString()
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, fields)
		VALUES ($1, $2, $3::jsonb)
	`, collection, id, string(payload)); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (r *documentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document fields: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET fields = fields || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`, collection, id, string(payload))
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrRecordNotFound, collection, id)
	}
	return nil
}

func (r *documentStore) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = $1 AND id = $2
	`, collection, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Subscribe слушает уведомления триггера и на каждое изменение коллекции
// перечитывает её целиком. Первый снимок отправляется сразу.
func (r *documentStore) Subscribe(ctx context.Context, collection string) (domain.Subscription, error) {
	conn, err := r.store.listen(ctx, notifyChannel)
	if err != nil {
		return nil, err
	}

	initial, err := r.Find(ctx, collection, domain.Query{})
	if err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("load initial snapshot: %w", err)
	}

	sub := newListenSubscription(ctx, conn, collection, r.logger.WithField("collection", collection),
		func(ctx context.Context) ([]domain.Record, error) {
			return r.Find(ctx, collection, domain.Query{})
		})
	sub.deliver(domain.SnapshotEvent{Records: initial})
	go sub.run()

	return sub, nil
}

func (r *documentStore) query(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()

	records := make([]domain.Record, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		records = append(records, domain.Record{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return records, nil
}

// buildFindQuery переводит Query в SQL над JSONB.
// Числа в JSONB сравниваются численно, поэтому 7 и 7.0 совпадают так же, как в памяти.
func buildFindQuery(collection string, q domain.Query) (string, []any, error) {
	var sb strings.Builder
	args := []any{collection}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	sb.WriteString("SELECT id, fields FROM documents WHERE collection = $1")
	for _, f := range q.Filters {
		value, err := json.Marshal(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
		}
		key := next(f.Field)
		sb.WriteString(" AND fields -> " + key + "::text = " + next(string(value)) + "::jsonb")
	}

	if q.OrderBy != "" {
		key := next(q.OrderBy)
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		sb.WriteString(" AND (fields -> " + key + "::text) IS NOT NULL")
		sb.WriteString(" ORDER BY fields -> " + key + "::text " + direction + ", seq ASC")
	} else {
		sb.WriteString(" ORDER BY seq ASC")
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + next(q.Limit))
	}
	return sb.String(), args, nil
}

// decodeFields сохраняет числа как json.Number, чтобы целые не превращались в float.
func decodeFields(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	fields := make(map[string]any)
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

var _ domain.DocumentStore = (*documentStore)(nil)
