package postgres

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	migrationsGlob    = "sql/migrations/*.sql"
	migrationLockKey  = int64(52177301)
	migrationTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	lockTimeout = 5 * time.Second
)

var (
	//go:embed sql/migrations/*.sql
	migrationsFS embed.FS

	migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

	embeddedMigrations = sync.OnceValues(func() ([]migration, error) {
		return loadMigrationsFromFS(migrationsFS)
	})
)

type migrationDirection string

const (
	migrationUp   migrationDirection = "up"
	migrationDown migrationDirection = "down"
)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

func (m migration) String() string {
	return fmt.Sprintf("%d_%s", m.Version, m.Name)
}

// migrationStep — одна миграция в одном направлении.
type migrationStep struct {
	migration
	direction migrationDirection
}

// MigrationInfo описывает встроенную миграцию и факт её применения.
type MigrationInfo struct {
	Version int64
	Name    string
	Applied bool
}

// MigrateUp применяет up-миграции; steps=0 применяет все ожидающие.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.migrate(ctx, migrationUp, steps)
}

// MigrateDown откатывает последние steps миграций; steps<=0 означает один шаг.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.migrate(ctx, migrationDown, steps)
}

// MigrationStatus возвращает максимальную применённую версию и число применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	var applied []int64
	err := s.withMigrationConn(ctx, false, func(conn *sql.Conn) error {
		var err error
		applied, err = loadAppliedVersions(ctx, conn)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	if len(applied) == 0 {
		return 0, 0, nil
	}
	return applied[len(applied)-1], len(applied), nil
}

// MigrationPlan возвращает все встроенные миграции по возрастанию версии с отметкой о применении.
func (s *Store) MigrationPlan(ctx context.Context) ([]MigrationInfo, error) {
	migrations, err := embeddedMigrations()
	if err != nil {
		return nil, err
	}

	var applied []int64
	err = s.withMigrationConn(ctx, false, func(conn *sql.Conn) error {
		var err error
		applied, err = loadAppliedVersions(ctx, conn)
		return err
	})
	if err != nil {
		return nil, err
	}

	plan := make([]MigrationInfo, 0, len(migrations))
	for _, m := range migrations {
		_, found := slices.BinarySearch(applied, m.Version)
		plan = append(plan, MigrationInfo{Version: m.Version, Name: m.Name, Applied: found})
	}
	return plan, nil
}

func (s *Store) migrate(ctx context.Context, direction migrationDirection, steps int) error {
	if direction != migrationUp && direction != migrationDown {
		return fmt.Errorf("unsupported migration direction: %s", direction)
	}
	migrations, err := embeddedMigrations()
	if err != nil {
		return err
	}

	return s.withMigrationConn(ctx, true, func(conn *sql.Conn) error {
		applied, err := loadAppliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		var plan []migrationStep
		if direction == migrationUp {
			plan = planUp(migrations, applied, steps)
		} else if plan, err = planDown(migrations, applied, steps); err != nil {
			return err
		}

		for _, step := range plan {
			if err := execStep(ctx, conn, step); err != nil {
				return err
			}
		}
		return nil
	})
}

// withMigrationConn выполняет fn на выделенном соединении с существующей таблицей schema_migrations.
// При locked соединение держит advisory lock, чтобы параллельные миграторы не пересекались.
func (s *Store) withMigrationConn(ctx context.Context, locked bool, fn func(*sql.Conn) error) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	if locked {
		lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
		defer cancel()
		if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		defer func() {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockKey)
		}()
	}

	if _, err := conn.ExecContext(ctx, migrationTableDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return fn(conn)
}

// planUp выбирает неприменённые миграции по возрастанию версии; steps=0 снимает ограничение.
func planUp(migrations []migration, applied []int64, steps int) []migrationStep {
	var plan []migrationStep
	for _, m := range migrations {
		if _, found := slices.BinarySearch(applied, m.Version); found {
			continue
		}
		plan = append(plan, migrationStep{migration: m, direction: migrationUp})
		if steps > 0 && len(plan) == steps {
			break
		}
	}
	return plan
}

// planDown выбирает steps последних применённых миграций от новых к старым.
// Применённая версия без встроенных файлов — ошибка: откатить её нечем.
func planDown(migrations []migration, applied []int64, steps int) ([]migrationStep, error) {
	byVersion := make(map[int64]migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	var plan []migrationStep
	for i := len(applied) - 1; i >= 0 && len(plan) < steps; i-- {
		m, ok := byVersion[applied[i]]
		if !ok {
			return nil, fmt.Errorf("cannot rollback unknown migration version %d", applied[i])
		}
		plan = append(plan, migrationStep{migration: m, direction: migrationDown})
	}
	return plan, nil
}

// execStep выполняет миграцию и правку schema_migrations в одной транзакции.
func execStep(ctx context.Context, conn *sql.Conn, step migrationStep) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx (%s %s): %w", step.direction, step, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	body, record, args := step.UpSQL, `INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, NOW())`, []any{step.Version, step.Name}
	if step.direction == migrationDown {
		body, record, args = step.DownSQL, `DELETE FROM schema_migrations WHERE version = $1`, []any{step.Version}
	}

	if _, err = tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("execute %s migration %s: %w", step.direction, step, err)
	}
	if _, err = tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("record %s migration %s: %w", step.direction, step, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %s: %w", step.direction, step, err)
	}
	return nil
}

// loadAppliedVersions возвращает применённые версии по возрастанию.
func loadAppliedVersions(ctx context.Context, conn *sql.Conn) ([]int64, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return versions, nil
}

// loadMigrationsFromFS читает пары NNNN_name.up.sql / NNNN_name.down.sql и сортирует их по версии.
func loadMigrationsFromFS(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, migrationsGlob)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*migration)
	for _, file := range files {
		base := path.Base(file)
		matches := migrationFilePattern.FindStringSubmatch(base)
		if matches == nil {
			return nil, fmt.Errorf("invalid migration file name: %s", base)
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version from %s: %w", base, err)
		}
		name, direction := matches[2], migrationDirection(matches[3])

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", file, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if m.Name != name {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, m.Name, name)
		}

		target := &m.UpSQL
		if direction == migrationDown {
			target = &m.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", direction, version)
		}
		*target = body
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b migration) int {
		return cmp.Compare(a.Version, b.Version)
	})
	return migrations, nil
}
