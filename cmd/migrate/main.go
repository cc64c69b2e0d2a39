package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envDSN         = "STOREFRONT_POSTGRES_DSN"
)

// schema — операции над схемой, которые нужны утилите.
type schema interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (int64, int, error)
	MigrationPlan(ctx context.Context) ([]postgres.MigrationInfo, error)
	Close() error
}

type openFunc func(ctx context.Context, dsn string) (schema, error)

func openPostgres(ctx context.Context, dsn string) (schema, error) {
	// Миграции выполняются последовательно, второе соединение не нужно.
	store, err := postgres.Open(ctx, dsn, postgres.WithMaxOpenConns(1))
	if err != nil {
		return nil, err
	}
	return store, nil
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr, openPostgres)
	cancel()
	os.Exit(code)
}

// run разбирает флаги, выполняет команду и возвращает код выхода процесса.
func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer, open openFunc) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	direction := fs.String("direction", "up", "migration direction: up|down|status|plan")
	steps := fs.Int("steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	dsn := fs.String("dsn", "", "PostgreSQL DSN (fallback: "+envDSN+")")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cmd := strings.ToLower(strings.TrimSpace(*direction))
	switch cmd {
	case "up", "down", "status", "plan":
	default:
		return fail(stderr, "unsupported direction: %s (use up|down|status|plan)", *direction)
	}

	target := strings.TrimSpace(*dsn)
	if target == "" {
		target = strings.TrimSpace(getenv(envDSN))
	}
	if target == "" {
		return fail(stderr, "%s (or -dsn) is required", envDSN)
	}

	store, err := open(ctx, target)
	if err != nil {
		return fail(stderr, "open postgres store: %v", err)
	}
	defer store.Close()

	if err := execute(ctx, store, cmd, *steps, stdout); err != nil {
		return fail(stderr, "%v", err)
	}
	return 0
}

func execute(ctx context.Context, store schema, cmd string, steps int, stdout io.Writer) error {
	switch cmd {
	case "up":
		if err := store.MigrateUp(ctx, steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
	case "down":
		if err := store.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
	case "plan":
		plan, err := store.MigrationPlan(ctx)
		if err != nil {
			return fmt.Errorf("migration plan failed: %w", err)
		}
		printPlan(stdout, plan)
		return nil
	}

	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	label := "migration status"
	if cmd != "status" {
		label = "migrate " + cmd + " ok"
	}
	_, _ = fmt.Fprintf(stdout, "%s: version=%d applied=%d\n", label, version, count)
	return nil
}

// printPlan выводит встроенные миграции с отметкой о применении.
func printPlan(w io.Writer, plan []postgres.MigrationInfo) {
	for _, m := range plan {
		state := "pending"
		if m.Applied {
			state = "applied"
		}
		_, _ = fmt.Fprintf(w, "%04d %-24s %s\n", m.Version, m.Name, state)
	}
}

func fail(w io.Writer, format string, args ...any) int {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
	return 1
}
