package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/sequence"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.GRPCAddr != ":50051" {
		t.Errorf("expected GRPCAddr :50051, got %s", cfg.GRPCAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("expected MetricsAddr :9090, got %s", cfg.MetricsAddr)
	}
	if cfg.StorageDriver != StorageDriverMemory {
		t.Errorf("expected StorageDriver %s, got %s", StorageDriverMemory, cfg.StorageDriver)
	}
	if !cfg.PostgresAutoMigrate {
		t.Error("expected PostgresAutoMigrate to be true")
	}
	if cfg.SagaCompensation != string(catalog.CompensationNone) {
		t.Errorf("expected no compensation by default, got %q", cfg.SagaCompensation)
	}
	if cfg.AllocatorMode != string(sequence.ModeOptimistic) {
		t.Errorf("expected optimistic allocator by default, got %q", cfg.AllocatorMode)
	}
	if cfg.AllocatorMaxAttempts != 1 {
		t.Errorf("expected single allocation attempt, got %d", cfg.AllocatorMaxAttempts)
	}
	if cfg.OrphanSweepInterval != 0 {
		t.Errorf("expected orphan sweeper to be disabled, got %s", cfg.OrphanSweepInterval)
	}
	if cfg.OrphanBatchSize <= 0 {
		t.Error("expected OrphanBatchSize to be > 0")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.StorageDriver = StorageDriverPostgres },
			wantErr: "postgres dsn is required",
		},
		{
			name: "postgres without pool",
			mutate: func(c *Config) {
				c.StorageDriver = StorageDriverPostgres
				c.PostgresDSN = "postgres://localhost/storefront"
				c.PostgresMaxConns = 0
			},
			wantErr: "postgres max conns",
		},
		{
			name:    "unsupported driver",
			mutate:  func(c *Config) { c.StorageDriver = "sqlite" },
			wantErr: "unsupported storage driver",
		},
		{
			name:    "unknown compensation",
			mutate:  func(c *Config) { c.SagaCompensation = "retry" },
			wantErr: "unknown compensation mode",
		},
		{
			name:    "unknown allocator mode",
			mutate:  func(c *Config) { c.AllocatorMode = "locked" },
			wantErr: "unknown allocator mode",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: "invalid log level",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.AllocatorMaxAttempts = 0 },
			wantErr: "allocator max attempts",
		},
		{
			name:    "negative duration",
			mutate:  func(c *Config) { c.OrphanGrace = -time.Second },
			wantErr: "durations must be non-negative",
		},
		{
			name:    "zero batch",
			mutate:  func(c *Config) { c.OrphanBatchSize = 0 },
			wantErr: "orphan batch size",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "sqlite"
	cfg.AllocatorMode = "locked"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "unsupported storage driver") || !strings.Contains(err.Error(), "unknown allocator mode") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_GRPC_ADDR":              "127.0.0.1:6000",
		"STOREFRONT_STORAGE_DRIVER":         StorageDriverPostgres,
		"STOREFRONT_POSTGRES_DSN":           " postgres://localhost/storefront ",
		"STOREFRONT_POSTGRES_AUTO_MIGRATE":  "false",
		"STOREFRONT_POSTGRES_MAX_CONNS":     "5",
		"STOREFRONT_SAGA_COMPENSATION":      string(catalog.CompensationRollback),
		"STOREFRONT_ALLOCATOR_MODE":         string(sequence.ModeSerialized),
		"STOREFRONT_ALLOCATOR_MAX_ATTEMPTS": "4",
		"STOREFRONT_ALLOCATOR_RETRY_DELAY":  "25ms",
		"STOREFRONT_ORPHAN_SWEEP_INTERVAL":  "1m",
		"STOREFRONT_ORPHAN_BATCH_SIZE":      "10",
		"STOREFRONT_KAFKA_BROKERS":          "k1:9092,k2:9092",
		"STOREFRONT_METRICS_ADDR":           "   ",
	}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}

	if cfg.GRPCAddr != "127.0.0.1:6000" {
		t.Errorf("unexpected GRPCAddr %s", cfg.GRPCAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("blank env value must keep default, got %q", cfg.MetricsAddr)
	}
	if cfg.PostgresDSN != "postgres://localhost/storefront" {
		t.Errorf("expected trimmed dsn, got %q", cfg.PostgresDSN)
	}
	if cfg.PostgresAutoMigrate {
		t.Error("expected PostgresAutoMigrate to be false")
	}
	if cfg.PostgresMaxConns != 5 {
		t.Errorf("unexpected PostgresMaxConns %d", cfg.PostgresMaxConns)
	}
	if cfg.SagaCompensation != string(catalog.CompensationRollback) || cfg.AllocatorMode != string(sequence.ModeSerialized) {
		t.Errorf("unexpected modes: %q %q", cfg.SagaCompensation, cfg.AllocatorMode)
	}
	if cfg.AllocatorMaxAttempts != 4 || cfg.AllocatorRetryDelay != 25*time.Millisecond {
		t.Errorf("unexpected retry settings: %d %s", cfg.AllocatorMaxAttempts, cfg.AllocatorRetryDelay)
	}
	if cfg.OrphanSweepInterval != time.Minute || cfg.OrphanBatchSize != 10 {
		t.Errorf("unexpected sweeper settings: %s %d", cfg.OrphanSweepInterval, cfg.OrphanBatchSize)
	}
	if got := cfg.Brokers(); len(got) != 2 || got[0] != "k1:9092" || got[1] != "k2:9092" {
		t.Errorf("unexpected brokers: %v", got)
	}
}

func TestConfig_ApplyEnvInvalidValues(t *testing.T) {
	for name, value := range map[string]string{
		"STOREFRONT_ALLOCATOR_RETRY_DELAY":  "soon",
		"STOREFRONT_ORPHAN_BATCH_SIZE":      "many",
		"STOREFRONT_POSTGRES_AUTO_MIGRATE":  "maybe",
		"STOREFRONT_ALLOCATOR_MAX_ATTEMPTS": "1.5",
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.applyEnv(func(key string) (string, bool) {
				if key == name {
					return value, true
				}
				return "", false
			})
			if err == nil || !strings.Contains(err.Error(), name) {
				t.Fatalf("expected parse error mentioning %s, got %v", name, err)
			}
		})
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	content := []byte(`
grpc_addr: "127.0.0.1:7000"
log_level: debug
allocator_mode: serialized
allocator_max_attempts: 3
allocator_retry_delay: 50ms
orphan_sweep_interval: 30s
kafka_brokers: "file:9092"
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("STOREFRONT_CONFIG_FILE", path)
	t.Setenv("STOREFRONT_KAFKA_BROKERS", "env:9092")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.GRPCAddr != "127.0.0.1:7000" || cfg.LogLevel != "debug" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.AllocatorMode != string(sequence.ModeSerialized) || cfg.AllocatorRetryDelay != 50*time.Millisecond {
		t.Errorf("allocator values not applied: %+v", cfg)
	}
	if cfg.OrphanSweepInterval != 30*time.Second {
		t.Errorf("expected sweep interval 30s, got %s", cfg.OrphanSweepInterval)
	}
	if cfg.KafkaBrokers != "env:9092" {
		t.Errorf("env must override file, got %q", cfg.KafkaBrokers)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("unset values must keep defaults, got %q", cfg.MetricsAddr)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("STOREFRONT_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
		if _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), "read config file") {
			t.Fatalf("expected read error, got %v", err)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		if err := os.WriteFile(path, []byte("grpc_addr: [unterminated"), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv("STOREFRONT_CONFIG_FILE", path)
		if _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), "parse config file") {
			t.Fatalf("expected parse error, got %v", err)
		}
	})

	t.Run("invalid result", func(t *testing.T) {
		t.Setenv("STOREFRONT_CONFIG_FILE", "")
		t.Setenv("STOREFRONT_SAGA_COMPENSATION", "undo")
		if _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), "unknown compensation mode") {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestConfig_RetryConfig(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.RetryConfig(); got != sequence.NoRetry() {
		t.Fatalf("expected NoRetry for a single attempt, got %+v", got)
	}

	cfg.AllocatorMaxAttempts = 5
	cfg.AllocatorRetryDelay = 10 * time.Millisecond
	got := cfg.RetryConfig()
	if got.MaxAttempts != 5 || got.InitialDelay != 10*time.Millisecond {
		t.Fatalf("unexpected retry config: %+v", got)
	}
	if got.BackoffFactor != sequence.DefaultRetryConfig().BackoffFactor {
		t.Fatalf("expected default backoff factor, got %v", got.BackoffFactor)
	}
}

func TestConfig_Brokers(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want int
	}{
		{name: "empty", raw: "", want: 0},
		{name: "single", raw: "localhost:9092", want: 1},
		{name: "with spaces", raw: "b1:9092, b2:9092 , ,b3:9092", want: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{KafkaBrokers: tc.raw}
			got := cfg.Brokers()
			if len(got) != tc.want {
				t.Fatalf("expected %d brokers, got %v", tc.want, got)
			}
			for _, b := range got {
				if strings.TrimSpace(b) != b || b == "" {
					t.Fatalf("broker %q is not trimmed", b)
				}
			}
		})
	}
}

func TestConfig_Comparison(t *testing.T) {
	cfg1 := DefaultConfig()
	cfg2 := DefaultConfig()

	if cfg1 != cfg2 {
		t.Error("two DefaultConfig instances should be equal")
	}

	cfg2.GRPCAddr = ":8080"
	if cfg1 == cfg2 {
		t.Error("modified config should not be equal to original")
	}
}
