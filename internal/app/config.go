package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/sequence"
)

const (
	// StorageDriverMemory — хранилища в памяти процесса (разработка, тесты).
	StorageDriverMemory = "memory"
	// StorageDriverPostgres — документы и объекты в PostgreSQL.
	StorageDriverPostgres = "postgres"

	envPrefix     = "STOREFRONT_"
	envConfigFile = envPrefix + "CONFIG_FILE"
)

// Config описывает настройки запуска сервиса каталога.
// Структура сравнима по значению, поэтому списки (брокеры) хранятся строкой.
type Config struct {
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`

	StorageDriver       string `yaml:"storage_driver"`
	PostgresDSN         string `yaml:"postgres_dsn"`
	PostgresAutoMigrate bool   `yaml:"postgres_auto_migrate"`
	PostgresMaxConns    int    `yaml:"postgres_max_conns"`
	ObjectBaseURL       string `yaml:"object_base_url"`

	SagaCompensation string `yaml:"saga_compensation"`

	AllocatorMode        string        `yaml:"allocator_mode"`
	AllocatorMaxAttempts int           `yaml:"allocator_max_attempts"`
	AllocatorRetryDelay  time.Duration `yaml:"allocator_retry_delay"`

	// OrphanSweepInterval == 0 отключает очистку сирот.
	OrphanSweepInterval time.Duration `yaml:"orphan_sweep_interval"`
	OrphanGrace         time.Duration `yaml:"orphan_grace"`
	OrphanBatchSize     int           `yaml:"orphan_batch_size"`

	// KafkaBrokers — список брокеров через запятую; пусто — события не публикуются.
	KafkaBrokers  string `yaml:"kafka_brokers"`
	KafkaClientID string `yaml:"kafka_client_id"`
}

// DefaultConfig возвращает базовую конфигурацию: память, без компенсаций, оптимистичный аллокатор.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:             ":50051",
		MetricsAddr:          ":9090",
		LogLevel:             log.InfoLevel.String(),
		StorageDriver:        StorageDriverMemory,
		PostgresAutoMigrate:  true,
		PostgresMaxConns:     25,
		SagaCompensation:     string(catalog.CompensationNone),
		AllocatorMode:        string(sequence.ModeOptimistic),
		AllocatorMaxAttempts: 1,
		AllocatorRetryDelay:  100 * time.Millisecond,
		OrphanGrace:          15 * time.Minute,
		OrphanBatchSize:      100,
		KafkaClientID:        "storefront-catalog",
	}
}

// LoadConfig собирает конфигурацию: значения по умолчанию, затем YAML-файл
// из STOREFRONT_CONFIG_FILE (если задан), затем переменные окружения STOREFRONT_*.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := strings.TrimSpace(os.Getenv(envConfigFile)); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	stringVars := map[string]*string{
		"GRPC_ADDR":         &c.GRPCAddr,
		"METRICS_ADDR":      &c.MetricsAddr,
		"LOG_LEVEL":         &c.LogLevel,
		"STORAGE_DRIVER":    &c.StorageDriver,
		"POSTGRES_DSN":      &c.PostgresDSN,
		"OBJECT_BASE_URL":   &c.ObjectBaseURL,
		"SAGA_COMPENSATION": &c.SagaCompensation,
		"ALLOCATOR_MODE":    &c.AllocatorMode,
		"KAFKA_BROKERS":     &c.KafkaBrokers,
		"KAFKA_CLIENT_ID":   &c.KafkaClientID,
	}
	for name, dst := range stringVars {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	durationVars := map[string]*time.Duration{
		"ALLOCATOR_RETRY_DELAY": &c.AllocatorRetryDelay,
		"ORPHAN_SWEEP_INTERVAL": &c.OrphanSweepInterval,
		"ORPHAN_GRACE":          &c.OrphanGrace,
	}
	for name, dst := range durationVars {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parse %s%s: %w", envPrefix, name, err)
			}
			*dst = d
		}
	}

	intVars := map[string]*int{
		"ALLOCATOR_MAX_ATTEMPTS": &c.AllocatorMaxAttempts,
		"ORPHAN_BATCH_SIZE":      &c.OrphanBatchSize,
		"POSTGRES_MAX_CONNS":     &c.PostgresMaxConns,
	}
	for name, dst := range intVars {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("parse %s%s: %w", envPrefix, name, err)
			}
			*dst = n
		}
	}

	if v, ok := get("POSTGRES_AUTO_MIGRATE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %sPOSTGRES_AUTO_MIGRATE: %w", envPrefix, err)
		}
		c.PostgresAutoMigrate = b
	}
	return nil
}

// Validate проверяет перечислимые значения и обязательные параметры.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
		if c.PostgresMaxConns < 1 {
			errs = append(errs, errors.New("postgres max conns must be >= 1"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver: %q", c.StorageDriver))
	}
	if _, err := catalog.ParseCompensationMode(c.SagaCompensation); err != nil {
		errs = append(errs, err)
	}
	if _, err := sequence.ParseMode(c.AllocatorMode); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level: %w", err))
	}
	if c.AllocatorMaxAttempts < 1 {
		errs = append(errs, errors.New("allocator max attempts must be >= 1"))
	}
	if c.AllocatorRetryDelay < 0 || c.OrphanSweepInterval < 0 || c.OrphanGrace < 0 {
		errs = append(errs, errors.New("durations must be non-negative"))
	}
	if c.OrphanBatchSize < 1 {
		errs = append(errs, errors.New("orphan batch size must be >= 1"))
	}

	return errors.Join(errs...)
}

// RetryConfig строит конфигурацию повторов аллокатора.
func (c Config) RetryConfig() sequence.RetryConfig {
	if c.AllocatorMaxAttempts <= 1 {
		return sequence.NoRetry()
	}
	cfg := sequence.DefaultRetryConfig()
	cfg.MaxAttempts = c.AllocatorMaxAttempts
	cfg.InitialDelay = c.AllocatorRetryDelay
	return cfg
}

// ProducerConfig строит конфигурацию Kafka producer'а событий каталога.
func (c Config) ProducerConfig() kafka.ProducerConfig {
	cfg := kafka.DefaultProducerConfig()
	if id := strings.TrimSpace(c.KafkaClientID); id != "" {
		cfg.ClientID = id
	}
	return cfg
}

// Brokers возвращает список брокеров Kafka без пустых элементов.
func (c Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
