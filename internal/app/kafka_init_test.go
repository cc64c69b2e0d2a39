package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitKafkaProducer(t *testing.T) {
	logger := log.WithField("test", "kafka")

	tests := []struct {
		name    string
		brokers string
		wantErr bool
	}{
		{name: "no brokers disables events", brokers: ""},
		{name: "blank brokers disable events", brokers: " , "},
		{name: "unreachable broker", brokers: "invalid-broker:9999", wantErr: true},
		{name: "unreachable broker list", brokers: "broker1:9092, broker2:9092", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.KafkaBrokers = tt.brokers

			producer, err := initKafkaProducer(cfg, logger)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if producer != nil {
				t.Fatal("expected nil producer")
			}
		})
	}
}

func TestConfig_ProducerConfig(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ProducerConfig().ClientID; got != "storefront-catalog" {
		t.Fatalf("unexpected default client id %q", got)
	}

	cfg.KafkaClientID = "  "
	if got := cfg.ProducerConfig().ClientID; got != "storefront" {
		t.Fatalf("blank client id must fall back to library default, got %q", got)
	}
}

func TestCloseKafka(t *testing.T) {
	logger := log.WithField("test", "kafka")
	closeKafka(nil, logger)

	cfg := DefaultConfig()
	cfg.KafkaBrokers = "localhost:9092"
	producer, err := initKafkaProducer(cfg, logger)
	if err != nil {
		t.Skipf("kafka is not available for integration test: %v", err)
	}
	closeKafka(producer, logger)
}
