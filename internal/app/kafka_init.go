package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// initKafkaProducer подключает producer событий, если в конфигурации заданы брокеры.
// Без брокеров возвращает nil, nil: сервис работает без публикации событий.
func initKafkaProducer(cfg Config, logger *log.Entry) (*kafka.Producer, error) {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		logger.Debug("kafka brokers are not configured, events are disabled")
		return nil, nil
	}

	producerCfg := cfg.ProducerConfig()
	producer, err := kafka.NewProducerWithConfig(brokers, producerCfg, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithFields(log.Fields{
		"brokers":   brokers,
		"client_id": producerCfg.ClientID,
	}).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает producer; nil допустим.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
