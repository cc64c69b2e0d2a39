package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// ProducerConfig — параметры синхронного producer'а.
type ProducerConfig struct {
	ClientID    string
	MaxRetries  int
	Compression sarama.CompressionCodec
}

// DefaultProducerConfig — идемпотентная доставка с подтверждением от всех in-sync реплик.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		ClientID:    "storefront",
		MaxRetries:  5,
		Compression: sarama.CompressionSnappy,
	}
}

func (c ProducerConfig) sarama() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = c.ClientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = c.MaxRetries
	config.Producer.Return.Successes = true
	config.Producer.Compression = c.Compression
	// Идемпотентный producer требует ровно одного запроса в полёте.
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

// Producer публикует доменные события каталога и корзины.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
	now      func() time.Time
}

// NewProducer подключается к брокерам с DefaultProducerConfig.
func NewProducer(brokers []string, logger *log.Entry) (*Producer, error) {
	return NewProducerWithConfig(brokers, DefaultProducerConfig(), logger)
}

// NewProducerWithConfig подключается к брокерам с заданной конфигурацией.
func NewProducerWithConfig(brokers []string, cfg ProducerConfig, logger *log.Entry) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, cfg.sarama())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewProducerWithClient(producer, logger), nil
}

// NewProducerWithClient оборачивает готовый SyncProducer (например, sarama/mocks в тестах).
func NewProducerWithClient(producer sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// Publish отправляет событие в его топик с ключом события и заголовком типа.
func (p *Producer) Publish(event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type(), err)
	}
	return p.send(event.Topic(), event.Key(), sarama.ByteEncoder(value), header(HeaderEventType, string(event.Type())))
}

// PublishEvent сериализует произвольное значение в JSON и отправляет его в topic.
func (p *Producer) PublishEvent(topic string, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.send(topic, key, sarama.ByteEncoder(data))
}

func (p *Producer) send(topic, key string, value sarama.Encoder, headers ...sarama.RecordHeader) error {
	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     value,
		Headers:   headers,
		Timestamp: p.now(),
	}

	fields := log.Fields{"topic": topic, "key": key}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(fields).Error("failed to send message to kafka")
		return fmt.Errorf("failed to send message: %w", err)
	}

	fields["partition"] = partition
	fields["offset"] = offset
	p.logger.WithFields(fields).Debug("message sent to kafka")
	return nil
}

func header(key, value string) sarama.RecordHeader {
	return sarama.RecordHeader{Key: []byte(key), Value: []byte(value)}
}

// Close закрывает producer
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
