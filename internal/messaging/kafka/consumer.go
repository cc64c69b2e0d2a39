package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// MessageHandler обрабатывает сообщение из Kafka
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// ConsumerOptions — параметры группы потребителей.
type ConsumerOptions struct {
	GroupID string
	Topics  []string
	// FromBeginning читает партиции с самого старого offset при первом подключении группы.
	FromBeginning bool
	// MaxRetries — число попыток обработки с учётом заголовка x-retry-count.
	MaxRetries int
	RetryDelay time.Duration
	// DLQ получает сообщения, исчерпавшие попытки; nil — сообщение остаётся неподтверждённым.
	DLQ *Producer
}

func (o ConsumerOptions) withDefaults() ConsumerOptions {
	if o.MaxRetries < 1 {
		o.MaxRetries = 3
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	return o
}

// Consumer читает топики группой потребителей и повторяет неудачную обработку.
type Consumer struct {
	consumer    sarama.ConsumerGroup
	topics      []string
	handler     MessageHandler
	logger      *log.Entry
	wg          sync.WaitGroup
	dlqProducer *Producer
	maxRetries  int
	retryDelay  time.Duration
	now         func() time.Time
}

// NewConsumer подключается к брокерам как участник группы opts.GroupID.
func NewConsumer(brokers []string, opts ConsumerOptions, handler MessageHandler, logger *log.Entry) (*Consumer, error) {
	if opts.GroupID == "" {
		return nil, errors.New("kafka consumer group id is required")
	}
	if len(opts.Topics) == 0 {
		return nil, errors.New("kafka consumer needs at least one topic")
	}
	opts = opts.withDefaults()

	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	if opts.FromBeginning {
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, opts.GroupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	if logger == nil {
		logger = log.WithField("component", "kafka-consumer")
	}

	return &Consumer{
		consumer:    group,
		topics:      opts.Topics,
		handler:     handler,
		logger:      logger.WithField("group", opts.GroupID),
		dlqProducer: opts.DLQ,
		maxRetries:  opts.MaxRetries,
		retryDelay:  opts.RetryDelay,
		now:         time.Now,
	}, nil
}

// Start запускает чтение в фоне; остановка — отменой ctx и Stop.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			// Consume возвращается при каждом rebalance, поэтому вызывается в цикле.
			if err := c.consumer.Consume(ctx, c.topics, c); err != nil {
				c.logger.WithError(err).Error("error from consumer")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.consumer.Errors() {
			c.logger.WithError(err).Error("consumer error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

// Stop закрывает группу и ждёт фоновые горутины.
func (c *Consumer) Stop() error {
	if err := c.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

// Setup вызывается при старте consumer session
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup вызывается при завершении consumer session
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim обрабатывает сообщения партиции; offset фиксируется только после успешной обработки
// или передачи сообщения в DLQ.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			fields := log.Fields{
				"topic":     message.Topic,
				"partition": message.Partition,
				"offset":    message.Offset,
			}
			c.logger.WithFields(fields).Debug("received message")

			if err := c.handleMessageWithRetry(session.Context(), message); err != nil {
				c.logger.WithError(err).WithFields(fields).Error("message processing failed after all retries")
				continue
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// handleMessageWithRetry повторяет обработку, пока число попыток с учётом заголовка x-retry-count
// не достигнет maxRetries, затем передаёт сообщение в DLQ, если она настроена.
func (c *Consumer) handleMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	attempt := retryCount(message)

	var err error
	for {
		if err = c.handler(ctx, message); err == nil {
			return nil
		}
		attempt++
		if attempt >= c.maxRetries {
			break
		}

		c.logger.WithError(err).WithFields(log.Fields{
			"topic":       message.Topic,
			"retry_count": attempt,
			"max_retries": c.maxRetries,
		}).Warn("message processing failed, will retry")

		if c.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}

	if c.dlqProducer == nil {
		return err
	}
	if dlqErr := c.sendToDLQ(message, attempt, err); dlqErr != nil {
		return fmt.Errorf("failed to send to DLQ: %w", dlqErr)
	}
	c.logger.WithFields(log.Fields{
		"topic":       message.Topic,
		"retry_count": attempt,
	}).Info("message sent to DLQ after max retries")
	return nil
}

// sendToDLQ пересылает исходные байты сообщения в DLQ; происхождение и причина — в заголовках.
func (c *Consumer) sendToDLQ(message *sarama.ConsumerMessage, attempts int, processingErr error) error {
	headers := []sarama.RecordHeader{
		header(HeaderOriginalTopic, message.Topic),
		header(HeaderErrorMessage, processingErr.Error()),
		header(HeaderFailedAt, c.now().UTC().Format(time.RFC3339)),
		header(HeaderRetryCount, strconv.Itoa(attempts)),
	}
	if eventType := headerValue(message, HeaderEventType); eventType != "" {
		headers = append(headers, header(HeaderEventType, eventType))
	}
	return c.dlqProducer.send(TopicDeadLetterQueue, string(message.Key), sarama.ByteEncoder(message.Value), headers...)
}

func headerValue(message *sarama.ConsumerMessage, key string) string {
	for _, h := range message.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

// retryCount читает x-retry-count; отсутствующий или испорченный заголовок означает 0.
func retryCount(message *sarama.ConsumerMessage) int {
	count, err := strconv.Atoi(headerValue(message, HeaderRetryCount))
	if err != nil || count < 0 {
		return 0
	}
	return count
}

// ParseCatalogEvent парсит CatalogEvent из сообщения
func ParseCatalogEvent(message *sarama.ConsumerMessage) (*CatalogEvent, error) {
	var event CatalogEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog event: %w", err)
	}
	return &event, nil
}

// ParseCartEvent парсит CartEvent из сообщения
func ParseCartEvent(message *sarama.ConsumerMessage) (*CartEvent, error) {
	var event CartEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart event: %w", err)
	}
	return &event, nil
}

// DecodeEvent выбирает парсер по топику сообщения. Для сообщений из DLQ используется
// исходный топик из заголовка x-original-topic.
func DecodeEvent(message *sarama.ConsumerMessage) (Event, error) {
	topic := message.Topic
	if topic == TopicDeadLetterQueue {
		topic = headerValue(message, HeaderOriginalTopic)
	}

	switch topic {
	case TopicCatalogEvents:
		event, err := ParseCatalogEvent(message)
		if err != nil {
			return nil, err
		}
		return event, nil
	case TopicCartEvents:
		event, err := ParseCartEvent(message)
		if err != nil {
			return nil, err
		}
		return event, nil
	default:
		return nil, fmt.Errorf("unexpected topic %q", message.Topic)
	}
}
