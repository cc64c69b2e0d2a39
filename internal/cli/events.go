package cli

import (
	"context"
	"strings"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// EventsOptions — флаги events tail.
type EventsOptions struct {
	*RootOptions
	Brokers string
	GroupID string
	Topics  []string
	// FromBeginning читает топики с самого старого offset для новой группы.
	FromBeginning bool
}

// NewEventsCommand создаёт группу команд events.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect catalog and cart domain events in Kafka",
	}

	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print catalog and cart events as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return tailEvents(cmd, opts)
		},
	}
	tail.Flags().StringVar(&opts.Brokers, "brokers", envOr("STOREFRONT_KAFKA_BROKERS", ""), "comma separated Kafka brokers")
	tail.Flags().StringVar(&opts.GroupID, "group", "catalogctl", "consumer group id")
	tail.Flags().StringSliceVar(&opts.Topics, "topics", []string{kafka.TopicCatalogEvents, kafka.TopicCartEvents}, "topics to follow (add "+kafka.TopicDeadLetterQueue+" to inspect dead letters)")
	tail.Flags().BoolVar(&opts.FromBeginning, "from-beginning", false, "start from the oldest offset when the group is new")
	cmd.AddCommand(tail)

	return cmd
}

func tailEvents(cmd *cobra.Command, opts *EventsOptions) error {
	var brokers []string
	for _, b := range strings.Split(opts.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return NewExitError(ExitCommandError, "--brokers (or STOREFRONT_KAFKA_BROKERS) is required")
	}

	logger := log.WithField("component", "catalogctl-events")
	consumer, err := kafka.NewConsumer(brokers, kafka.ConsumerOptions{
		GroupID:       opts.GroupID,
		Topics:        opts.Topics,
		FromBeginning: opts.FromBeginning,
		MaxRetries:    1,
	}, eventPrinter(opts.printer(cmd), logger), logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "create consumer", err)
	}

	ctx := cmd.Context()
	if err := consumer.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "start consumer", err)
	}
	<-ctx.Done()
	return consumer.Stop()
}

// eventPrinter печатает декодированные события; нераспознанные сообщения пропускаются.
func eventPrinter(p *Printer, logger *log.Entry) kafka.MessageHandler {
	return func(_ context.Context, message *sarama.ConsumerMessage) error {
		event, err := kafka.DecodeEvent(message)
		if err != nil {
			logger.WithError(err).WithField("topic", message.Topic).Warn("skipping undecodable event")
			return nil
		}

		if p.Format == "json" {
			return p.JSON(event)
		}
		switch e := event.(type) {
		case *kafka.CatalogEvent:
			p.Line("%s %-28s product=%s title=%q", e.Timestamp.Format("15:04:05"), e.EventType, e.ProductID, e.Title)
		case *kafka.CartEvent:
			p.Line("%s %-28s product=%s owner=%s order=%d", e.Timestamp.Format("15:04:05"), e.EventType, e.ProductID, e.Owner, e.OrderNumber)
		}
		return nil
	}
}
