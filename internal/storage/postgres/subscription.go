package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// listenSubscription владеет выделенным LISTEN-соединением.
// Единственный писатель в events — горутина run, поэтому вытеснение старого снимка не гоняется.
type listenSubscription struct {
	ctx        context.Context
	cancel     context.CancelFunc
	conn       *pgx.Conn
	collection string
	reload     func(ctx context.Context) ([]domain.Record, error)
	logger     *log.Entry

	events    chan domain.SnapshotEvent
	closeOnce sync.Once
}

func newListenSubscription(
	parent context.Context,
	conn *pgx.Conn,
	collection string,
	logger *log.Entry,
	reload func(ctx context.Context) ([]domain.Record, error),
) *listenSubscription {
	ctx, cancel := context.WithCancel(parent)
	return &listenSubscription{
		ctx:        ctx,
		cancel:     cancel,
		conn:       conn,
		collection: collection,
		reload:     reload,
		logger:     logger,
		events:     make(chan domain.SnapshotEvent, 1),
	}
}

func (s *listenSubscription) Events() <-chan domain.SnapshotEvent { return s.events }

// Close останавливает чтение уведомлений; канал событий закрывает run.
func (s *listenSubscription) Close() {
	s.closeOnce.Do(s.cancel)
}

func (s *listenSubscription) run() {
	defer close(s.events)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.conn.Close(closeCtx)
	}()

	for {
		notification, err := s.conn.WaitForNotification(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.WithError(err).Warn("Listen connection lost")
			s.deliver(domain.SnapshotEvent{Err: fmt.Errorf("wait for notification: %w", err)})
			return
		}
		if notification.Payload != s.collection {
			continue
		}

		records, err := s.reload(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			s.logger.WithError(err).Warn("Failed to reload collection after notification")
			s.deliver(domain.SnapshotEvent{Err: fmt.Errorf("reload collection: %w", err)})
			return
		}
		s.deliver(domain.SnapshotEvent{Records: records})
	}
}

func (s *listenSubscription) deliver(event domain.SnapshotEvent) {
	select {
	case <-s.events:
	default:
	}
	select {
	case s.events <- event:
	default:
	}
}

var _ domain.Subscription = (*listenSubscription)(nil)
