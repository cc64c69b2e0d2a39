package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// subscription доставляет только последний снимок: непрочитанный старый вытесняется новым.
type subscription struct {
	mu     sync.Mutex
	closed bool
	events chan domain.SnapshotEvent
	done   chan struct{}
	detach func()
}

func (s *subscription) Events() <-chan domain.SnapshotEvent { return s.events }

func (s *subscription) deliver(event domain.SnapshotEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.events:
	default:
	}
	select {
	case s.events <- event:
	default:
	}
}

// fail отправляет терминальную ошибку и закрывает поток.
func (s *subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.events:
	default:
	}
	s.events <- domain.SnapshotEvent{Err: err}
	s.closed = true
	close(s.events)
	close(s.done)
}

func (s *subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	close(s.done)
	s.mu.Unlock()

	if s.detach != nil {
		s.detach()
	}
}

func sortBySeq(records []domain.Record, docs map[string]*storedRecord) {
	sort.Slice(records, func(i, j int) bool {
		return docs[records[i].ID].seq < docs[records[j].ID].seq
	})
}
