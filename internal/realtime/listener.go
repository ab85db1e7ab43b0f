package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const notifyChannel = "club_changes"

// Stream delivers row-level change events from the store.
type Stream interface {
	Events() <-chan ChangeEvent
	Close() error
}

type streamPayload struct {
	Table     string `json:"table"`
	Operation string `json:"operation"`
	ScopeID   string `json:"scope_id"`
}

// pqStream listens on the Postgres NOTIFY channel the repositories write
// to. It owns its own connection, independent of the query pool.
type pqStream struct {
	listener *pq.Listener
	events   chan ChangeEvent
	done     chan struct{}
	logger   *zap.Logger
}

func NewPQStream(connStr string, logger *zap.Logger) (Stream, error) {
	listener := pq.NewListener(connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("listener connection event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, err
	}

	s := &pqStream{
		listener: listener,
		events:   make(chan ChangeEvent, 64),
		done:     make(chan struct{}),
		logger:   logger,
	}
	go s.run()
	return s, nil
}

func (s *pqStream) run() {
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		case notification := <-s.listener.Notify:
			// A nil notification marks a reconnect; events may have been
			// missed, which the cache TTL backstop covers.
			if notification == nil {
				continue
			}
			event, ok := s.parse(notification.Extra)
			if !ok {
				continue
			}
			select {
			case s.events <- event:
			case <-s.done:
				return
			}
		case <-time.After(90 * time.Second):
			go s.listener.Ping()
		}
	}
}

func (s *pqStream) parse(raw string) (ChangeEvent, bool) {
	var payload streamPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		s.logger.Warn("bad change payload", zap.String("payload", raw), zap.Error(err))
		return ChangeEvent{}, false
	}

	resource, ok := tableResources[payload.Table]
	if !ok {
		return ChangeEvent{}, false
	}
	scopeID, err := uuid.Parse(payload.ScopeID)
	if err != nil {
		s.logger.Warn("bad change scope", zap.String("scope_id", payload.ScopeID))
		return ChangeEvent{}, false
	}

	return ChangeEvent{
		Resource:  resource,
		Operation: Operation(payload.Operation),
		ScopeID:   scopeID,
	}, true
}

func (s *pqStream) Events() <-chan ChangeEvent {
	return s.events
}

func (s *pqStream) Close() error {
	close(s.done)
	return s.listener.Close()
}
