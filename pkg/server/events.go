package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type EventType string

const (
	EventRecordUpdated     EventType = "record-updated"
	EventMessageDispatched EventType = "message-dispatched"
	EventConfigReloaded    EventType = "config-reloaded"
	EventServerError       EventType = "server-error"
)

const (
	subscriberBuffer  = 16
	heartbeatInterval = 30 * time.Second
)

type Event struct {
	Type EventType              `json:"type"`
	Time time.Time              `json:"time"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventBroker fans events out to the SSE subscribers. A subscriber whose
// buffer is full misses the event instead of stalling the broadcaster.
type EventBroker struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	logger      *slog.Logger
}

func NewEventBroker(logger *slog.Logger) *EventBroker {
	return &EventBroker{
		subscribers: make(map[chan Event]struct{}),
		logger:      logger,
	}
}

func (b *EventBroker) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	b.subscribers[ch] = struct{}{}
	b.logger.Debug("client subscribed to events", "subscribers", len(b.subscribers))
	return ch
}

func (b *EventBroker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
	b.logger.Debug("client unsubscribed from events", "subscribers", len(b.subscribers))
}

func (b *EventBroker) Broadcast(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Warn("event subscriber is full, dropping event", "type", event.Type)
		}
	}
}

func (b *EventBroker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := s.eventBroker.Subscribe()
	defer s.eventBroker.Unsubscribe(events)

	fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.Error("failed to marshal event", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

// ConfigWatcher reloads the config file when it changes on disk. The parent
// directory is watched so editors that replace the file are seen too.
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	reload   func(ctx context.Context, path string) error
	broker   *EventBroker
	logger   *slog.Logger
	debounce time.Duration

	mu         sync.Mutex
	lastReload time.Time
}

func NewConfigWatcher(s *Server, configPath string, logger *slog.Logger) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &ConfigWatcher{
		watcher:  watcher,
		path:     abs,
		reload:   s.ReloadConfig,
		broker:   s.eventBroker,
		logger:   logger,
		debounce: time.Second,
	}, nil
}

func (cw *ConfigWatcher) Start(ctx context.Context) error {
	if err := cw.watcher.Add(filepath.Dir(cw.path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	cw.logger.Info("started watching config file", "path", cw.path)
	go cw.watch(ctx)
	return nil
}

func (cw *ConfigWatcher) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			cw.logger.Info("config watcher stopped")
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				cw.logger.Info("config file changed", "op", event.Op.String())
				cw.handleChange(ctx)
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("config watcher error", "err", err)
		}
	}
}

func (cw *ConfigWatcher) handleChange(ctx context.Context) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if time.Since(cw.lastReload) < cw.debounce {
		cw.logger.Debug("config change ignored (debounced)")
		return
	}
	cw.lastReload = time.Now()

	if err := cw.reload(ctx, cw.path); err != nil {
		cw.logger.Error("failed to reload config", "err", err)
		cw.broker.Broadcast(Event{
			Type: EventServerError,
			Data: map[string]interface{}{"message": fmt.Sprintf("failed to reload config: %v", err)},
		})
		return
	}

	cw.broker.Broadcast(Event{
		Type: EventConfigReloaded,
		Data: map[string]interface{}{"path": cw.path},
	})
}

func (cw *ConfigWatcher) Stop() error {
	cw.logger.Info("stopping config watcher")
	return cw.watcher.Close()
}
