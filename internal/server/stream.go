package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// streamSnapshot is the first event a subscriber receives.
type streamSnapshot struct {
	Timestamp int64   `json:"timestamp"`
	Sequence  uint64  `json:"sequence"`
	Entries   []Entry `json:"entries"`
}

// Broadcaster pushes newly published levels to connected SSE clients.
type Broadcaster struct {
	logger *zap.Logger

	mu       sync.RWMutex
	sequence uint64
	clients  map[*sseClient]bool
}

// sseClient represents a connected SSE subscriber.
type sseClient struct {
	dataCh chan []byte
	doneCh chan struct{}
}

func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		logger:  logger,
		clients: make(map[*sseClient]bool),
	}
}

// Broadcast sends e to every client. Slow clients drop the event.
func (b *Broadcaster) Broadcast(e Entry) {
	eventData, err := b.formatEvent("levels", e)
	if err != nil {
		b.logger.Warn("failed to encode levels event", zap.Error(err))
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients {
		select {
		case client.dataCh <- eventData:
		default:
			// Channel full, client is slow
			b.logger.Debug("client channel full, dropping event", zap.String("target", e.Instrument.Target))
		}
	}
}

// Clients returns the number of connected subscribers.
func (b *Broadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// HandleSSE streams a snapshot of current entries followed by one "levels"
// event per published result.
func (b *Broadcaster) HandleSSE(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Check if SSE is supported
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		// Set SSE headers
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		// Lift deadlines an embedding http.Server may have set.
		rc := http.NewResponseController(w)
		if err := rc.SetWriteDeadline(time.Time{}); err != nil {
			b.logger.Debug("cannot clear write deadline", zap.Error(err))
		}

		client := &sseClient{
			dataCh: make(chan []byte, 10),
			doneCh: make(chan struct{}),
		}

		b.addClient(client)
		defer func() {
			b.removeClient(client)
			b.logger.Info("stream client disconnected",
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("clients", b.Clients()),
			)
		}()

		b.logger.Info("stream client connected",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("clients", b.Clients()),
		)

		snapshot, err := b.formatEvent("snapshot", streamSnapshot{
			Timestamp: time.Now().UnixMilli(),
			Sequence:  b.currentSequence(),
			Entries:   store.All(),
		})
		if err != nil {
			b.logger.Error("failed to encode snapshot", zap.Error(err))
			return
		}
		if _, err := w.Write(snapshot); err != nil {
			return
		}
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-client.doneCh:
				return
			case eventData := <-client.dataCh:
				if _, err := w.Write(eventData); err != nil {
					b.logger.Debug("failed to write to client", zap.Error(err))
					return
				}
				flusher.Flush()
			}
		}
	}
}

func (b *Broadcaster) addClient(client *sseClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = true
}

func (b *Broadcaster) removeClient(client *sseClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, client)
	close(client.doneCh)
}

func (b *Broadcaster) currentSequence() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sequence
}

func (b *Broadcaster) formatEvent(eventType string, data interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.sequence++
	seq := b.sequence
	b.mu.Unlock()

	return []byte(fmt.Sprintf("event: %s\nid: %d\ndata: %s\n\n", eventType, seq, jsonData)), nil
}
