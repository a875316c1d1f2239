package server

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/gexbot-levels/internal/levels"
	"github.com/dgnsrekt/gexbot-levels/internal/update"
)

// Entry is the latest published level set for one instrument.
type Entry struct {
	Instrument        levels.Instrument `json:"instrument"`
	Aggregation       string            `json:"aggregation"`
	SnapshotTimestamp int64             `json:"snapshot_timestamp"`
	Spot              float64           `json:"spot"`
	ZeroGamma         float64           `json:"zero_gamma"`
	UpdatedAt         time.Time         `json:"updated_at"`
	Levels            []levels.Level    `json:"levels"`
}

// Store keeps the latest non-empty result per target symbol. It is an
// update.Sink so the update manager can feed it directly.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time

	stream *Broadcaster
}

// NewStore creates an empty store. When stream is non-nil every stored entry
// is also broadcast to its subscribers.
func NewStore(stream *Broadcaster) *Store {
	return &Store{
		entries: make(map[string]Entry),
		now:     time.Now,
		stream:  stream,
	}
}

func (s *Store) Name() string { return "memory" }

// Publish records o. Empty results keep the previous entry.
func (s *Store) Publish(_ context.Context, o update.Outcome) error {
	if !o.Produced() {
		return nil
	}

	inst := o.Job.Instrument
	entry := Entry{
		Instrument:        inst,
		Aggregation:       o.Job.Aggregation,
		SnapshotTimestamp: o.Timestamp,
		Spot:              o.Spot,
		ZeroGamma:         o.ZeroGamma,
		UpdatedAt:         s.now().UTC(),
		Levels:            o.Levels,
	}

	s.mu.Lock()
	s.entries[inst.Target] = entry
	s.mu.Unlock()

	if s.stream != nil {
		s.stream.Broadcast(entry)
	}
	return nil
}

// Get looks up an entry by target or source symbol, case-insensitively.
func (s *Store) Get(symbol string) (Entry, bool) {
	symbol = strings.ToUpper(symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[symbol]; ok {
		return e, true
	}
	for _, e := range s.entries {
		if e.Instrument.Source == symbol {
			return e, true
		}
	}
	return Entry{}, false
}

// All returns every entry sorted by target symbol.
func (s *Store) All() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Instrument.Target < out[j].Instrument.Target })
	return out
}

// Symbols returns the stored instruments sorted by target symbol.
func (s *Store) Symbols() []levels.Instrument {
	s.mu.RLock()
	out := make([]levels.Instrument, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Instrument)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}
