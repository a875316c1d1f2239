package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbot-levels/internal/api"
	"github.com/dgnsrekt/gexbot-levels/internal/levels"
	"github.com/dgnsrekt/gexbot-levels/internal/notify"
	"github.com/dgnsrekt/gexbot-levels/internal/output"
	"github.com/dgnsrekt/gexbot-levels/internal/schedule"
	"github.com/dgnsrekt/gexbot-levels/internal/update"
)

type stubClient struct {
	body string
}

func (s *stubClient) GetSnapshot(ctx context.Context, ticker, aggregation string) ([]byte, error) {
	if s.body == "" {
		return nil, api.ErrNotFound
	}
	return []byte(s.body), nil
}

type recordingNotifier struct {
	kinds []notify.Kind
}

func (r *recordingNotifier) Notify(_ context.Context, a notify.Alert) error {
	r.kinds = append(r.kinds, a.Kind)
	return nil
}

func (r *recordingNotifier) count(k notify.Kind) int {
	n := 0
	for _, got := range r.kinds {
		if got == k {
			n++
		}
	}
	return n
}

type flakySink struct {
	fail bool
}

func (f *flakySink) Name() string { return "flaky" }

func (f *flakySink) Publish(context.Context, update.Outcome) error {
	if f.fail {
		return errors.New("disk full")
	}
	return nil
}

func newTestWatcher(t *testing.T, client *stubClient, n *recordingNotifier, sinks ...update.Sink) (*watcher, string) {
	t.Helper()
	dir := t.TempDir()

	pipeline, err := levels.NewPipeline(levels.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	sched, err := schedule.NewScheduler("America/New_York", "09:30", "16:15")
	if err != nil {
		t.Fatal(err)
	}

	csv := output.NewCSVSink(dir, func(target string) string {
		return strings.ToLower(target) + "_gex_levels.csv"
	}, zap.NewNop())
	sinks = append([]update.Sink{csv}, sinks...)

	es := levels.Instrument{Source: "SPX", Target: "ES", Ratio: 10}
	w := &watcher{
		updater: &updater{
			manager:       update.NewManager(client, pipeline, 1, zap.NewNop(), update.WithSinks(sinks...)),
			timestampPath: filepath.Join(dir, "last_update.txt"),
		},
		scheduler: sched,
		notifier:  n,
		jobs:      update.Jobs([]levels.Instrument{es}, "full", nil),
		logger:    zap.NewNop(),
	}
	return w, dir
}

func TestWatcherTick_OutsideSession(t *testing.T) {
	n := &recordingNotifier{}
	client := &stubClient{body: `{"zero_gamma":6000}`}
	w, dir := newTestWatcher(t, client, n)

	saturday := time.Date(2025, 11, 15, 12, 0, 0, 0, w.scheduler.Location())
	w.tick(context.Background(), saturday)

	if _, err := os.Stat(filepath.Join(dir, "es_gex_levels.csv")); !os.IsNotExist(err) {
		t.Error("no update should run outside the session")
	}
	if len(n.kinds) != 0 {
		t.Errorf("unexpected notifications: %v", n.kinds)
	}
}

func TestWatcherTick_Notifications(t *testing.T) {
	n := &recordingNotifier{}
	client := &stubClient{body: `{"zero_gamma":6000}`}
	sink := &flakySink{}
	w, dir := newTestWatcher(t, client, n, sink)

	open := time.Date(2025, 11, 14, 10, 0, 0, 0, w.scheduler.Location())

	w.tick(context.Background(), open)
	w.tick(context.Background(), open.Add(5*time.Minute))
	if n.count(notify.KindOK) != 1 {
		t.Errorf("expected one healthy notice per day, got %v", n.kinds)
	}

	data, err := os.ReadFile(filepath.Join(dir, "last_update.txt"))
	if err != nil || !strings.HasSuffix(strings.TrimSpace(string(data)), "UTC") {
		t.Errorf("expected timestamp file, got %q (%v)", data, err)
	}

	// Repeated outages notify once.
	client.body = ""
	w.tick(context.Background(), open.Add(10*time.Minute))
	w.tick(context.Background(), open.Add(15*time.Minute))
	if n.count(notify.KindUnavailable) != 1 {
		t.Errorf("expected one unavailable notice, got %v", n.kinds)
	}

	// A sink failure is a different alert, even while still failing.
	client.body = `{"zero_gamma":6000}`
	sink.fail = true
	w.tick(context.Background(), open.Add(20*time.Minute))
	w.tick(context.Background(), open.Add(25*time.Minute))
	if n.count(notify.KindWriteFailure) != 1 {
		t.Errorf("expected one write failure notice, got %v", n.kinds)
	}

	sink.fail = false
	w.tick(context.Background(), open.Add(30*time.Minute))
	want := []notify.Kind{notify.KindOK, notify.KindUnavailable, notify.KindWriteFailure, notify.KindOK}
	if len(n.kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, n.kinds)
	}
	for i := range want {
		if n.kinds[i] != want[i] {
			t.Errorf("notice %d: expected %s, got %s", i, want[i], n.kinds[i])
		}
	}
}

func TestBatchError(t *testing.T) {
	if err := batchError(&update.BatchResult{Total: 1, Produced: 1}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := batchError(&update.BatchResult{Total: 2, Produced: 1, Failed: 1}); err == nil {
		t.Error("expected error for failed publish")
	}
	if err := batchError(&update.BatchResult{Total: 2, Empty: 2}); err == nil {
		t.Error("expected error for empty batch")
	}
}
