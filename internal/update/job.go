package update

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgnsrekt/gexbot-levels/internal/gex"
	"github.com/dgnsrekt/gexbot-levels/internal/levels"
)

type Job struct {
	Instrument  levels.Instrument
	Aggregation string
}

func (j Job) String() string {
	return fmt.Sprintf("%s->%s/%s", j.Instrument.Source, j.Instrument.Target, j.Aggregation)
}

// Jobs builds one job per instrument. When only is non-empty, instruments
// whose source symbol is not listed are left out.
func Jobs(instruments []levels.Instrument, aggregation string, only []string) []Job {
	want := make(map[string]bool, len(only))
	for _, s := range only {
		want[strings.ToUpper(strings.TrimSpace(s))] = true
	}

	jobs := make([]Job, 0, len(instruments))
	for _, inst := range instruments {
		if len(want) > 0 && !want[inst.Source] {
			continue
		}
		jobs = append(jobs, Job{Instrument: inst, Aggregation: aggregation})
	}
	return jobs
}

// Outcome is the result of one conversion pass.
type Outcome struct {
	Job    Job
	Levels []levels.Level

	// Snapshot metadata, zero when the snapshot was unavailable.
	Timestamp int64
	Spot      float64
	ZeroGamma float64
	Skipped   gex.Stats

	// Unavailable is set when the fetch or decode failed; Reason says why.
	Unavailable bool
	Reason      error

	// Err is set when a sink failed to publish the levels.
	Err error
}

// Produced reports whether the pass yielded at least one level.
func (o Outcome) Produced() bool {
	return len(o.Levels) > 0
}

// Sink receives every completed pass, in no particular order across instruments.
type Sink interface {
	Name() string
	Publish(ctx context.Context, o Outcome) error
}

// Archiver stores raw snapshot bodies.
type Archiver interface {
	Save(ticker, aggregation string, body []byte) (string, error)
}
