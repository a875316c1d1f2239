package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/gexbot-levels/internal/update"
)

// Kind classifies a finished update batch.
type Kind int

const (
	// KindOK means every instrument produced levels and every sink accepted them.
	KindOK Kind = iota
	// KindPartial means some instruments produced levels and the rest were
	// unavailable or empty. Nothing failed to publish.
	KindPartial
	// KindUnavailable means no snapshot could be fetched or decoded for any
	// instrument. The upstream API is the usual suspect.
	KindUnavailable
	// KindEmpty means snapshots arrived but none of them yielded a level.
	KindEmpty
	// KindWriteFailure means levels were computed but a sink rejected them.
	KindWriteFailure
	// KindAborted means the batch itself did not complete.
	KindAborted
)

var kindNames = map[Kind]string{
	KindOK:           "ok",
	KindPartial:      "partial",
	KindUnavailable:  "unavailable",
	KindEmpty:        "empty",
	KindWriteFailure: "write_failure",
	KindAborted:      "aborted",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Healthy reports whether files were refreshed for at least one instrument
// without any publish error.
func (k Kind) Healthy() bool {
	return k == KindOK || k == KindPartial
}

// Alert is one batch, classified, ready to be sent.
type Alert struct {
	Kind   Kind
	Date   string
	Result *update.BatchResult
	Err    error
}

// NewAlert classifies a batch. err is the error returned by the run itself,
// not the per-instrument outcome; a nil result is treated as an empty batch.
func NewAlert(result *update.BatchResult, date string, err error) Alert {
	if result == nil {
		result = &update.BatchResult{}
	}
	return Alert{Kind: classify(result, err), Date: date, Result: result, Err: err}
}

func classify(r *update.BatchResult, err error) Kind {
	switch {
	case err != nil:
		return KindAborted
	case r.Failed > 0:
		return KindWriteFailure
	case r.Produced == 0 && r.Total > 0 && r.Unavailable == r.Total:
		return KindUnavailable
	case r.Produced == 0:
		return KindEmpty
	case r.Produced < r.Total:
		return KindPartial
	default:
		return KindOK
	}
}

// Title is the ntfy title line.
func (a Alert) Title() string {
	r := a.Result
	switch a.Kind {
	case KindOK:
		return fmt.Sprintf("GEX Levels Updated: %s", a.Date)
	case KindPartial:
		return fmt.Sprintf("GEX Levels Partial: %s (%d/%d)", a.Date, r.Produced, r.Total)
	case KindUnavailable:
		return fmt.Sprintf("GEX API Unavailable: %s", a.Date)
	case KindEmpty:
		return fmt.Sprintf("GEX Levels Empty: %s", a.Date)
	case KindWriteFailure:
		return fmt.Sprintf("GEX Levels Not Saved: %s (%d failed)", a.Date, r.Failed)
	default:
		return fmt.Sprintf("GEX Update Aborted: %s", a.Date)
	}
}

// Priority raises base for unhealthy kinds. A write failure is urgent.
func (a Alert) Priority(base string) string {
	switch a.Kind {
	case KindWriteFailure:
		return "urgent"
	case KindUnavailable, KindAborted:
		return "high"
	case KindEmpty:
		if base == "min" || base == "low" {
			return "default"
		}
		return base
	default:
		return base
	}
}

var kindTags = map[Kind]string{
	KindOK:           "white_check_mark",
	KindPartial:      "warning",
	KindUnavailable:  "no_entry,satellite",
	KindEmpty:        "grey_question",
	KindWriteFailure: "x,floppy_disk",
	KindAborted:      "x,stop_sign",
}

// Tags appends the kind's tags to base.
func (a Alert) Tags(base string) string {
	tags := kindTags[a.Kind]
	if base == "" {
		return tags
	}
	return base + "," + tags
}

// Message is the alert body: one line per target, then totals.
func (a Alert) Message() string {
	r := a.Result
	var sb strings.Builder

	for _, o := range r.Outcomes {
		sb.WriteString(targetLine(o))
		sb.WriteByte('\n')
	}
	if len(r.Outcomes) > 0 {
		sb.WriteByte('\n')
	}

	sb.WriteString(fmt.Sprintf("Produced %d, empty %d (unavailable %d), failed %d of %d\n",
		r.Produced, r.Empty, r.Unavailable, r.Failed, r.Total))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: %s\n", r.RunID))
	}
	sb.WriteString(fmt.Sprintf("Duration: %s", r.Duration.Round(time.Millisecond)))

	if a.Err != nil {
		sb.WriteString(fmt.Sprintf("\n\nError: %v", a.Err))
	}

	// Batch-level errors not tied to an outcome, e.g. the timestamp file.
	if extra := untiedErrors(r); len(extra) > 0 {
		sb.WriteString("\n\nErrors:")
		for _, e := range extra {
			sb.WriteString("\n- " + e)
		}
	}

	return sb.String()
}

func targetLine(o update.Outcome) string {
	target := o.Job.Instrument.Target
	switch {
	case o.Err != nil:
		return fmt.Sprintf("%s: %d levels, not saved: %v", target, len(o.Levels), o.Err)
	case o.Unavailable:
		return fmt.Sprintf("%s: unavailable (%v)", target, o.Reason)
	case !o.Produced():
		return fmt.Sprintf("%s: no levels", target)
	default:
		return fmt.Sprintf("%s: %d levels", target, len(o.Levels))
	}
}

// untiedErrors returns the batch errors that do not name a target.
func untiedErrors(r *update.BatchResult) []string {
	var out []string
	for _, e := range r.Errors {
		tied := false
		for _, o := range r.Outcomes {
			if strings.HasPrefix(e, o.Job.String()+":") {
				tied = true
				break
			}
		}
		if !tied {
			out = append(out, e)
		}
	}
	const limit = 3
	if len(out) > limit {
		more := len(out) - limit
		out = append(out[:limit], fmt.Sprintf("... and %d more", more))
	}
	return out
}
