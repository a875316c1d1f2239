package gex

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var ErrNotObject = errors.New("snapshot payload is not a JSON object")

// Stats reports records dropped while parsing.
type Stats struct {
	SkippedStrikes   int
	SkippedMaxPriors int
}

// rawRecord is one positional array from the payload, e.g. [price, gex_vol, gex_oi, priors].
type rawRecord = json.RawMessage

// Parse decodes an upstream classic GEX payload.
//
// Strike records need at least three numeric fields and are dropped otherwise.
// Max prior records need two numeric fields; a malformed one keeps its slot as
// an unreported entry because its position determines the interval it covers.
func Parse(body []byte) (*Snapshot, Stats, error) {
	var stats Stats

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, stats, ErrNotObject
	}

	var w wireSnapshot
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, stats, fmt.Errorf("decoding snapshot: %w", err)
	}

	snap := &Snapshot{
		Timestamp:   w.Timestamp,
		Ticker:      w.Ticker,
		MinDTE:      w.MinDTE,
		Spot:        Reading(w.Spot),
		ZeroGamma:   Reading(w.ZeroGamma),
		MajorPosVol: Reading(w.MajorPosVol),
		MajorNegVol: Reading(w.MajorNegVol),
		MajorPosOI:  Reading(w.MajorPosOI),
		MajorNegOI:  Reading(w.MajorNegOI),
		SumGexVol:   w.SumGexVol,
		SumGexOI:    w.SumGexOI,
		Strikes:     make([]Strike, 0, len(w.Strikes)),
		MaxPriors:   make([]Change, 0, len(w.MaxPriors)),
	}

	for _, rec := range w.Strikes {
		fields, ok := numericFields(rec, 3)
		if !ok {
			stats.SkippedStrikes++
			continue
		}
		snap.Strikes = append(snap.Strikes, Strike{
			Price:  Reading(fields[0]),
			GexVol: fields[1],
			GexOI:  fields[2],
		})
	}

	for _, rec := range w.MaxPriors {
		fields, ok := numericFields(rec, 2)
		if !ok {
			stats.SkippedMaxPriors++
			snap.MaxPriors = append(snap.MaxPriors, Change{})
			continue
		}
		snap.MaxPriors = append(snap.MaxPriors, Change{
			Price:     Reading(fields[0]),
			GexChange: fields[1],
		})
	}

	return snap, stats, nil
}

// ParseFile reads and parses a snapshot saved as plain JSON.
func ParseFile(path string) (*Snapshot, Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("reading snapshot: %w", err)
	}
	return Parse(data)
}

// numericFields decodes the first n elements of a JSON array as numbers.
// Trailing elements (nested prior arrays and the like) are ignored.
func numericFields(rec rawRecord, n int) ([]float64, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(rec, &elems); err != nil || len(elems) < n {
		return nil, false
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if err := json.Unmarshal(elems[i], &out[i]); err != nil {
			return nil, false
		}
	}
	return out, true
}
