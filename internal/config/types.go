package config

import (
	"sort"
	"strings"
)

// Aggregation selects the expiration window of the classic GEX payload.
type Aggregation string

const (
	AggregationZero Aggregation = "zero"
	AggregationOne  Aggregation = "one"
	AggregationFull Aggregation = "full"
)

// ValidAggregations lists the classic endpoints the API serves.
var ValidAggregations = map[string]bool{
	string(AggregationZero): true,
	string(AggregationOne):  true,
	string(AggregationFull): true,
}

// DefaultInstruments maps the cash indexes onto their E-mini futures.
var DefaultInstruments = []InstrumentConfig{
	{Source: "SPX", Target: "ES", Ratio: 10, Name: "S&P 500 E-mini"},
	{Source: "NDX", Target: "NQ", Ratio: 40, Name: "Nasdaq 100 E-mini"},
}

// defaultInstrumentsMaps renders DefaultInstruments in the shape viper
// produces when reading a config file.
func defaultInstrumentsMaps() []map[string]any {
	out := make([]map[string]any, 0, len(DefaultInstruments))
	for _, ic := range DefaultInstruments {
		out = append(out, map[string]any{
			"source": ic.Source,
			"target": ic.Target,
			"ratio":  ic.Ratio,
			"name":   ic.Name,
		})
	}
	return out
}

func validAggregationsList() string {
	aggs := make([]string, 0, len(ValidAggregations))
	for a := range ValidAggregations {
		aggs = append(aggs, a)
	}
	sort.Strings(aggs)
	return strings.Join(aggs, ", ")
}
