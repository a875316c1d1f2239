package levels

import "sort"

// Rank orders levels by importance (highest first), then price (lowest first).
// Ties on both keys keep their input order. The input slice is not modified.
func Rank(in []Level) []Level {
	out := make([]Level, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Price < out[j].Price
	})
	return out
}

// Dedupe keeps the first level seen at each price and preserves order.
func Dedupe(ranked []Level) []Level {
	seen := make(map[float64]struct{}, len(ranked))
	out := make([]Level, 0, len(ranked))
	for _, l := range ranked {
		if _, ok := seen[l.Price]; ok {
			continue
		}
		seen[l.Price] = struct{}{}
		out = append(out, l)
	}
	return out
}
