package gex

// Reading is a snapshot value for which the upstream uses 0 as "not reported"
// (market closed, no data for the interval). A genuine zero cannot be told
// apart from a missing one, so both count as absent.
type Reading float64

// Reported returns true if the upstream actually published a value.
func (r Reading) Reported() bool {
	return r != 0
}

// Float returns the raw value.
func (r Reading) Float() float64 {
	return float64(r)
}

// Snapshot is one classic GEX payload for a single ticker.
type Snapshot struct {
	Timestamp   int64
	Ticker      string
	MinDTE      float64
	Spot        Reading
	ZeroGamma   Reading
	MajorPosVol Reading
	MajorNegVol Reading
	MajorPosOI  Reading
	MajorNegOI  Reading
	SumGexVol   float64
	SumGexOI    float64
	Strikes     []Strike
	MaxPriors   []Change
}

// Strike is a per-strike exposure record. Order follows the upstream payload
// and carries no ranking meaning.
type Strike struct {
	Price  Reading
	GexVol float64
	GexOI  float64
}

// Change is the largest exposure change over one look-back interval.
// MaxPriors is ordered most recent interval first.
type Change struct {
	Price     Reading
	GexChange float64
}

// wireSnapshot mirrors the upstream JSON. Strikes and max priors are decoded
// record by record so a single malformed entry does not reject the payload.
type wireSnapshot struct {
	Timestamp   int64       `json:"timestamp"`
	Ticker      string      `json:"ticker"`
	MinDTE      float64     `json:"min_dte"`
	Spot        float64     `json:"spot"`
	ZeroGamma   float64     `json:"zero_gamma"`
	MajorPosVol float64     `json:"major_pos_vol"`
	MajorPosOI  float64     `json:"major_pos_oi"`
	MajorNegVol float64     `json:"major_neg_vol"`
	MajorNegOI  float64     `json:"major_neg_oi"`
	SumGexVol   float64     `json:"sum_gex_vol"`
	SumGexOI    float64     `json:"sum_gex_oi"`
	Strikes     []rawRecord `json:"strikes"`
	MaxPriors   []rawRecord `json:"max_priors"`
}
