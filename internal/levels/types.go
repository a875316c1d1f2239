package levels

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidRatio      = errors.New("ratio must be a positive number")
	ErrMissingSymbol     = errors.New("source and target symbols are required")
	ErrInvalidThreshold  = errors.New("thresholds must be non-negative")
	ErrInvalidTopStrikes = errors.New("top strikes count must be >= 1")
)

// Kind classifies a level.
type Kind int

const (
	ZeroGamma Kind = iota
	Support
	Resistance
	Hotspot
)

// String returns the token used in the CSV "type" column.
func (k Kind) String() string {
	switch k {
	case ZeroGamma:
		return "zero_gamma"
	case Support:
		return "support"
	case Resistance:
		return "resistance"
	case Hotspot:
		return "hotspot"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Label returns the display name.
func (k Kind) Label() string {
	switch k {
	case ZeroGamma:
		return "Zero Gamma"
	case Support:
		return "Support"
	case Resistance:
		return "Resistance"
	case Hotspot:
		return "Hotspot"
	default:
		return k.String()
	}
}

// MarshalText lets Kind serialize as its token in JSON documents.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Importance tiers, highest first.
const (
	TierZeroGamma = 10
	TierMajorVol  = 9
	TierMajorOI   = 8
	TierStrike    = 7
	TierHotspot   = 6
)

// Level is a price level in the target instrument's price space.
type Level struct {
	Price      float64 `json:"strike"`
	GexVol     float64 `json:"gex_vol"`
	GexOI      float64 `json:"gex_oi"`
	Kind       Kind    `json:"type"`
	Importance int     `json:"importance"`
	Label      string  `json:"label"`
}

// Instrument maps a source index onto its futures contract.
type Instrument struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Ratio  float64 `json:"ratio"`
	Name   string  `json:"name"`
}

func (i Instrument) Validate() error {
	if i.Source == "" || i.Target == "" {
		return ErrMissingSymbol
	}
	if !(i.Ratio > 0) || math.IsInf(i.Ratio, 0) {
		return fmt.Errorf("%s: %w (got %v)", i.Source, ErrInvalidRatio, i.Ratio)
	}
	return nil
}

// Params holds the selection thresholds.
type Params struct {
	// NoiseFloor drops strikes whose |gex_vol|+|gex_oi| is at or below it.
	NoiseFloor float64
	// ChangeFloor drops max-change hotspots whose |change| is at or below it.
	ChangeFloor float64
	// TopStrikes caps the number of strike levels kept.
	TopStrikes int
}

func DefaultParams() Params {
	return Params{
		NoiseFloor:  50,
		ChangeFloor: 10,
		TopStrikes:  15,
	}
}

func (p Params) Validate() error {
	if p.NoiseFloor < 0 || p.ChangeFloor < 0 || math.IsNaN(p.NoiseFloor) || math.IsNaN(p.ChangeFloor) {
		return ErrInvalidThreshold
	}
	if p.TopStrikes < 1 {
		return ErrInvalidTopStrikes
	}
	return nil
}

// Convert maps a raw index price to the futures price, rounded to cents.
func Convert(raw, ratio float64) float64 {
	return math.Round(raw/ratio*100) / 100
}
