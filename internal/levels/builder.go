package levels

import (
	"fmt"
	"math"
	"sort"

	"github.com/dgnsrekt/gexbot-levels/internal/gex"
)

// hotspotWindow is how many of the most recent max-change intervals are used.
const hotspotWindow = 3

var intervalNames = []string{"1min", "5min", "10min", "15min", "30min"}

// Classify picks support or resistance from the dominant exposure component.
// Equal magnitudes fall through to open interest.
func Classify(gexVol, gexOI float64) Kind {
	if math.Abs(gexVol) > math.Abs(gexOI) {
		if gexVol > 0 {
			return Support
		}
		return Resistance
	}
	if gexOI > 0 {
		return Support
	}
	return Resistance
}

// Builder turns a snapshot into unordered level candidates.
type Builder struct {
	params Params
}

func NewBuilder(p Params) *Builder {
	return &Builder{params: p}
}

// Candidates returns every candidate level for snap. A nil snapshot means the
// data was unavailable and yields none.
func (b *Builder) Candidates(snap *gex.Snapshot, inst Instrument) []Level {
	if snap == nil {
		return nil
	}

	var out []Level
	out = append(out, zeroGammaLevel(snap, inst)...)
	out = append(out, majorLevels(snap, inst)...)
	out = append(out, b.strikeLevels(snap, inst)...)
	out = append(out, b.hotspotLevels(snap, inst)...)
	return out
}

func zeroGammaLevel(snap *gex.Snapshot, inst Instrument) []Level {
	if !snap.ZeroGamma.Reported() {
		return nil
	}
	return []Level{{
		Price:      Convert(snap.ZeroGamma.Float(), inst.Ratio),
		Kind:       ZeroGamma,
		Importance: TierZeroGamma,
		Label:      ZeroGamma.Label(),
	}}
}

func majorLevels(snap *gex.Snapshot, inst Instrument) []Level {
	majors := []struct {
		price  gex.Reading
		kind   Kind
		tier   int
		gexVol float64
		gexOI  float64
		label  string
	}{
		{snap.MajorPosVol, Support, TierMajorVol, snap.SumGexVol, 0, "Major Support (Vol)"},
		{snap.MajorNegVol, Resistance, TierMajorVol, snap.SumGexVol, 0, "Major Resistance (Vol)"},
		{snap.MajorPosOI, Support, TierMajorOI, 0, snap.SumGexOI, "Major Support (OI)"},
		{snap.MajorNegOI, Resistance, TierMajorOI, 0, snap.SumGexOI, "Major Resistance (OI)"},
	}

	var out []Level
	for _, m := range majors {
		if !m.price.Reported() {
			continue
		}
		out = append(out, Level{
			Price:      Convert(m.price.Float(), inst.Ratio),
			GexVol:     m.gexVol,
			GexOI:      m.gexOI,
			Kind:       m.kind,
			Importance: m.tier,
			Label:      m.label,
		})
	}
	return out
}

type scoredStrike struct {
	strike gex.Strike
	score  float64
}

func (b *Builder) strikeLevels(snap *gex.Snapshot, inst Instrument) []Level {
	scored := make([]scoredStrike, 0, len(snap.Strikes))
	for _, s := range snap.Strikes {
		if !s.Price.Reported() {
			continue
		}
		score := math.Abs(s.GexVol) + math.Abs(s.GexOI)
		if score <= b.params.NoiseFloor {
			continue
		}
		scored = append(scored, scoredStrike{strike: s, score: score})
	}

	// Equal scores keep snapshot order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > b.params.TopStrikes {
		scored = scored[:b.params.TopStrikes]
	}

	out := make([]Level, 0, len(scored))
	for _, s := range scored {
		kind := Classify(s.strike.GexVol, s.strike.GexOI)
		out = append(out, Level{
			Price:      Convert(s.strike.Price.Float(), inst.Ratio),
			GexVol:     s.strike.GexVol,
			GexOI:      s.strike.GexOI,
			Kind:       kind,
			Importance: TierStrike,
			Label:      kind.Label(),
		})
	}
	return out
}

func (b *Builder) hotspotLevels(snap *gex.Snapshot, inst Instrument) []Level {
	var out []Level
	for idx, c := range snap.MaxPriors {
		if idx >= hotspotWindow {
			break
		}
		if !c.Price.Reported() || math.Abs(c.GexChange) <= b.params.ChangeFloor {
			continue
		}
		out = append(out, Level{
			Price:      Convert(c.Price.Float(), inst.Ratio),
			GexVol:     c.GexChange,
			Kind:       Hotspot,
			Importance: TierHotspot,
			Label:      "Max Change " + intervalName(idx),
		})
	}
	return out
}

func intervalName(idx int) string {
	if idx < len(intervalNames) {
		return intervalNames[idx]
	}
	return fmt.Sprintf("%dmin", idx)
}
