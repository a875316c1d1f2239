package levels

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"sort"
	"testing"

	"github.com/dgnsrekt/gexbot-levels/internal/gex"
)

var es = Instrument{Source: "SPX", Target: "ES", Ratio: 10, Name: "S&P 500 E-mini"}

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(DefaultParams())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func TestConvert(t *testing.T) {
	tests := []struct {
		raw, ratio, want float64
	}{
		{5000, 10, 500},
		{6734.56, 10, 673.46},
		{24123.45, 40, 603.09},
		{-123.456, 1, -123.46},
		{0.004, 1, 0},
	}
	for _, tt := range tests {
		if got := Convert(tt.raw, tt.ratio); got != tt.want {
			t.Errorf("Convert(%v, %v) = %v, want %v", tt.raw, tt.ratio, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		gexVol, oi float64
		want       Kind
	}{
		{"vol dominant positive", 100, 10, Support},
		{"vol dominant negative", -100, 10, Resistance},
		{"oi dominant positive", 10, 100, Support},
		{"oi dominant negative", 10, -100, Resistance},
		{"tie goes to oi positive", -40, 40, Support},
		{"tie goes to oi negative", 40, -40, Resistance},
		{"all zero", 0, 0, Resistance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.gexVol, tt.oi); got != tt.want {
				t.Errorf("Classify(%v, %v) = %v, want %v", tt.gexVol, tt.oi, got, tt.want)
			}
		})
	}
}

func TestInstrumentValidate(t *testing.T) {
	if err := es.Validate(); err != nil {
		t.Errorf("expected valid instrument, got %v", err)
	}

	for _, ratio := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		inst := es
		inst.Ratio = ratio
		if err := inst.Validate(); !errors.Is(err, ErrInvalidRatio) {
			t.Errorf("ratio %v: expected ErrInvalidRatio, got %v", ratio, err)
		}
	}

	if err := (Instrument{Source: "SPX", Ratio: 10}).Validate(); !errors.Is(err, ErrMissingSymbol) {
		t.Errorf("expected ErrMissingSymbol, got %v", err)
	}
}

func TestNewPipeline_InvalidParams(t *testing.T) {
	if _, err := NewPipeline(Params{NoiseFloor: -1, ChangeFloor: 10, TopStrikes: 15}); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("expected ErrInvalidThreshold, got %v", err)
	}
	if _, err := NewPipeline(Params{NoiseFloor: 50, ChangeFloor: 10}); !errors.Is(err, ErrInvalidTopStrikes) {
		t.Errorf("expected ErrInvalidTopStrikes, got %v", err)
	}
}

func TestScenarioA_ZeroGammaOnly(t *testing.T) {
	snap := &gex.Snapshot{ZeroGamma: 5000}

	got := newPipeline(t).Run(snap, es)
	if len(got) != 1 {
		t.Fatalf("expected 1 level, got %d: %+v", len(got), got)
	}
	want := Level{Price: 500, Kind: ZeroGamma, Importance: 10, Label: "Zero Gamma"}
	if got[0] != want {
		t.Errorf("got %+v, want %+v", got[0], want)
	}
}

func TestScenarioB_StrikeSelection(t *testing.T) {
	snap := &gex.Snapshot{
		Strikes: []gex.Strike{
			{Price: 6000, GexVol: 100, GexOI: 0},
			{Price: 6010, GexVol: -5, GexOI: 0},
			{Price: 6020, GexVol: 40, GexOI: 40},
		},
	}

	got := newPipeline(t).Run(snap, es)
	if len(got) != 2 {
		t.Fatalf("expected 2 levels, got %d: %+v", len(got), got)
	}
	if got[0].Price != 600 || got[1].Price != 602 {
		t.Errorf("expected prices 600, 602; got %v, %v", got[0].Price, got[1].Price)
	}
	for _, l := range got {
		if l.Kind != Support || l.Importance != TierStrike || l.Label != "Support" {
			t.Errorf("unexpected strike level %+v", l)
		}
	}
}

func TestScenarioC_DuplicatePriceKeepsHigherTier(t *testing.T) {
	snap := &gex.Snapshot{
		MajorPosOI: 5000,
		SumGexOI:   321,
		Strikes:    []gex.Strike{{Price: 5000, GexVol: 100, GexOI: 0}},
	}

	got := newPipeline(t).Run(snap, es)
	if len(got) != 1 {
		t.Fatalf("expected 1 level after dedupe, got %d: %+v", len(got), got)
	}
	if got[0].Importance != TierMajorOI || got[0].Label != "Major Support (OI)" || got[0].GexOI != 321 {
		t.Errorf("expected major OI support to survive, got %+v", got[0])
	}
}

func TestScenarioD_UnavailableSnapshot(t *testing.T) {
	got := newPipeline(t).Run(nil, es)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestPipeline_TieOnTierAndPriceKeepsFirstConstructed(t *testing.T) {
	tests := []struct {
		name    string
		strikes []gex.Strike
		want    Level
	}{
		{
			name: "equal scores keep snapshot order",
			strikes: []gex.Strike{
				{Price: 6000.01, GexVol: 100, GexOI: 0},
				{Price: 6000.04, GexVol: 0, GexOI: -100},
			},
			want: Level{Price: 600, GexVol: 100, Kind: Support, Importance: TierStrike, Label: "Support"},
		},
		{
			name: "equal scores reversed",
			strikes: []gex.Strike{
				{Price: 6000.04, GexVol: 0, GexOI: -100},
				{Price: 6000.01, GexVol: 100, GexOI: 0},
			},
			want: Level{Price: 600, GexOI: -100, Kind: Resistance, Importance: TierStrike, Label: "Resistance"},
		},
		{
			name: "higher score is constructed first",
			strikes: []gex.Strike{
				{Price: 6000.01, GexVol: 60, GexOI: 0},
				{Price: 6000.04, GexVol: 0, GexOI: -200},
			},
			want: Level{Price: 600, GexOI: -200, Kind: Resistance, Importance: TierStrike, Label: "Resistance"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newPipeline(t).Run(&gex.Snapshot{Strikes: tt.strikes}, es)
			if len(got) != 1 {
				t.Fatalf("expected 1 level after dedupe, got %d: %+v", len(got), got)
			}
			if got[0] != tt.want {
				t.Errorf("got %+v, want %+v", got[0], tt.want)
			}
		})
	}
}

func TestCandidates_Majors(t *testing.T) {
	snap := &gex.Snapshot{
		MajorPosVol: 6100,
		MajorNegVol: 5900,
		MajorPosOI:  6200,
		MajorNegOI:  0,
		SumGexVol:   111,
		SumGexOI:    -222,
	}

	got := NewBuilder(DefaultParams()).Candidates(snap, es)
	want := []Level{
		{Price: 610, GexVol: 111, Kind: Support, Importance: 9, Label: "Major Support (Vol)"},
		{Price: 590, GexVol: 111, Kind: Resistance, Importance: 9, Label: "Major Resistance (Vol)"},
		{Price: 620, GexOI: -222, Kind: Support, Importance: 8, Label: "Major Support (OI)"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
}

func TestCandidates_Hotspots(t *testing.T) {
	snap := &gex.Snapshot{
		MaxPriors: []gex.Change{
			{Price: 6000, GexChange: 25},
			{Price: 6010, GexChange: -10}, // at the floor, dropped
			{Price: 6020, GexChange: -11},
			{Price: 6030, GexChange: 500}, // beyond the 3-interval window
		},
	}

	got := NewBuilder(DefaultParams()).Candidates(snap, es)
	want := []Level{
		{Price: 600, GexVol: 25, Kind: Hotspot, Importance: 6, Label: "Max Change 1min"},
		{Price: 602, GexVol: -11, Kind: Hotspot, Importance: 6, Label: "Max Change 10min"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
}

func TestCandidates_HotspotSkipsUnreportedSlot(t *testing.T) {
	snap := &gex.Snapshot{
		MaxPriors: []gex.Change{
			{},
			{Price: 6010, GexChange: 50},
		},
	}

	got := NewBuilder(DefaultParams()).Candidates(snap, es)
	if len(got) != 1 || got[0].Label != "Max Change 5min" {
		t.Errorf("expected single 5min hotspot, got %+v", got)
	}
}

func TestIntervalName(t *testing.T) {
	if intervalName(4) != "30min" {
		t.Errorf("expected 30min, got %s", intervalName(4))
	}
	if intervalName(7) != "7min" {
		t.Errorf("expected 7min fallback, got %s", intervalName(7))
	}
}

func TestCandidates_TopStrikesStableOnTies(t *testing.T) {
	params := DefaultParams()
	params.TopStrikes = 2
	snap := &gex.Snapshot{
		Strikes: []gex.Strike{
			{Price: 6030, GexVol: 60, GexOI: 0},
			{Price: 6010, GexVol: 0, GexOI: -60},
			{Price: 6020, GexVol: 30, GexOI: 30},
			{Price: 6040, GexVol: 500, GexOI: 0},
		},
	}

	got := NewBuilder(params).Candidates(snap, es)
	if len(got) != 2 {
		t.Fatalf("expected 2 strikes, got %d", len(got))
	}
	if got[0].Price != 604 || got[1].Price != 603 {
		t.Errorf("expected 604 then first-seen tie 603, got %v, %v", got[0].Price, got[1].Price)
	}
}

func TestCandidates_ZeroPricedStrikeIgnored(t *testing.T) {
	snap := &gex.Snapshot{Strikes: []gex.Strike{{Price: 0, GexVol: 1000, GexOI: 1000}}}
	if got := NewBuilder(DefaultParams()).Candidates(snap, es); len(got) != 0 {
		t.Errorf("expected no candidates, got %+v", got)
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	in := []Level{
		{Price: 3, Importance: 6},
		{Price: 1, Importance: 10},
		{Price: 2, Importance: 6},
	}
	orig := append([]Level(nil), in...)

	got := Rank(in)
	if !reflect.DeepEqual(in, orig) {
		t.Error("Rank modified its input")
	}
	wantPrices := []float64{1, 2, 3}
	for i, l := range got {
		if l.Price != wantPrices[i] {
			t.Errorf("position %d: got price %v want %v", i, l.Price, wantPrices[i])
		}
	}
}

func TestDedupe_KeepsFirst(t *testing.T) {
	in := []Level{
		{Price: 500, Importance: 9, Label: "first"},
		{Price: 500, Importance: 7, Label: "second"},
		{Price: 501, Importance: 7, Label: "third"},
	}
	got := Dedupe(in)
	if len(got) != 2 || got[0].Label != "first" || got[1].Label != "third" {
		t.Errorf("unexpected dedupe result %+v", got)
	}
}

func randomSnapshot(r *rand.Rand) *gex.Snapshot {
	pick := func() gex.Reading {
		if r.Intn(4) == 0 {
			return 0
		}
		return gex.Reading(5000 + float64(r.Intn(2000)))
	}

	snap := &gex.Snapshot{
		ZeroGamma:   pick(),
		MajorPosVol: pick(),
		MajorNegVol: pick(),
		MajorPosOI:  pick(),
		MajorNegOI:  pick(),
		SumGexVol:   r.Float64()*2000 - 1000,
		SumGexOI:    r.Float64()*2000 - 1000,
	}
	for i := 0; i < r.Intn(60); i++ {
		snap.Strikes = append(snap.Strikes, gex.Strike{
			Price:  gex.Reading(5000 + 5*float64(r.Intn(400))),
			GexVol: float64(r.Intn(200) - 100),
			GexOI:  float64(r.Intn(200) - 100),
		})
	}
	for i := 0; i < r.Intn(6); i++ {
		snap.MaxPriors = append(snap.MaxPriors, gex.Change{
			Price:     pick(),
			GexChange: float64(r.Intn(60) - 30),
		})
	}
	return snap
}

func TestPipeline_Properties(t *testing.T) {
	p := newPipeline(t)
	params := p.Params()
	r := rand.New(rand.NewSource(42))

	for iter := 0; iter < 500; iter++ {
		snap := randomSnapshot(r)
		got := p.Run(snap, es)

		// Sorted by (importance desc, price asc) and unique by price.
		sorted := sort.SliceIsSorted(got, func(i, j int) bool {
			if got[i].Importance != got[j].Importance {
				return got[i].Importance > got[j].Importance
			}
			return got[i].Price < got[j].Price
		})
		if !sorted {
			t.Fatalf("iteration %d: output not sorted: %+v", iter, got)
		}
		seen := map[float64]bool{}
		for _, l := range got {
			if seen[l.Price] {
				t.Fatalf("iteration %d: duplicate price %v", iter, l.Price)
			}
			seen[l.Price] = true
			if l.Price == 0 || math.IsNaN(l.Price) || math.IsInf(l.Price, 0) {
				t.Fatalf("iteration %d: invalid price %v", iter, l.Price)
			}
		}

		// Strike count and score ordering before dedupe.
		cands := NewBuilder(params).Candidates(snap, es)
		var kept []float64
		for _, c := range cands {
			if c.Importance == TierStrike {
				kept = append(kept, math.Abs(c.GexVol)+math.Abs(c.GexOI))
			}
		}
		var eligible []float64
		for _, s := range snap.Strikes {
			if score := math.Abs(s.GexVol) + math.Abs(s.GexOI); score > params.NoiseFloor {
				eligible = append(eligible, score)
			}
		}
		wantCount := len(eligible)
		if wantCount > params.TopStrikes {
			wantCount = params.TopStrikes
		}
		if len(kept) != wantCount {
			t.Fatalf("iteration %d: expected %d strike candidates, got %d", iter, wantCount, len(kept))
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(eligible)))
		if wantCount > 0 && wantCount < len(eligible) {
			minKept := kept[len(kept)-1]
			if eligible[wantCount] > minKept {
				t.Fatalf("iteration %d: discarded score %v beats kept %v", iter, eligible[wantCount], minKept)
			}
		}

		// Idempotence.
		if again := p.Run(snap, es); !reflect.DeepEqual(got, again) {
			t.Fatalf("iteration %d: pipeline not deterministic", iter)
		}
	}
}
