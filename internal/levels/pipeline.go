package levels

import "github.com/dgnsrekt/gexbot-levels/internal/gex"

// Pipeline converts snapshots into final, display-ordered level lists.
// It holds no mutable state and is safe for concurrent use.
type Pipeline struct {
	builder *Builder
	params  Params
}

func NewPipeline(p Params) (*Pipeline, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{builder: NewBuilder(p), params: p}, nil
}

func (p *Pipeline) Params() Params {
	return p.params
}

// Run builds, ranks and deduplicates the levels for one snapshot.
// A nil snapshot produces an empty, non-nil slice.
func (p *Pipeline) Run(snap *gex.Snapshot, inst Instrument) []Level {
	return Dedupe(Rank(p.builder.Candidates(snap, inst)))
}
