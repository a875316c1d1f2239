package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgnsrekt/gexbot-levels/internal/levels"
)

// InvalidInstrument represents an instrument mapping that cannot be used
type InvalidInstrument struct {
	Source string
	Reason string
}

// ValidationErrors collects all instrument validation errors
type ValidationErrors struct {
	Empty              bool
	InvalidInstruments []InvalidInstrument
	DuplicateSources   []string
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return e.Empty || len(e.InvalidInstruments) > 0 || len(e.DuplicateSources) > 0
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("instrument validation failed:\n")

	if e.Empty {
		sb.WriteString("\nNo instruments configured\n")
	}

	if len(e.InvalidInstruments) > 0 {
		sb.WriteString("\nInvalid instruments:\n")
		for _, ii := range e.InvalidInstruments {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", ii.Source, ii.Reason))
		}
	}

	if len(e.DuplicateSources) > 0 {
		sb.WriteString("\nDuplicate source symbols:\n")
		for _, s := range e.DuplicateSources {
			sb.WriteString(fmt.Sprintf("  - %s\n", s))
		}
	}

	return sb.String()
}

// ValidateInstruments checks every mapping up front so a bad ratio aborts the
// run before any conversion pass starts.
func ValidateInstruments(instruments []InstrumentConfig) error {
	errs := &ValidationErrors{Empty: len(instruments) == 0}

	seen := make(map[string]bool)
	for i, ic := range instruments {
		inst := ic.Instrument()
		name := inst.Source
		if name == "" {
			name = fmt.Sprintf("instruments[%d]", i)
		}

		if err := inst.Validate(); err != nil {
			errs.InvalidInstruments = append(errs.InvalidInstruments, InvalidInstrument{
				Source: name,
				Reason: reason(ic, err),
			})
		}

		if inst.Source != "" {
			if seen[inst.Source] {
				errs.DuplicateSources = append(errs.DuplicateSources, inst.Source)
			}
			seen[inst.Source] = true
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func reason(ic InstrumentConfig, err error) string {
	switch {
	case errors.Is(err, levels.ErrMissingSymbol):
		return "source and target are required"
	case errors.Is(err, levels.ErrInvalidRatio):
		return fmt.Sprintf("ratio must be > 0 (got %v)", ic.Ratio)
	default:
		return err.Error()
	}
}
