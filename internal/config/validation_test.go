package config

import (
	"strings"
	"testing"
)

func TestValidateInstruments_Valid(t *testing.T) {
	if err := ValidateInstruments(DefaultInstruments); err != nil {
		t.Errorf("expected no error for default instruments, got: %v", err)
	}
}

func TestValidateInstruments_Empty(t *testing.T) {
	err := ValidateInstruments(nil)
	if err == nil {
		t.Fatal("expected error for empty instrument list")
	}
	if !strings.Contains(err.Error(), "No instruments configured") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateInstruments_NonPositiveRatio(t *testing.T) {
	instruments := []InstrumentConfig{
		{Source: "SPX", Target: "ES", Ratio: -10},
		{Source: "NDX", Target: "NQ", Ratio: 0},
	}

	err := ValidateInstruments(instruments)
	if err == nil {
		t.Fatal("expected error for non-positive ratios")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "SPX: ratio must be > 0 (got -10)") {
		t.Errorf("error should mention SPX ratio, got: %v", err)
	}
	if !strings.Contains(errStr, "NDX: ratio must be > 0 (got 0)") {
		t.Errorf("error should mention NDX ratio, got: %v", err)
	}
}

func TestValidateInstruments_MissingTarget(t *testing.T) {
	err := ValidateInstruments([]InstrumentConfig{{Source: "RUT", Ratio: 10}})
	if err == nil || !strings.Contains(err.Error(), "RUT: source and target are required") {
		t.Errorf("expected missing target error, got: %v", err)
	}
}

func TestValidateInstruments_Duplicate(t *testing.T) {
	instruments := []InstrumentConfig{
		{Source: "SPX", Target: "ES", Ratio: 10},
		{Source: "spx", Target: "MES", Ratio: 10},
	}

	err := ValidateInstruments(instruments)
	if err == nil {
		t.Fatal("expected error for duplicate source")
	}
	if !strings.Contains(err.Error(), "Duplicate source symbols") {
		t.Errorf("error should list duplicates, got: %v", err)
	}
}
