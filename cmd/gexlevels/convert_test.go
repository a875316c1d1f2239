package main

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbot-levels/internal/archive"
)

const sampleSnapshot = `{"ticker":"SPX","timestamp":1763132400,"spot":6010,"zero_gamma":6000,"strikes":[[6020,120,80]]}`

func TestReadSnapshot(t *testing.T) {
	logger = zap.NewNop()
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "spx.json")
	if err := os.WriteFile(jsonPath, []byte(sampleSnapshot), 0600); err != nil {
		t.Fatal(err)
	}

	w, err := archive.NewWriter(filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	zstPath, err := w.Save("SPX", "full", []byte(sampleSnapshot))
	if err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{jsonPath, zstPath} {
		snap, err := readSnapshot(path)
		if err != nil {
			t.Fatalf("readSnapshot(%s): %v", filepath.Base(path), err)
		}
		if snap.Ticker != "SPX" || snap.ZeroGamma.Float() != 6000 {
			t.Errorf("%s: unexpected snapshot %+v", filepath.Base(path), snap)
		}
	}
}

func TestReadSnapshot_Errors(t *testing.T) {
	logger = zap.NewNop()
	dir := t.TempDir()

	if _, err := readSnapshot(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"spot":"6010"}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := readSnapshot(bad); err == nil {
		t.Error("expected error for wrong-typed spot")
	}
}
