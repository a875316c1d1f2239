// Package archive keeps zstd-compressed copies of fetched snapshots so a run
// can be replayed offline with the convert command.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const Ext = ".json.zst"

type Writer struct {
	baseDir string
	encoder *zstd.Encoder
	now     func() time.Time
}

func NewWriter(baseDir string) (*Writer, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Writer{
		baseDir: baseDir,
		encoder: enc,
		now:     time.Now,
	}, nil
}

// Path returns where a snapshot fetched at t is stored:
// {base}/{YYYY-MM-DD}/{ticker}/{aggregation}_{HHMMSS}.json.zst (UTC).
func (w *Writer) Path(ticker, aggregation string, t time.Time) string {
	t = t.UTC()
	name := fmt.Sprintf("%s_%s%s", aggregation, t.Format("150405"), Ext)
	return filepath.Join(w.baseDir, t.Format("2006-01-02"), ticker, name)
}

// Save compresses body and writes it atomically. It returns the file path.
func (w *Writer) Save(ticker, aggregation string, body []byte) (string, error) {
	path := w.Path(ticker, aggregation, w.now())
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("creating directories: %w", err)
	}

	// EncodeAll is safe for concurrent use on a shared encoder.
	compressed := w.encoder.EncodeAll(body, nil)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, compressed, 0600); err != nil {
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return path, nil
}

// Close releases encoder resources.
func (w *Writer) Close() {
	if w.encoder != nil {
		w.encoder.Close()
	}
}

// ReadFile returns the decompressed contents of an archived snapshot.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	return data, nil
}

// IsArchive reports whether path looks like an archived snapshot.
func IsArchive(path string) bool {
	return strings.HasSuffix(path, Ext)
}
