package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dgnsrekt/gexbot-levels/internal/levels"
)

// Header is the column layout shared by every level file.
var Header = []string{"strike", "gex_vol", "gex_oi", "type", "importance", "label"}

// TimestampLayout is the format of the last-update marker.
const TimestampLayout = "2006-01-02 15:04:05 UTC"

// WriteCSV writes levels in the order given, header first.
func WriteCSV(w io.Writer, lvls []levels.Level) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, l := range lvls {
		if err := cw.Write(record(l)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(l levels.Level) []string {
	return []string{
		strconv.FormatFloat(l.Price, 'f', 2, 64),
		strconv.FormatFloat(l.GexVol, 'f', -1, 64),
		strconv.FormatFloat(l.GexOI, 'f', -1, 64),
		l.Kind.String(),
		strconv.Itoa(l.Importance),
		l.Label,
	}
}

// WriteCSVFile atomically replaces path with the given levels.
func WriteCSVFile(path string, lvls []levels.Level) error {
	return writeAtomic(path, func(f *os.File) error {
		return WriteCSV(f, lvls)
	})
}

// WriteTimestamp records t (in UTC) as the last successful update.
func WriteTimestamp(path string, t time.Time) error {
	return writeAtomic(path, func(f *os.File) error {
		_, err := fmt.Fprintln(f, t.UTC().Format(TimestampLayout))
		return err
	})
}
