package review

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/albapepper/scoracle-fusion/internal/source"
)

// CSV file names written into the export directory.
const (
	CandidatesFile = "candidates.csv"
	MalformedFile  = "malformed.csv"
)

// MissingFile is the per-source missing-link file name.
func MissingFile(src source.Source) string {
	return "missing_" + string(src) + ".csv"
}

// WriteCSV writes one file per list into dir and returns the paths written.
// Files are rewritten in full each run. The run id is left out so that
// unchanged inputs produce identical files.
func (r *Report) WriteCSV(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	var written []string
	write := func(name string, header []string, rows [][]string) error {
		path := filepath.Join(dir, name)
		if err := writeFile(path, header, rows); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	candidateRows := make([][]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		candidateRows = append(candidateRows, []string{
			strconv.Itoa(c.Priority),
			c.Kind,
			c.Pair,
			string(c.X.Source), c.X.ID, c.XName, c.XNormalized,
			string(c.Y.Source), c.Y.ID, c.YName, c.YNormalized,
			c.Method,
			formatScore(c.Score),
			formatScore(c.Threshold),
			joinIDs(c.PlayerIDs),
		})
	}
	if err := write(CandidatesFile, []string{
		"priority", "kind", "pair",
		"x_source", "x_id", "x_name", "x_normalized",
		"y_source", "y_id", "y_name", "y_normalized",
		"method", "score", "threshold", "player_ids",
	}, candidateRows); err != nil {
		return written, err
	}

	for _, src := range source.All {
		var rows [][]string
		for _, m := range r.Missing[src] {
			held := make([]string, len(m.Held))
			for i, ref := range m.Held {
				held[i] = ref.String()
			}
			rows = append(rows, []string{strconv.FormatInt(m.PlayerID, 10), m.DisplayName, strings.Join(held, " ")})
		}
		if err := write(MissingFile(src), []string{"player_id", "display_name", "held_ids"}, rows); err != nil {
			return written, err
		}
	}

	var malformed [][]string
	for _, m := range r.Malformed {
		malformed = append(malformed, []string{string(m.Record.Source), m.Record.ID, m.RawName, m.Reason})
	}
	if err := write(MalformedFile, []string{"source", "source_id", "raw_name", "reason"}, malformed); err != nil {
		return written, err
	}
	return written, nil
}

// writeFile writes to a temporary file and renames it into place, so a
// reader never sees a half-written export.
func writeFile(path string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, " ")
}
