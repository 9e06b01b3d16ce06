package jsonio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/forgemap/forgemap/internal/types"
)

// JSONLSink persists output records as one JSON object per line. Files are
// created lazily on the first non-empty write, so a run producing nothing
// leaves no files behind.
type JSONLSink struct {
	actionsPath    string
	activitiesPath string
}

// NewJSONLSink creates a sink writing actions and activities to the given
// paths.
func NewJSONLSink(actionsPath, activitiesPath string) *JSONLSink {
	return &JSONLSink{actionsPath: actionsPath, activitiesPath: activitiesPath}
}

// WriteActions persists the mapped actions.
func (s *JSONLSink) WriteActions(records []types.Record) error {
	return writeJSONL(s.actionsPath, records)
}

// WriteActivities persists the mapped activities.
func (s *JSONLSink) WriteActivities(records []types.Record) error {
	return writeJSONL(s.activitiesPath, records)
}

func writeJSONL(path string, records []types.Record) error {
	if len(records) == 0 {
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			file.Close()
			return fmt.Errorf("encoding record for %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return file.Close()
}
