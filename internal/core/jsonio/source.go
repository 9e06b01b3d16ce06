// Package jsonio reads raw event records and writes mapped output.
//
// Input shapes: a single file holding a JSON array or JSON lines, or a
// directory of .json files processed in sorted name order. Each file becomes
// one batch so the review filter's carry-over spans file boundaries the same
// way the events arrived.
package jsonio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forgemap/forgemap/internal/types"
)

// maxLineSize bounds a single JSON-lines record (16MB); forge payloads with
// inlined diffs can run large.
const maxLineSize = 16 * 1024 * 1024

// FileSource reads batches from a file or directory path.
type FileSource struct {
	path string
}

// NewFileSource creates a source over path; the path is not touched until
// Batches is called.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Batches yields one batch per input file, in sorted filename order.
func (s *FileSource) Batches() ([][]types.Record, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}

	if !info.IsDir() {
		records, err := ReadRecords(s.path)
		if err != nil {
			return nil, err
		}
		return [][]types.Record{records}, nil
	}

	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	batches := make([][]types.Record, 0, len(names))
	for _, name := range names {
		records, err := ReadRecords(filepath.Join(s.path, name))
		if err != nil {
			return nil, err
		}
		batches = append(batches, records)
	}
	return batches, nil
}

// ReadRecords loads one file containing either a JSON array of records or
// one JSON object per line.
func ReadRecords(path string) ([]types.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []types.Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return records, nil
	}

	var records []types.Record
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var record types.Record
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return nil, fmt.Errorf("parsing %s line %d: %w", path, line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}
