// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/yt-observatory/pkg/types"
)

const (
	colKeyword    = "keyword"
	colStudyGroup = "study_group"
)

// Keyword file errors. Both are fatal at startup.
var (
	ErrMissingColumn = errors.New("keyword file missing required column")
	ErrEmptyField    = errors.New("keyword file row missing value")
)

// ReadKeywords loads the keyword list from a CSV file with a header row, or
// from a YAML list when the extension is .yaml or .yml. Every entry must have
// both a keyword and a study group.
func ReadKeywords(path string) ([]types.KeywordEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening keyword file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseKeywordYAML(f)
	default:
		return parseKeywordCSV(f)
	}
}

func parseKeywordCSV(r io.Reader) ([]types.KeywordEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: file is empty; need columns %s, %s", ErrMissingColumn, colKeyword, colStudyGroup)
		}
		return nil, fmt.Errorf("reading keyword header: %w", err)
	}

	kwIdx, sgIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case colKeyword:
			kwIdx = i
		case colStudyGroup:
			sgIdx = i
		}
	}
	if kwIdx < 0 || sgIdx < 0 {
		return nil, fmt.Errorf("%w: must contain columns %s, %s (found %v)", ErrMissingColumn, colKeyword, colStudyGroup, header)
	}

	var entries []types.KeywordEntry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading keyword row %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		entry := types.KeywordEntry{
			Keyword:    field(rec, kwIdx),
			StudyGroup: field(rec, sgIdx),
		}
		if err := checkEntry(entry, line); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseKeywordYAML(r io.Reader) ([]types.KeywordEntry, error) {
	var raw []map[string]string
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: file is empty; need fields %s, %s", ErrMissingColumn, colKeyword, colStudyGroup)
		}
		return nil, fmt.Errorf("parsing keyword file: %w", err)
	}

	entries := make([]types.KeywordEntry, 0, len(raw))
	for i, m := range raw {
		if _, ok := m[colKeyword]; !ok {
			return nil, fmt.Errorf("%w: entry %d has no %s", ErrMissingColumn, i+1, colKeyword)
		}
		if _, ok := m[colStudyGroup]; !ok {
			return nil, fmt.Errorf("%w: entry %d has no %s", ErrMissingColumn, i+1, colStudyGroup)
		}
		entry := types.KeywordEntry{
			Keyword:    strings.TrimSpace(m[colKeyword]),
			StudyGroup: strings.TrimSpace(m[colStudyGroup]),
		}
		if err := checkEntry(entry, i+1); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func field(rec []string, idx int) string {
	if idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func checkEntry(e types.KeywordEntry, row int) error {
	if e.Keyword == "" {
		return fmt.Errorf("%w: row %d has empty %s", ErrEmptyField, row, colKeyword)
	}
	if e.StudyGroup == "" {
		return fmt.Errorf("%w: row %d has empty %s", ErrEmptyField, row, colStudyGroup)
	}
	return nil
}
