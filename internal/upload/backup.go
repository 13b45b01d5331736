// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package upload

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BackupFileName returns the fallback file for chunk index of a batch.
func BackupFileName(backupPath string, index int) string {
	return fmt.Sprintf("%s.%d", backupPath, index)
}

// WriteBackup writes rows to path as newline-delimited JSON, one object per
// line. Parent directories are created. The file is written to a temp file
// in the same directory and renamed into place so a reader never sees a
// partial batch.
func WriteBackup(path string, rows []map[string]any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, r := range rows {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding backup row %d: %w", i, err)
		}
	}

	tmpFile, err := os.CreateTemp(dir, ".backup-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(buf.Bytes())
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing backup: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// ReadBackup parses a fallback file back into rows. Numbers are decoded as
// int64 when integral and float64 otherwise. Blank lines are skipped.
func ReadBackup(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening backup: %w", err)
	}
	defer f.Close()
	return decodeBackup(f)
}

func decodeBackup(r io.Reader) ([]map[string]any, error) {
	var rows []map[string]any
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var row map[string]any
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("parsing backup line %d: %w", line, err)
		}
		rows = append(rows, Scrub(row).(map[string]any))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading backup: %w", err)
	}
	return rows, nil
}
