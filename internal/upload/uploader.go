// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package upload loads record batches into the warehouse in fixed-size
// chunks. A chunk that cannot be inserted is written to a local
// newline-delimited JSON fallback file and the next chunk is attempted.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/yt-observatory/internal/warehouse"
	"github.com/pdiddy/yt-observatory/pkg/types"
)

// ErrTableUnavailable marks chunks skipped because the destination table
// could not be found or created.
var ErrTableUnavailable = errors.New("table does not exist")

// errorMessageLimit caps the error text carried in a Result.
const errorMessageLimit = 200

// Options control one Upload call.
type Options struct {
	// ChunkSize is the number of rows per insert call (DefaultChunkSize when <= 0).
	ChunkSize int

	// BackupPath is the fallback file prefix. Failed chunk i is written to
	// "{BackupPath}.{i}". Empty means failed chunks are lost.
	BackupPath string

	// InsertID selects the per-row deduplication hint.
	InsertID types.InsertIDMode

	// Partitioning is applied if the table has to be created.
	Partitioning warehouse.Partitioning
}

// OptionsFromConfig builds Options from the upload settings.
func OptionsFromConfig(cfg types.UploadConfig, backupPath string) Options {
	return Options{
		ChunkSize:  cfg.ChunkSize,
		BackupPath: backupPath,
		InsertID:   cfg.InsertID,
		Partitioning: warehouse.Partitioning{
			DayPartitioned: true,
			Expiry:         time.Duration(cfg.ExpiryDays) * 24 * time.Hour,
		},
	}
}

// Result reports the outcome of one Upload call.
type Result struct {
	Chunks   int // chunks attempted
	Failed   int // chunks not inserted
	Inserted int // rows inserted
	BackedUp int // rows written to fallback files
	Lost     int // rows neither inserted nor written to a fallback file

	// LastOK reports whether the last chunk attempted was inserted. It is
	// kept for diagnostics; use OK for the batch outcome.
	LastOK bool

	BackupFiles []string
	LastError   string
}

// OK reports whether every chunk was inserted. An empty batch is OK.
func (r Result) OK() bool {
	return r.Failed == 0
}

// Uploader writes batches to a Warehouse.
type Uploader struct {
	Warehouse warehouse.Warehouse
	Logger    *slog.Logger

	// NewID generates insert IDs in uuid mode. Defaults to uuid.NewString.
	NewID func() string
}

// New returns an Uploader for w. A nil logger uses slog.Default().
func New(w warehouse.Warehouse, logger *slog.Logger) *Uploader {
	return &Uploader{Warehouse: w, Logger: logger, NewID: uuid.NewString}
}

func (u *Uploader) logger() *slog.Logger {
	if u.Logger == nil {
		return slog.Default()
	}
	return u.Logger
}

// Upload converts records to store rows and uploads them.
func (u *Uploader) Upload(ctx context.Context, schema warehouse.Schema, records []types.VideoRecord, ref warehouse.TableRef, opts Options) Result {
	rows := make([]map[string]any, len(records))
	for i, r := range records {
		rows[i] = r.Row()
	}
	return u.UploadRows(ctx, schema, rows, ref, opts)
}

// UploadRows ensures the table exists, scrubs rows, and inserts them chunk
// by chunk. A chunk failure never stops later chunks. Upload never returns
// an error; the Result describes what happened to every row.
func (u *Uploader) UploadRows(ctx context.Context, schema warehouse.Schema, rows []map[string]any, ref warehouse.TableRef, opts Options) Result {
	log := u.logger().With("table", ref.String())

	tableErr := u.ensureTable(ctx, schema, ref, opts.Partitioning)
	if tableErr != nil {
		log.Error("table unavailable, chunks will not be inserted", "error", tableErr)
	}

	rows = ScrubRows(rows)

	var res Result
	for index, chunk := range Chunks(rows, opts.ChunkSize) {
		res.Chunks++

		err := tableErr
		if err == nil {
			err = u.insertChunk(ctx, ref, chunk, opts.InsertID)
		}
		if err == nil {
			res.Inserted += len(chunk)
			res.LastOK = true
			log.Info("inserted chunk", "chunk", index, "rows", len(chunk))
			continue
		}

		res.LastOK = false
		res.Failed++
		res.LastError = truncate(err.Error(), errorMessageLimit)
		log.Error("chunk insert failed", "chunk", index, "rows", len(chunk), "error", res.LastError)

		if opts.BackupPath == "" {
			res.Lost += len(chunk)
			log.Error("no backup path, chunk rows lost",
				"chunk", index, "rows", len(chunk), "sample", rows[:min(3, len(rows))])
			continue
		}

		path := BackupFileName(opts.BackupPath, index)
		if werr := WriteBackup(path, chunk); werr != nil {
			res.Lost += len(chunk)
			log.Error("unable to save backup file", "path", path, "rows", len(chunk), "error", werr)
			continue
		}
		res.BackedUp += len(chunk)
		res.BackupFiles = append(res.BackupFiles, path)
		log.Warn("saved failed chunk for later upload", "path", path, "rows", len(chunk))
	}
	return res
}

// ensureTable creates the table when it is absent. Creation is attempted
// once; there is no retry.
func (u *Uploader) ensureTable(ctx context.Context, schema warehouse.Schema, ref warehouse.TableRef, p warehouse.Partitioning) error {
	exists, err := u.Warehouse.TableExists(ctx, ref)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTableUnavailable, err)
	}
	if exists {
		return nil
	}
	u.logger().Info("creating table", "table", ref.String(), "expiry", p.Expiry)
	if err := u.Warehouse.CreateTable(ctx, ref, schema, p); err != nil {
		return fmt.Errorf("%w: %v", ErrTableUnavailable, err)
	}
	return nil
}

// insertChunk inserts one chunk. Any returned error, any rejected row, or
// a panic inside the warehouse client fails the chunk as a whole.
func (u *Uploader) insertChunk(ctx context.Context, ref warehouse.TableRef, chunk []map[string]any, mode types.InsertIDMode) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("insert panicked: %v", r)
		}
	}()

	rows := make([]warehouse.Row, len(chunk))
	for i, values := range chunk {
		rows[i] = warehouse.Row{InsertID: u.insertID(values, mode), Values: values}
	}

	rowErrs, err := u.Warehouse.InsertRows(ctx, ref, rows)
	if err != nil {
		return err
	}
	if len(rowErrs) > 0 {
		return fmt.Errorf("%d of %d rows rejected, first: %w", len(rowErrs), len(rows), rowErrs[0])
	}
	return nil
}

func (u *Uploader) insertID(values map[string]any, mode types.InsertIDMode) string {
	switch mode {
	case types.InsertIDUUID:
		if u.NewID == nil {
			return uuid.NewString()
		}
		return u.NewID()
	case types.InsertIDNone:
		return ""
	default:
		id, _ := values[types.ColVideoID].(string)
		return id
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
