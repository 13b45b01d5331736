// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package warehouse is the analytical store the uploader writes to. BigQuery
// is the production backend; SQLite serves local runs and tests.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/yt-observatory/pkg/types"
)

// TableRef names a destination table.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

func (r TableRef) String() string {
	if r.Project == "" {
		return r.Dataset + "." + r.Table
	}
	return r.Project + ":" + r.Dataset + "." + r.Table
}

// Field is one column definition.
type Field struct {
	Name string
	Type string // STRING, TIMESTAMP, INTEGER, FLOAT, BOOLEAN
	Mode string // NULLABLE (default), REQUIRED, REPEATED
}

// Schema is an ordered column list.
type Schema []Field

// VideoSchema is the search results table layout.
var VideoSchema = Schema{
	{Name: types.ColPublishedAt, Type: "TIMESTAMP", Mode: "NULLABLE"},
	{Name: types.ColTitle, Type: "STRING", Mode: "NULLABLE"},
	{Name: types.ColVideoID, Type: "STRING", Mode: "NULLABLE"},
	{Name: types.ColChannelTitle, Type: "STRING", Mode: "NULLABLE"},
	{Name: types.ColDescription, Type: "STRING", Mode: "NULLABLE"},
	{Name: types.ColDataSource, Type: "STRING", Mode: "NULLABLE"},
	{Name: types.ColSearchTerm, Type: "STRING"},
	{Name: types.ColSearchType, Type: "STRING"},
	{Name: types.ColSearchTime, Type: "TIMESTAMP", Mode: "NULLABLE"},
	{Name: types.ColStudyGroup, Type: "STRING", Mode: "NULLABLE"},
}

// Partitioning is applied when a table is created.
type Partitioning struct {
	// DayPartitioned partitions rows by ingestion day.
	DayPartitioned bool
	// Expiry removes partitions older than this; zero keeps them forever.
	Expiry time.Duration
}

// Row is one insert payload. Values hold only JSON-compatible scalars, maps
// and slices. An empty InsertID sends no deduplication hint.
type Row struct {
	InsertID string
	Values   map[string]any
}

// RowError reports a row the store rejected.
type RowError struct {
	Index   int
	Message string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Index, e.Message)
}

// Warehouse is the store collaborator used by the uploader.
type Warehouse interface {
	TableExists(ctx context.Context, ref TableRef) (bool, error)
	CreateTable(ctx context.Context, ref TableRef, schema Schema, p Partitioning) error
	// InsertRows inserts rows. A nil error with an empty slice is success;
	// a non-empty slice lists the rejected rows.
	InsertRows(ctx context.Context, ref TableRef, rows []Row) ([]RowError, error)
	Close() error
}

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown warehouse backend")

// Open connects to the backend named in cfg.
func Open(ctx context.Context, cfg types.WarehouseConfig) (Warehouse, error) {
	switch cfg.Backend {
	case types.BackendBigQuery, "":
		return NewBigQuery(ctx, cfg.ProjectID, cfg.KeyFile)
	case types.BackendSQLite:
		return OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Ref builds the destination reference from cfg.
func Ref(cfg types.WarehouseConfig) TableRef {
	return TableRef{Project: cfg.ProjectID, Dataset: cfg.Dataset, Table: cfg.Table}
}
