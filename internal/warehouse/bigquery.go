// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package warehouse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// BigQuery writes to Google BigQuery with streaming inserts.
type BigQuery struct {
	client *bigquery.Client
}

// NewBigQuery connects to projectID. When keyFile is empty the default
// application credentials are used.
func NewBigQuery(ctx context.Context, projectID, keyFile string, opts ...option.ClientOption) (*BigQuery, error) {
	if keyFile != "" {
		opts = append(opts, option.WithCredentialsFile(keyFile))
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating BigQuery client: %w", err)
	}
	return &BigQuery{client: client}, nil
}

// Close releases the client.
func (b *BigQuery) Close() error {
	return b.client.Close()
}

func (b *BigQuery) table(ref TableRef) *bigquery.Table {
	if ref.Project != "" {
		return b.client.DatasetInProject(ref.Project, ref.Dataset).Table(ref.Table)
	}
	return b.client.Dataset(ref.Dataset).Table(ref.Table)
}

// TableExists fetches table metadata; a 404 means the table is absent.
func (b *BigQuery) TableExists(ctx context.Context, ref TableRef) (bool, error) {
	_, err := b.table(ref).Metadata(ctx)
	if err == nil {
		return true, nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("checking table %s: %w", ref, err)
}

// CreateTable creates the table with the schema and an ingestion-day
// partitioning whose partitions expire after p.Expiry.
func (b *BigQuery) CreateTable(ctx context.Context, ref TableRef, schema Schema, p Partitioning) error {
	md := &bigquery.TableMetadata{Schema: bigQuerySchema(schema)}
	if p.DayPartitioned {
		md.TimePartitioning = &bigquery.TimePartitioning{
			Type:       bigquery.DayPartitioningType,
			Expiration: p.Expiry,
		}
	}
	if err := b.table(ref).Create(ctx, md); err != nil {
		return fmt.Errorf("creating table %s: %w", ref, err)
	}
	return nil
}

// InsertRows streams rows in one request. Per-row rejections come back as
// RowErrors; transport and API failures as the error.
func (b *BigQuery) InsertRows(ctx context.Context, ref TableRef, rows []Row) ([]RowError, error) {
	savers := make([]bigquery.ValueSaver, len(rows))
	for i, r := range rows {
		savers[i] = valueSaver(r)
	}

	err := b.table(ref).Inserter().Put(ctx, savers)
	if err == nil {
		return nil, nil
	}
	var pme bigquery.PutMultiError
	if errors.As(err, &pme) {
		rowErrs := make([]RowError, 0, len(pme))
		for _, re := range pme {
			rowErrs = append(rowErrs, RowError{Index: re.RowIndex, Message: re.Errors.Error()})
		}
		return rowErrs, nil
	}
	return nil, fmt.Errorf("inserting into %s: %w", ref, err)
}

// valueSaver adapts a Row to bigquery.ValueSaver.
type valueSaver Row

func (v valueSaver) Save() (map[string]bigquery.Value, string, error) {
	m := make(map[string]bigquery.Value, len(v.Values))
	for k, val := range v.Values {
		m[k] = val
	}
	id := v.InsertID
	if id == "" {
		id = bigquery.NoDedupeID
	}
	return m, id, nil
}

func bigQuerySchema(schema Schema) bigquery.Schema {
	out := make(bigquery.Schema, len(schema))
	for i, f := range schema {
		mode := strings.ToUpper(f.Mode)
		out[i] = &bigquery.FieldSchema{
			Name:     f.Name,
			Type:     bigquery.FieldType(strings.ToUpper(f.Type)),
			Required: mode == "REQUIRED",
			Repeated: mode == "REPEATED",
		}
	}
	return out
}
