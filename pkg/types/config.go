package types

import (
	"errors"
	"fmt"
	"time"
)

// WarehouseBackend selects the analytical store implementation.
type WarehouseBackend string

const (
	BackendBigQuery WarehouseBackend = "bigquery"
	BackendSQLite   WarehouseBackend = "sqlite"
)

// InsertIDMode selects the per-row insert ID sent as a deduplication hint.
type InsertIDMode string

const (
	InsertIDVideo InsertIDMode = "video_id"
	InsertIDUUID  InsertIDMode = "uuid"
	InsertIDNone  InsertIDMode = "none"
)

// WarehouseConfig holds settings for the destination store.
type WarehouseConfig struct {
	// Backend is bigquery or sqlite.
	Backend WarehouseBackend `json:"backend" yaml:"backend"`

	// ProjectID is the Google Cloud project that owns the dataset.
	ProjectID string `json:"project_id" yaml:"project_id"`

	// Dataset is the BigQuery dataset (or SQLite table prefix namespace).
	Dataset string `json:"dataset" yaml:"dataset"`

	// Table is the destination table for search results.
	Table string `json:"table" yaml:"table"`

	// KeyFile is the service account JSON key for BigQuery.
	KeyFile string `json:"key_file,omitempty" yaml:"key_file,omitempty"`

	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string `json:"sqlite_path" yaml:"sqlite_path"`
}

// UploadConfig holds settings for the batch uploader.
type UploadConfig struct {
	// ChunkSize is the number of rows per insert call (default 500).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// ExpiryDays is the partition expiry applied when a table is created (default 14).
	ExpiryDays int `json:"expiry_days" yaml:"expiry_days"`

	// InsertID is video_id, uuid, or none.
	InsertID InsertIDMode `json:"insert_id" yaml:"insert_id"`
}

// SampleConfig holds settings for the continuous sampler.
type SampleConfig struct {
	// PollInterval is both the window length and the sleep between polls (default 120s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// MinutesAgo offsets the window end from now (default 2m).
	MinutesAgo time.Duration `json:"minutes_ago" yaml:"minutes_ago"`

	// FlushThreshold is the buffer size that triggers an upload (default 250).
	FlushThreshold int `json:"flush_threshold" yaml:"flush_threshold"`

	// ErrorBackoff is the pause after a failed iteration (default 30s).
	ErrorBackoff time.Duration `json:"error_backoff" yaml:"error_backoff"`

	// CredentialTTL is how long a search client is used before it is rebuilt (default 1h).
	CredentialTTL time.Duration `json:"credential_ttl" yaml:"credential_ttl"`

	// SummaryInterval is the time between run summary reports (default 24h).
	SummaryInterval time.Duration `json:"summary_interval" yaml:"summary_interval"`

	// StudyGroup and DataSource label every sampled record.
	StudyGroup string `json:"study_group" yaml:"study_group"`
	DataSource string `json:"data_source" yaml:"data_source"`

	// Dedup drops records whose video ID was seen within DedupRetention.
	// When false, duplicates across polls are left to the store's insert ID hint.
	Dedup          bool          `json:"dedup" yaml:"dedup"`
	DedupRetention time.Duration `json:"dedup_retention" yaml:"dedup_retention"`
}

// KeywordConfig holds settings for the keyword search run.
type KeywordConfig struct {
	// MaxResults is the number of results requested per keyword (default 20, max 50).
	MaxResults int64 `json:"max_results" yaml:"max_results"`

	// SearchType is last-hour, top-rated, all-time, or today (default today).
	SearchType SearchType `json:"search_type" yaml:"search_type"`

	// CallInterval paces consecutive queries; it also scales the transient error backoff (default 2s).
	CallInterval time.Duration `json:"call_interval" yaml:"call_interval"`

	// BackupDir holds fallback files for rows that could not be inserted (default "data").
	BackupDir string `json:"backup_dir" yaml:"backup_dir"`

	DataSource string `json:"data_source" yaml:"data_source"`
}

// MailgunConfig configures exception and summary email. Empty APIKey disables it.
type MailgunConfig struct {
	APIBaseURL string `json:"api_base_url" yaml:"api_base_url"`
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	From       string `json:"from" yaml:"from"`
	To         string `json:"to" yaml:"to"`
}

// LogConfig configures the log stream.
type LogConfig struct {
	// File enables a rotating log file in addition to stderr.
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	Verbose bool   `json:"verbose" yaml:"verbose"`
}

// ObservatoryConfig groups all settings. It is built once at startup and
// passed to each component.
type ObservatoryConfig struct {
	// DeveloperKey is the YouTube Data API key.
	DeveloperKey string `json:"developer_key,omitempty" yaml:"developer_key,omitempty"`

	Warehouse WarehouseConfig `json:"warehouse" yaml:"warehouse"`
	Upload    UploadConfig    `json:"upload" yaml:"upload"`
	Sample    SampleConfig    `json:"sample" yaml:"sample"`
	Search    KeywordConfig   `json:"search" yaml:"search"`
	Mailgun   MailgunConfig   `json:"mailgun" yaml:"mailgun"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// DefaultConfig returns the settings used when the config file is silent.
func DefaultConfig() ObservatoryConfig {
	return ObservatoryConfig{
		Warehouse: WarehouseConfig{
			Backend:    BackendBigQuery,
			SQLitePath: "data/warehouse.db",
		},
		Upload: UploadConfig{
			ChunkSize:  500,
			ExpiryDays: 14,
			InsertID:   InsertIDVideo,
		},
		Sample: SampleConfig{
			PollInterval:    120 * time.Second,
			MinutesAgo:      2 * time.Minute,
			FlushThreshold:  250,
			ErrorBackoff:    30 * time.Second,
			CredentialTTL:   time.Hour,
			SummaryInterval: 24 * time.Hour,
			StudyGroup:      "random sample",
			DataSource:      "YouTube random sample",
			DedupRetention:  time.Hour,
		},
		Search: KeywordConfig{
			MaxResults:   20,
			SearchType:   SearchToday,
			CallInterval: 2 * time.Second,
			BackupDir:    "data",
			DataSource:   "YouTube search from keywords",
		},
	}
}

// MinInterval is the shortest accepted poll interval and error backoff.
const MinInterval = time.Second

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the settings needed by every command.
func (c ObservatoryConfig) Validate() error {
	if c.DeveloperKey == "" {
		return fmt.Errorf("%w: developer_key is required (config, YT_OBSERVATORY_DEVELOPER_KEY, or .secrets/youtube-developer-key)", ErrInvalidConfig)
	}
	switch c.Warehouse.Backend {
	case BackendBigQuery:
		if c.Warehouse.ProjectID == "" || c.Warehouse.Dataset == "" {
			return fmt.Errorf("%w: warehouse.project_id and warehouse.dataset are required for bigquery", ErrInvalidConfig)
		}
	case BackendSQLite:
		if c.Warehouse.SQLitePath == "" {
			return fmt.Errorf("%w: warehouse.sqlite_path is required for sqlite", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown warehouse.backend %q", ErrInvalidConfig, c.Warehouse.Backend)
	}
	if c.Warehouse.Table == "" {
		return fmt.Errorf("%w: warehouse.table is required", ErrInvalidConfig)
	}
	if c.Sample.PollInterval < MinInterval || c.Sample.ErrorBackoff < MinInterval {
		return fmt.Errorf("%w: sample.poll_interval and sample.error_backoff must be at least %s", ErrInvalidConfig, MinInterval)
	}
	if c.Sample.FlushThreshold <= 0 {
		return fmt.Errorf("%w: sample.flush_threshold must be positive", ErrInvalidConfig)
	}
	if c.Search.CallInterval < 0 {
		return fmt.Errorf("%w: search.call_interval must not be negative", ErrInvalidConfig)
	}
	switch c.Upload.InsertID {
	case InsertIDVideo, InsertIDUUID, InsertIDNone:
	default:
		return fmt.Errorf("%w: unknown upload.insert_id %q", ErrInvalidConfig, c.Upload.InsertID)
	}
	return nil
}
