// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by sources that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "macrofetch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetryConfig bounds the retry loop wrapped around every source request.
type RetryConfig struct {
	// MaxAttempts is the total number of calls made before giving up
	// (default 4).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// InitialBackoff is the delay before the first retry; each further
	// retry doubles it (default 1s).
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
}

// CleanConfig holds the shared table-cleaning switches applied after
// coercion.
type CleanConfig struct {
	// SnakeCase renames every column to canonical lower_snake_case.
	SnakeCase bool `json:"snake_case" yaml:"snake_case"`

	// StripText trims surrounding whitespace from text cells.
	StripText bool `json:"strip_text" yaml:"strip_text"`

	// DropDuplicates removes exact full-row duplicates, keeping the first.
	DropDuplicates bool `json:"drop_duplicates" yaml:"drop_duplicates"`

	// DropAllNullColumns removes columns that are null in every row.
	DropAllNullColumns bool `json:"drop_all_null_columns" yaml:"drop_all_null_columns"`
}

// CatalogConfig holds settings for the NADA study-catalog source.
type CatalogConfig struct {
	HTTPConfig `yaml:",inline"`
	Retry      RetryConfig `json:"retry" yaml:"retry"`

	// BaseURL is the NADA instance root (e.g.
	// "https://microdatos.dane.gov.co/index.php").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// PageSize is the catalog search page size (default 100).
	PageSize int `json:"page_size" yaml:"page_size"`

	// MaxPages bounds catalog search pagination (default 10).
	MaxPages int `json:"max_pages" yaml:"max_pages"`
}

// DatasetConfig holds settings for the public-data dataset source.
type DatasetConfig struct {
	HTTPConfig `yaml:",inline"`
	Retry      RetryConfig `json:"retry" yaml:"retry"`
	Clean      CleanConfig `json:"clean" yaml:"clean"`

	// BaseURL is the PublicData endpoint.
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// DataverseConfig holds settings for the dataverse repository source.
type DataverseConfig struct {
	HTTPConfig `yaml:",inline"`
	Retry      RetryConfig `json:"retry" yaml:"retry"`

	// BaseURL is the dataverse instance root (e.g. "https://dataverse.nl").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIToken is an optional dataverse API token sent as X-Dataverse-key.
	APIToken string `json:"api_token,omitempty" yaml:"api_token,omitempty"`

	// CacheDir is where downloaded artifacts are kept between runs.
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`

	// UseCache gates the checksum-verified reuse of local artifacts.
	UseCache bool `json:"use_cache" yaml:"use_cache"`
}

// FlowsConfig holds settings for consolidating per-flow CSV exports.
type FlowsConfig struct {
	// DataDir is the directory holding one CSV per flow.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Encoding names the CSV byte encoding: "utf-8" (default), "latin1"
	// or "windows-1252".
	Encoding string `json:"encoding" yaml:"encoding"`
}

// PipelineConfig groups all source configurations.
type PipelineConfig struct {
	Catalog   CatalogConfig   `json:"catalog" yaml:"catalog"`
	Dataset   DatasetConfig   `json:"dataset" yaml:"dataset"`
	Dataverse DataverseConfig `json:"dataverse" yaml:"dataverse"`
	Flows     FlowsConfig     `json:"flows" yaml:"flows"`
}
