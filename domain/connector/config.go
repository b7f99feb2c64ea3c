package connector

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Config is the kind-specific configuration of a connector. Configs are
// decoded from untyped JSON bodies and validated before a connector is
// created or updated.
type Config interface {
	Kind() Type
	Validate() error
}

// SQL dialects accepted by SQLConfig.
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectMSSQL    = "mssql"
	DialectOracle   = "oracle"
)

// SQLConfig drives the metadata-first SQL connector. metadata_query must
// return (external_id, last_modified); data_query must contain the {IDS}
// placeholder and may return arbitrary columns, which become document
// attributes and template fields.
type SQLConfig struct {
	Dialect          string `mapstructure:"dialect"`
	ConnectionString string `mapstructure:"connection_string"`
	MetadataQuery    string `mapstructure:"metadata_query"`
	DataQuery        string `mapstructure:"data_query"`
	PermissionQuery  string `mapstructure:"permission_query"`
	TitleColumn      string `mapstructure:"title_column"`
	ContentColumn    string `mapstructure:"content_column"`
	QueryTimeoutSecs int    `mapstructure:"query_timeout_seconds"`
}

// Kind implements Config.
func (c SQLConfig) Kind() Type { return TypeSQL }

// Validate implements Config.
func (c SQLConfig) Validate() error {
	var errs []error
	switch c.Dialect {
	case DialectPostgres, DialectMySQL, DialectMSSQL, DialectOracle:
	default:
		errs = append(errs, fmt.Errorf("unknown sql dialect: %q", c.Dialect))
	}
	if c.ConnectionString == "" {
		errs = append(errs, errors.New("connection_string is required"))
	}
	if c.MetadataQuery == "" {
		errs = append(errs, errors.New("metadata_query is required"))
	}
	if c.DataQuery == "" {
		errs = append(errs, errors.New("data_query is required"))
	} else if !strings.Contains(c.DataQuery, "{IDS}") {
		errs = append(errs, errors.New("data_query must contain the {IDS} placeholder"))
	}
	if c.PermissionQuery != "" && !strings.Contains(c.PermissionQuery, "{USER}") {
		errs = append(errs, errors.New("permission_query must contain the {USER} placeholder"))
	}
	if c.ContentColumn == "" {
		errs = append(errs, errors.New("content_column is required"))
	}
	return errors.Join(errs...)
}

// WebConfig drives the polite web spider.
type WebConfig struct {
	SeedURLs        []string `mapstructure:"seed_urls"`
	MaxDepth        int      `mapstructure:"max_depth"`
	MaxPages        int      `mapstructure:"max_pages"`
	SameDomainOnly  bool     `mapstructure:"same_domain_only"`
	IncludePatterns []string `mapstructure:"include_patterns"`
	ExcludePatterns []string `mapstructure:"exclude_patterns"`
	RequestsPerSec  float64  `mapstructure:"requests_per_second"`
}

// Kind implements Config.
func (c WebConfig) Kind() Type { return TypeWeb }

// Validate implements Config.
func (c WebConfig) Validate() error {
	var errs []error
	if len(c.SeedURLs) == 0 {
		errs = append(errs, errors.New("seed_urls is required"))
	}
	if c.MaxDepth < 0 {
		errs = append(errs, errors.New("max_depth must not be negative"))
	}
	if c.MaxPages < 0 {
		errs = append(errs, errors.New("max_pages must not be negative"))
	}
	for _, p := range append(c.IncludePatterns, c.ExcludePatterns...) {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("invalid pattern %q: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// FolderConfig drives the filesystem connector. Binary extensions are
// routed to the external text extractor when one is configured.
type FolderConfig struct {
	Path       string   `mapstructure:"path"`
	Extensions []string `mapstructure:"extensions"`
	Watch      bool     `mapstructure:"watch"`
}

// Kind implements Config.
func (c FolderConfig) Kind() Type { return TypeFolder }

// Validate implements Config.
func (c FolderConfig) Validate() error {
	var errs []error
	if c.Path == "" {
		errs = append(errs, errors.New("path is required"))
	}
	if len(c.Extensions) == 0 {
		errs = append(errs, errors.New("extensions is required"))
	}
	return errors.Join(errs...)
}

// Nostr ingestion strategies.
const (
	StrategyRecentQuality      = "recent_quality"
	StrategyPopularContent     = "popular_content"
	StrategyComprehensiveCrawl = "comprehensive_crawl"
)

// NostrConfig drives relay ingestion.
type NostrConfig struct {
	Relays    []string `mapstructure:"relays"`
	Strategy  string   `mapstructure:"strategy"`
	Kinds     []int    `mapstructure:"kinds"`
	Authors   []string `mapstructure:"authors"`
	MaxEvents int      `mapstructure:"max_events"`
}

// Kind implements Config.
func (c NostrConfig) Kind() Type { return TypeNostr }

// Validate implements Config.
func (c NostrConfig) Validate() error {
	var errs []error
	switch c.Strategy {
	case StrategyRecentQuality, StrategyPopularContent, StrategyComprehensiveCrawl:
	default:
		errs = append(errs, fmt.Errorf("unknown ingestion strategy: %q", c.Strategy))
	}
	if c.MaxEvents < 0 {
		errs = append(errs, errors.New("max_events must not be negative"))
	}
	return errors.Join(errs...)
}

// RSSConfig drives the podcast connector.
type RSSConfig struct {
	FeedURL      string `mapstructure:"feed_url"`
	Transcribe   bool   `mapstructure:"transcribe"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
}

// Kind implements Config.
func (c RSSConfig) Kind() Type { return TypeRSS }

// Validate implements Config.
func (c RSSConfig) Validate() error {
	var errs []error
	if c.FeedURL == "" {
		errs = append(errs, errors.New("feed_url is required"))
	}
	if c.ChunkOverlap < 0 || c.ChunkSize < 0 {
		errs = append(errs, errors.New("chunk sizes must not be negative"))
	}
	if c.ChunkSize > 0 && c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, errors.New("chunk_overlap must be smaller than chunk_size"))
	}
	return errors.Join(errs...)
}

// ParseConfig decodes an untyped config body into the typed variant for
// the given kind. Unknown fields are rejected.
func ParseConfig(kind Type, raw map[string]any) (Config, error) {
	var target Config
	switch kind {
	case TypeSQL:
		target = &SQLConfig{}
	case TypeWeb:
		target = &WebConfig{}
	case TypeFolder:
		target = &FolderConfig{}
	case TypeNostr:
		target = &NostrConfig{}
	case TypeRSS:
		target = &RSSConfig{}
	default:
		return nil, fmt.Errorf("unknown connector type: %q", kind)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", kind, err)
	}

	switch c := target.(type) {
	case *SQLConfig:
		return *c, nil
	case *WebConfig:
		return *c, nil
	case *FolderConfig:
		return *c, nil
	case *NostrConfig:
		return *c, nil
	case *RSSConfig:
		return *c, nil
	}
	return nil, fmt.Errorf("unknown connector type: %q", kind)
}
