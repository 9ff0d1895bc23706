package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/bankrotscan/internal/fetch"
	"github.com/nao1215/bankrotscan/internal/model"
	"github.com/nao1215/bankrotscan/internal/registry"
	"github.com/nao1215/bankrotscan/internal/transport"
)

// Default configuration values.
const (
	// DefaultTarget is the number of records collected per kind.
	DefaultTarget = 50

	// DefaultPageSize is the list page size requested from the registry.
	// The public site uses 15.
	DefaultPageSize = 15

	// DefaultPace is the delay after each enriched record. It keeps the
	// request rate close to what a person browsing the site produces.
	DefaultPace = 1500 * time.Millisecond

	// DefaultOutput is the workbook written when no path is given.
	DefaultOutput = "fedresurs_deep_parsed.xlsx"

	// DefaultTimeout bounds one HTTP exchange.
	DefaultTimeout = transport.DefaultTimeout

	// DefaultMaxAttempts is the number of tries per URL.
	DefaultMaxAttempts = fetch.DefaultMaxAttempts

	// DefaultBaseBackoff is the wait after the first retryable failure.
	DefaultBaseBackoff = fetch.DefaultBaseBackoff

	// DefaultMaxJitter bounds the random part of each backoff wait.
	DefaultMaxJitter = fetch.DefaultMaxJitter

	// DefaultKindConcurrency collects kinds one after the other.
	DefaultKindConcurrency = 1

	// DefaultMaxBodySize limits the response body size to read.
	DefaultMaxBodySize = transport.DefaultMaxBodySize

	// AppName is the application name used for XDG directory paths.
	AppName = "bankrotscan"
)

// Config holds all configuration options for a collection run. It is
// built once by the command layer and passed down explicitly.
type Config struct {
	// Target is the number of records to collect per kind.
	Target int

	// PageSize is the list page size.
	PageSize int

	// Pace is the delay after each enriched record. Zero disables it.
	Pace time.Duration

	// Output is the workbook path.
	Output string

	// Kinds are the record kinds to collect, in canonical order.
	Kinds []model.Kind

	// Timeout bounds one HTTP exchange.
	Timeout time.Duration

	// MaxAttempts, BaseBackoff and MaxJitter drive the fetch retry policy.
	MaxAttempts int
	BaseBackoff time.Duration
	MaxJitter   time.Duration

	// KindConcurrency is how many kinds are collected at the same time.
	KindConcurrency int

	// MaxBodySize caps response bodies, in bytes. Zero means the default.
	MaxBodySize int64

	// ProxyAddress is an optional SOCKS5 proxy (host:port or socks5:// URL).
	ProxyAddress string

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// Cookie is sent with every request when set.
	Cookie string

	// Headers are extra request headers.
	Headers map[string]string

	// Endpoints are the registry base URLs.
	Endpoints registry.Endpoints

	// ConfigFilePath is the YAML file to load. When empty, .bankrotscan
	// is searched in the current and home directories.
	ConfigFilePath string

	// EnvFile is a dotenv file with BANKROTSCAN_* variables.
	EnvFile string

	// DBDir is the ledger directory. Defaults to the XDG data directory.
	DBDir string

	// SaveToDB records the run in the ledger.
	SaveToDB bool

	// JSONReport and MarkdownReport select the summary format.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile also writes the summary to this path.
	ReportFile string

	// Verbose enables debug logging.
	Verbose bool

	// LogFormat is text, json or color.
	LogFormat string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Target:          DefaultTarget,
		PageSize:        DefaultPageSize,
		Pace:            DefaultPace,
		Output:          DefaultOutput,
		Kinds:           append([]model.Kind(nil), model.AllKinds...),
		Timeout:         DefaultTimeout,
		MaxAttempts:     DefaultMaxAttempts,
		BaseBackoff:     DefaultBaseBackoff,
		MaxJitter:       DefaultMaxJitter,
		KindConcurrency: DefaultKindConcurrency,
		MaxBodySize:     DefaultMaxBodySize,
		Endpoints:       registry.DefaultEndpoints(),
		DBDir:           XDGDataDir(),
		SaveToDB:        true,
	}
}

// XDGDataDir returns the XDG data directory for bankrotscan, where the
// run ledger lives. On Linux: ~/.local/share/bankrotscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.Target <= 0 {
		return ErrInvalidTarget
	}
	if c.PageSize <= 0 {
		return ErrInvalidPageSize
	}
	if c.Pace < 0 {
		return ErrInvalidPace
	}
	if c.Output == "" {
		return ErrNoOutput
	}
	if len(c.Kinds) == 0 {
		return ErrNoKinds
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxAttempts < 1 {
		return ErrInvalidAttempts
	}
	if c.BaseBackoff < 0 || c.MaxJitter < 0 {
		return ErrInvalidBackoff
	}
	if c.KindConcurrency <= 0 {
		return ErrInvalidKindConcurrency
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	for name, raw := range map[string]string{
		"list base":    c.Endpoints.ListBase,
		"list referer": c.Endpoints.ListReferer,
		"detail base":  c.Endpoints.DetailBase,
		"site base":    c.Endpoints.SiteBase,
	} {
		if raw == "" {
			continue
		}
		if err := checkEndpoint(raw); err != nil {
			return fmt.Errorf("%s %q: %w", name, raw, err)
		}
	}
	return nil
}

func checkEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidEndpoint
	}
	return nil
}
