package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors salesdash.yml. Zero values fall back to the defaults in
// defaults.go via ApplyDefaults.
type Config struct {
	Sources struct {
		Sales   Source `yaml:"sales"`
		Targets Source `yaml:"targets"`
	} `yaml:"sources"`

	// Schema selects the header naming scheme: canonical, ja or custom.
	Schema  string  `yaml:"schema"`
	Columns Columns `yaml:"columns"`

	Dashboard Dashboard `yaml:"dashboard"`

	Fetch struct {
		Timeout  time.Duration `yaml:"timeout"`
		MaxBytes int64         `yaml:"max_bytes"`
	} `yaml:"fetch"`

	Security struct {
		AllowedDirs  []string `yaml:"allowed_dirs"`
		EnableExport bool     `yaml:"enable_export"`
	} `yaml:"security"`

	Server struct {
		Addr                  string        `yaml:"addr"`
		MaxConcurrentRequests int           `yaml:"max_concurrent_requests"`
		OperationTimeout      time.Duration `yaml:"operation_timeout"`
		ShutdownTimeout       time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Summary struct {
		Model       string `yaml:"model"`
		TokenBudget int    `yaml:"token_budget"`
	} `yaml:"summary"`

	// Report controls number formatting in summaries and the HTTP API.
	Report struct {
		Language       string `yaml:"language"`        // BCP 47 tag, default en
		CurrencySymbol string `yaml:"currency_symbol"` // e.g. ¥ or $
	} `yaml:"report"`
}

// Source locates one input file: an http(s) URL or a local path.
type Source struct {
	Location  string `yaml:"location"`
	Encoding  string `yaml:"encoding"`  // utf-8 (default) or shift_jis
	Delimiter string `yaml:"delimiter"` // single character, default ","
	Sheet     string `yaml:"sheet"`     // xlsx only; first sheet when empty
}

// Columns maps logical field names to header names for the custom schema.
type Columns struct {
	Sales   map[string]string `yaml:"sales"`
	Targets map[string]string `yaml:"targets"`
}

// Dashboard holds the aggregation options.
type Dashboard struct {
	CurrentPeriod  string            `yaml:"current_period"`
	PreviousPeriod string            `yaml:"previous_period"`
	TopAreas       int               `yaml:"top_areas"`
	OtherLabel     string            `yaml:"other_label"`
	StrictNumbers  bool              `yaml:"strict_numbers"`
	KeepRawPeriods bool              `yaml:"keep_raw_periods"`
	InferTypes     bool              `yaml:"infer_types"`
	ProductAliases map[string]string `yaml:"product_aliases"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults. A missing file is not an error when allowMissing is set.
func Load(path string, allowMissing bool) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && allowMissing:
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	c.applyEnv()
	c.ApplyDefaults()
	return &c, nil
}

// PathFromEnv returns SALESDASH_CONFIG or the default path.
func PathFromEnv() string {
	if p := strings.TrimSpace(os.Getenv("SALESDASH_CONFIG")); p != "" {
		return p
	}
	return DefaultConfigPath
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("SALESDASH_SALES_SOURCE")); v != "" {
		c.Sources.Sales.Location = v
	}
	if v := strings.TrimSpace(os.Getenv("SALESDASH_TARGET_SOURCE")); v != "" {
		c.Sources.Targets.Location = v
	}
	if v := os.Getenv("SALESDASH_ALLOWED_DIRS"); v != "" {
		c.Security.AllowedDirs = filepath.SplitList(v)
	}
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SALESDASH_ENABLE_EXPORT")))
	if v == "1" || v == "true" || v == "yes" {
		c.Security.EnableExport = true
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Schema == "" {
		c.Schema = DefaultSchema
	}
	if c.Dashboard.TopAreas <= 0 {
		c.Dashboard.TopAreas = DefaultTopAreas
	}
	if c.Dashboard.OtherLabel == "" {
		c.Dashboard.OtherLabel = DefaultOtherLabel
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = DefaultFetchTimeout
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = DefaultMaxSourceBytes
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultHTTPAddr
	}
	if c.Server.MaxConcurrentRequests <= 0 {
		c.Server.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	if c.Server.OperationTimeout <= 0 {
		c.Server.OperationTimeout = DefaultOperationTimeout
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Summary.Model == "" {
		c.Summary.Model = DefaultSummaryModel
	}
	if c.Summary.TokenBudget <= 0 {
		c.Summary.TokenBudget = DefaultSummaryTokens
	}
	if c.Report.Language == "" {
		c.Report.Language = DefaultLanguage
	}
}
