package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/indicator"
)

// EnvPrefix namespaces every environment override, e.g. MATRIX_STORE_PATH.
const EnvPrefix = "MATRIX"

// Config represents the complete application configuration
type Config struct {
	Store      StoreConfig      `yaml:"store" split_words:"true"`
	Sheets     SheetsConfig     `yaml:"sheets" split_words:"true"`
	Indicators IndicatorsConfig `yaml:"indicators" split_words:"true"`
	Rollback   RollbackConfig   `yaml:"rollback" split_words:"true"`
	Ledger     LedgerConfig     `yaml:"ledger" split_words:"true"`
	Logging    LoggingConfig    `yaml:"logging" split_words:"true"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" split_words:"true"`
	Server     ServerConfig     `yaml:"server" split_words:"true"`
}

// StoreConfig locates the workbook and names its fixed header cells.
type StoreConfig struct {
	Path         string `yaml:"path" split_words:"true" validate:"required"`
	CatalogSheet string `yaml:"catalog_sheet" split_words:"true" validate:"required,max=31"`
	NameHeader   string `yaml:"name_header" split_words:"true" validate:"required"`
	KeyHeader    string `yaml:"key_header" split_words:"true" validate:"required"`
}

// SheetsConfig maps source fields and indicators to sheet names.
type SheetsConfig struct {
	Close  string `yaml:"close" split_words:"true" validate:"required,max=31"`
	Volume string `yaml:"volume" split_words:"true" validate:"required,max=31"`
	Index  string `yaml:"index" split_words:"true" validate:"required,max=31"`
	Open   string `yaml:"open" split_words:"true" validate:"omitempty,max=31"`
	High   string `yaml:"high" split_words:"true" validate:"omitempty,max=31"`
	Low    string `yaml:"low" split_words:"true" validate:"omitempty,max=31"`
	Z20    string `yaml:"z20" split_words:"true" validate:"required,max=31"`
	Z60    string `yaml:"z60" split_words:"true" validate:"required,max=31"`
	Z120   string `yaml:"z120" split_words:"true" validate:"required,max=31"`
	Gap    string `yaml:"gap" split_words:"true" validate:"required,max=31"`
	Quant  string `yaml:"quant" split_words:"true" validate:"required,max=31"`
	Std    string `yaml:"std" split_words:"true" validate:"required,max=31"`
}

// IndicatorsConfig holds the rolling window lengths.
type IndicatorsConfig struct {
	ZWindows      []int `yaml:"z_windows" split_words:"true" validate:"required,min=1,dive,min=2"`
	GapWindow     int   `yaml:"gap_window" split_words:"true" validate:"min=2"`
	QuantWindow   int   `yaml:"quant_window" split_words:"true" validate:"min=2"`
	StdWindow     int   `yaml:"std_window" split_words:"true" validate:"min=2"`
	StdMeanWindow int   `yaml:"std_mean_window" split_words:"true" validate:"min=1"`
	Workers       int   `yaml:"workers" split_words:"true" validate:"min=1,max=64"`
}

// RollbackConfig lists the sheets each rollback operation touches.
type RollbackConfig struct {
	LatestSheets  []string `yaml:"latest_sheets" split_words:"true" validate:"required,min=1,dive,required"`
	RangeExcluded []string `yaml:"range_excluded" split_words:"true"`
}

// LedgerConfig locates the formula-generation ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled" split_words:"true"`
	Path    string `yaml:"path" split_words:"true" validate:"required_if=Enabled true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" split_words:"true" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" split_words:"true" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" split_words:"true" validate:"required_unless=Output console"`
}

// TelemetryConfig toggles tracing and metrics.
type TelemetryConfig struct {
	EnableTracing bool   `yaml:"enable_tracing" split_words:"true"`
	EnableMetrics bool   `yaml:"enable_metrics" split_words:"true"`
	TraceExporter string `yaml:"trace_exporter" split_words:"true" validate:"oneof=stdout none"`
	ServiceName   string `yaml:"service_name" split_words:"true" validate:"required"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" split_words:"true" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" split_words:"true" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" split_words:"true" validate:"gt=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" split_words:"true" validate:"gt=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" split_words:"true"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" split_words:"true"`
	RPS     float64 `yaml:"rps" split_words:"true" validate:"gt=0"`
	Burst   int     `yaml:"burst" split_words:"true" validate:"min=1"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path:         filepath.Join("data", "stock_value.xlsx"),
			CatalogSheet: "catalog",
			NameHeader:   "display name",
			KeyHeader:    "symbol key",
		},
		Sheets: SheetsConfig{
			Close:  "close",
			Volume: "volume",
			Index:  "index",
			Open:   "open",
			High:   "high",
			Low:    "low",
			Z20:    "z20",
			Z60:    "z60",
			Z120:   "z120",
			Gap:    "gap",
			Quant:  "quant",
			Std:    "std",
		},
		Indicators: IndicatorsConfig{
			ZWindows:      []int{20, 60, 120},
			GapWindow:     20,
			QuantWindow:   60,
			StdWindow:     20,
			StdMeanWindow: 20,
			Workers:       4,
		},
		Rollback: RollbackConfig{
			LatestSheets:  []string{"close", "volume", "index", "z20", "z60", "z120", "gap", "quant", "std"},
			RangeExcluded: []string{"catalog"},
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    filepath.Join("data", "ledger.db"),
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: filepath.Join("logs", "matrix.log"),
		},
		Telemetry: TelemetryConfig{
			EnableTracing: false,
			EnableMetrics: true,
			TraceExporter: "none",
			ServiceName:   "matrixctl",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and MATRIX_* environment variables, in increasing
// precedence. An empty path searches the usual locations; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, apperrors.NewConfigError(fmt.Sprintf("failed to load config file %s", path), err)
			}
		} else {
			cfg.resolvePaths(filepath.Dir(path))
		}
	}

	// Environment variables win over the file. No `default` tags are used so
	// unset variables leave file values alone.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file at filePath onto cfg.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// findConfigFile returns the first config file found in the usual locations.
func findConfigFile() string {
	locations := []string{
		"matrix.yaml",
		"config.yaml",
		filepath.Join("configs", "matrix.yaml"),
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Validate checks every section and returns a CONFIG error listing the
// offending fields by their YAML names.
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	err := v.Struct(c)
	if err == nil {
		return c.checkWindows()
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewConfigError("config validation failed", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		problems = append(problems, fmt.Sprintf("%s failed %s", field, fe.Tag()))
	}
	return apperrors.NewConfigError("config validation failed: "+strings.Join(problems, "; "), nil).
		WithContext("problems", problems)
}

func (c *Config) checkWindows() error {
	seen := make(map[int]bool, len(c.Indicators.ZWindows))
	for _, w := range c.Indicators.ZWindows {
		if seen[w] {
			return apperrors.NewConfigError(fmt.Sprintf("duplicate z window %d", w), nil)
		}
		seen[w] = true
	}
	return nil
}

// IndicatorParams converts the indicator and sheet sections into catalog parameters.
// Z windows without a dedicated sheet setting are written to "z<window>".
func (c *Config) IndicatorParams() indicator.Params {
	return indicator.Params{
		ZWindows:      append([]int(nil), c.Indicators.ZWindows...),
		GapWindow:     c.Indicators.GapWindow,
		QuantWindow:   c.Indicators.QuantWindow,
		StdWindow:     c.Indicators.StdWindow,
		StdMeanWindow: c.Indicators.StdMeanWindow,
		Sheets: map[indicator.Kind]string{
			indicator.ZKind(20):  c.Sheets.Z20,
			indicator.ZKind(60):  c.Sheets.Z60,
			indicator.ZKind(120): c.Sheets.Z120,
			indicator.KindGap:    c.Sheets.Gap,
			indicator.KindQuant:  c.Sheets.Quant,
			indicator.KindStd:    c.Sheets.Std,
		},
	}
}

// SourceSheet returns the sheet that stores a source field such as "close".
func (c *Config) SourceSheet(field string) (string, bool) {
	var sheet string
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "close":
		sheet = c.Sheets.Close
	case "volume":
		sheet = c.Sheets.Volume
	case "index":
		sheet = c.Sheets.Index
	case "open":
		sheet = c.Sheets.Open
	case "high":
		sheet = c.Sheets.High
	case "low":
		sheet = c.Sheets.Low
	}
	return sheet, sheet != ""
}

// SourceFields lists the fields that have a sheet configured.
func (c *Config) SourceFields() []string {
	var out []string
	for _, f := range []string{"close", "volume", "index", "open", "high", "low"} {
		if _, ok := c.SourceSheet(f); ok {
			out = append(out, f)
		}
	}
	return out
}
