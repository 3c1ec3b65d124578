package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"cdconv/internal/errors"
	"cdconv/internal/numbers"
	"cdconv/internal/paths"
	"cdconv/internal/rf2"
)

// FileName is the tool config base name searched for in . and the state directory.
const FileName = "cdconv"

// EnvPrefix prefixes environment overrides, e.g. CDCONV_OUTPUT_DIR.
const EnvPrefix = "CDCONV"

// Config represents the complete cdconv configuration
type Config struct {
	Output       OutputConfig   `json:"output" mapstructure:"output" toml:"output" yaml:"output"`
	AttributeMap string         `json:"attributeMap" mapstructure:"attributeMap" toml:"attributeMap" yaml:"attributeMap"`
	Concepts     ConceptsConfig `json:"concepts" mapstructure:"concepts" toml:"concepts" yaml:"concepts"`
	Families     FamiliesConfig `json:"families" mapstructure:"families" toml:"families" yaml:"families"`
	Logging      LoggingConfig  `json:"logging" mapstructure:"logging" toml:"logging" yaml:"logging"`
	History      HistoryConfig  `json:"history" mapstructure:"history" toml:"history" yaml:"history"`
	Metrics      MetricsConfig  `json:"metrics" mapstructure:"metrics" toml:"metrics" yaml:"metrics"`
}

// OutputConfig contains output location settings
type OutputConfig struct {
	Dir string `json:"dir" mapstructure:"dir" toml:"dir" yaml:"dir"`
	// Date (YYYYMMDD) stamped into output file names. Empty means the run date.
	Date string `json:"date" mapstructure:"date" toml:"date" yaml:"date"`
}

// ConceptsConfig names the concepts that identify number concepts
type ConceptsConfig struct {
	Number string `json:"number" mapstructure:"number" toml:"number" yaml:"number"`
	IsA    string `json:"isA" mapstructure:"isA" toml:"isA" yaml:"isA"`
}

// FamiliesConfig holds the glob patterns that classify archive entries
type FamiliesConfig struct {
	Relationship string `json:"relationship" mapstructure:"relationship" toml:"relationship" yaml:"relationship"`
	Description  string `json:"description" mapstructure:"description" toml:"description" yaml:"description"`
	OWL          string `json:"owl" mapstructure:"owl" toml:"owl" yaml:"owl"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level" toml:"level" yaml:"level"`
	Format     string `json:"format" mapstructure:"format" toml:"format" yaml:"format"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize" toml:"maxSize" yaml:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups" toml:"maxBackups" yaml:"maxBackups"`
}

// HistoryConfig controls the run ledger
type HistoryConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled" toml:"enabled" yaml:"enabled"`
	// Path of the ledger database. Empty means ~/.cdconv/history.db.
	Path string `json:"path" mapstructure:"path" toml:"path" yaml:"path"`
}

// MetricsConfig controls the metrics textfile
type MetricsConfig struct {
	Textfile string `json:"textfile" mapstructure:"textfile" toml:"textfile" yaml:"textfile"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	families := rf2.DefaultFamilies()
	return &Config{
		Output: OutputConfig{
			Dir: "output",
		},
		AttributeMap: "config.txt",
		Concepts: ConceptsConfig{
			Number: numbers.SCTIDNumber,
			IsA:    numbers.SCTIDIsA,
		},
		Families: FamiliesConfig{
			Relationship: families.Relationship,
			Description:  families.Description,
			OWL:          families.OWL,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "human",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.date", d.Output.Date)
	v.SetDefault("attributeMap", d.AttributeMap)
	v.SetDefault("concepts.number", d.Concepts.Number)
	v.SetDefault("concepts.isA", d.Concepts.IsA)
	v.SetDefault("families.relationship", d.Families.Relationship)
	v.SetDefault("families.description", d.Families.Description)
	v.SetDefault("families.owl", d.Families.OWL)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.maxSize", d.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}

// Load reads the tool configuration. An explicit path must exist; otherwise cdconv.toml,
// cdconv.yaml or cdconv.json is looked up in the working directory and then the state
// directory, and a missing file means defaults. CDCONV_* environment variables override
// the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(paths.ExpandHome(path))
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if home, err := paths.GetHome(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, errors.New(errors.ConfigInvalid, "cannot read tool config", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "cannot decode tool config", err)
	}
	return &cfg, nil
}

// RF2Families returns the entry classification patterns.
func (c *Config) RF2Families() rf2.Families {
	return rf2.Families{
		Relationship: c.Families.Relationship,
		Description:  c.Families.Description,
		OWL:          c.Families.OWL,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !isSCTID(c.Concepts.Number) {
		return invalid("concepts.number", "not an SCTID: "+c.Concepts.Number)
	}
	if !isSCTID(c.Concepts.IsA) {
		return invalid("concepts.isA", "not an SCTID: "+c.Concepts.IsA)
	}
	if err := c.RF2Families().Validate(); err != nil {
		return invalid("families", err.Error())
	}
	if c.Output.Dir == "" {
		return invalid("output.dir", "must not be empty")
	}
	if c.Output.Date != "" {
		if _, err := time.Parse("20060102", c.Output.Date); err != nil {
			return invalid("output.date", "expected YYYYMMDD, got "+c.Output.Date)
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("logging.level", "unknown level "+c.Logging.Level)
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return invalid("logging.format", "expected human or json, got "+c.Logging.Format)
	}
	if c.Logging.MaxBackups < 0 {
		return invalid("logging.maxBackups", "must not be negative")
	}
	return nil
}

// WriteDefault writes the default configuration as TOML. An existing file is only
// replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.Newf(errors.ConfigInvalid, "%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return errors.New(errors.InternalError, "encode default config", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(errors.OutputFailure, "create "+dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(errors.OutputFailure, "write "+path, err)
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

func invalid(field, message string) error {
	return errors.New(errors.ConfigInvalid, "invalid configuration", &ConfigError{Field: field, Message: message})
}

func isSCTID(s string) bool {
	if len(s) < 6 || len(s) > 18 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String renders a config for diagnostics.
func (c *Config) String() string {
	return fmt.Sprintf("output=%s attributeMap=%s number=%s isA=%s", c.Output.Dir, c.AttributeMap,
		c.Concepts.Number, c.Concepts.IsA)
}
