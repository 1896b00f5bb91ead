// Package config loads application configuration and the per-dataset
// column specs the cleaning and reconciliation stages are driven by.
package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	Outliers    OutlierConfig     `yaml:"outliers" mapstructure:"outliers"`
	Propagation PropagationConfig `yaml:"propagation" mapstructure:"propagation"`
	Export      ExportConfig      `yaml:"export" mapstructure:"export"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchConfig configures ERP extract acquisition.
type FetchConfig struct {
	FTPURL      string `yaml:"ftp_url" mapstructure:"ftp_url"`
	FTPUser     string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string `yaml:"ftp_password" mapstructure:"ftp_password"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// Encoding of the raw extracts; ERP exports are typically
	// windows-1252. "utf-8" skips transcoding.
	Encoding  string `yaml:"encoding" mapstructure:"encoding"`
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
}

// OutlierConfig holds the default reconciliation thresholds, applied to
// any dataset spec that does not override them.
type OutlierConfig struct {
	ZScore        float64 `yaml:"z_score" mapstructure:"z_score"`
	MinThreshold  int     `yaml:"min_threshold" mapstructure:"min_threshold"`
	MaxIterations int     `yaml:"max_iterations" mapstructure:"max_iterations"`
}

// PropagationConfig configures the BOM cost rollup.
type PropagationConfig struct {
	SemiFinishedPrefix string `yaml:"semi_finished_prefix" mapstructure:"semi_finished_prefix"`
	MaxIterations      int    `yaml:"max_iterations" mapstructure:"max_iterations"`
}

// ExportConfig configures order-cost summary output.
type ExportConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"` // csv or xlsx
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COSTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "costing.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.encoding", "windows-1252")
	v.SetDefault("fetch.delimiter", ";")
	v.SetDefault("outliers.z_score", 3.0)
	v.SetDefault("outliers.min_threshold", 5)
	v.SetDefault("outliers.max_iterations", 20)
	v.SetDefault("propagation.semi_finished_prefix", "SEM")
	v.SetDefault("propagation.max_iterations", 6)
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.format", "csv")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// LoadDatasetSpecs overlays dataset specs from a YAML file onto the
// built-in ones. Datasets absent from the file keep their defaults.
func LoadDatasetSpecs(path string, base map[string]DatasetSpec) (map[string]DatasetSpec, error) {
	out := make(map[string]DatasetSpec, len(base))
	for name, spec := range base {
		out[name] = spec
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read dataset specs %s", path)
	}
	var overlay map[string]DatasetSpec
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return nil, eris.Wrapf(err, "config: parse dataset specs %s", path)
	}
	for name, spec := range overlay {
		out[name] = spec
	}
	return out, nil
}
