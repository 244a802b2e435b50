package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"commandset/log"

	"github.com/spf13/viper"
)

const (
	ConfigFileName = "config.json"
	envPrefix      = "COMMANDSET"
)

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is one of "file", "redis" or "sqlite"
	Backend string `mapstructure:"backend" json:"backend"`
	// Dir holds one JSON file per storage key for the file backend
	Dir string `mapstructure:"dir" json:"dir"`
	// LockTimeout bounds how long the file backend waits for its lock
	LockTimeout time.Duration `mapstructure:"lock_timeout" json:"lock_timeout"`

	RedisAddr     string `mapstructure:"redis_addr" json:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" json:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" json:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix" json:"redis_prefix"`

	SQLitePath string `mapstructure:"sqlite_path" json:"sqlite_path"`
}

// LogSettings mirrors log.LogConfig in config-file form.
type LogSettings struct {
	Enabled      bool   `mapstructure:"enabled" json:"enabled"`
	Dir          string `mapstructure:"dir" json:"dir"`
	MaxSize      int    `mapstructure:"max_size" json:"max_size"`
	MaxFiles     int    `mapstructure:"max_files" json:"max_files"`
	MaxAge       int    `mapstructure:"max_age" json:"max_age"`
	Compress     bool   `mapstructure:"compress" json:"compress"`
	UseScopeLogs bool   `mapstructure:"use_scope_logs" json:"use_scope_logs"`
}

// Config represents the application configuration
type Config struct {
	Storage StorageConfig `mapstructure:"storage" json:"storage"`
	// SaveTimeout bounds each background save and context release
	SaveTimeout time.Duration `mapstructure:"save_timeout" json:"save_timeout"`
	Log         LogSettings   `mapstructure:"log" json:"log"`
}

// GetConfigDir returns the path to the application's configuration directory
func GetConfigDir() (string, error) {
	return log.GetConfigDir()
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	configDir, err := GetConfigDir()
	if err != nil {
		log.ErrorLog.Printf("failed to get config directory: %v", err)
		configDir = filepath.Join(os.TempDir(), ".commandset")
	}

	logDefaults := log.DefaultLogConfig()
	return &Config{
		Storage: StorageConfig{
			Backend:     "file",
			Dir:         filepath.Join(configDir, "state"),
			LockTimeout: 5 * time.Second,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "commandset:",
			SQLitePath:  filepath.Join(configDir, "state.db"),
		},
		SaveTimeout: 10 * time.Second,
		Log: LogSettings{
			Enabled:      logDefaults.LogsEnabled,
			Dir:          logDefaults.LogsDir,
			MaxSize:      logDefaults.LogMaxSize,
			MaxFiles:     logDefaults.LogMaxFiles,
			MaxAge:       logDefaults.LogMaxAge,
			Compress:     logDefaults.LogCompress,
			UseScopeLogs: logDefaults.UseScopeLogs,
		},
	}
}

// LoadConfig loads the config from COMMANDSET_CONFIG or ~/.commandset/config.json,
// with COMMANDSET_* environment overrides. A missing file means defaults.
func LoadConfig() (*Config, error) {
	path := os.Getenv(envPrefix + "_CONFIG")
	if path == "" {
		configDir, err := GetConfigDir()
		if err != nil {
			log.WarningLog.Printf("failed to get config directory, using defaults: %v", err)
			return DefaultConfig(), nil
		}
		path = filepath.Join(configDir, ConfigFileName)
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom loads the config file at path. Environment overrides apply
// the same way as in LoadConfig.
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		log.InfoLog.Printf("no config file at %s, using defaults", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path as JSON, creating the directory if needed.
func SaveConfig(cfg *Config, path string) error {
	v := viper.New()
	setDefaults(v, cfg)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	v.SetConfigType("json")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the fields LoadConfig cannot default.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "redis", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.SaveTimeout <= 0 {
		return fmt.Errorf("save_timeout must be positive, got %s", c.SaveTimeout)
	}
	return nil
}

// LogConfig converts the log section to the logger's own config type.
func (c *Config) LogConfig() *log.LogConfig {
	return &log.LogConfig{
		LogsEnabled:  c.Log.Enabled,
		LogsDir:      c.Log.Dir,
		LogMaxSize:   c.Log.MaxSize,
		LogMaxFiles:  c.Log.MaxFiles,
		LogMaxAge:    c.Log.MaxAge,
		LogCompress:  c.Log.Compress,
		UseScopeLogs: c.Log.UseScopeLogs,
	}
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.dir", cfg.Storage.Dir)
	v.SetDefault("storage.lock_timeout", cfg.Storage.LockTimeout)
	v.SetDefault("storage.redis_addr", cfg.Storage.RedisAddr)
	v.SetDefault("storage.redis_password", cfg.Storage.RedisPassword)
	v.SetDefault("storage.redis_db", cfg.Storage.RedisDB)
	v.SetDefault("storage.redis_prefix", cfg.Storage.RedisPrefix)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.SetDefault("save_timeout", cfg.SaveTimeout)
	v.SetDefault("log.enabled", cfg.Log.Enabled)
	v.SetDefault("log.dir", cfg.Log.Dir)
	v.SetDefault("log.max_size", cfg.Log.MaxSize)
	v.SetDefault("log.max_files", cfg.Log.MaxFiles)
	v.SetDefault("log.max_age", cfg.Log.MaxAge)
	v.SetDefault("log.compress", cfg.Log.Compress)
	v.SetDefault("log.use_scope_logs", cfg.Log.UseScopeLogs)
}
