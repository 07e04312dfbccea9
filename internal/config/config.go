// Package config holds the complete application configuration with support
// for YAML files, environment variable overrides, and sane defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Database configuration
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Scanner configuration
	Scanner ScannerConfig `yaml:"scanner" json:"scanner"`

	// Probe subprocess configuration
	Probe ProbeConfig `yaml:"probe" json:"probe"`

	// Integrity checker configuration
	Integrity IntegrityConfig `yaml:"integrity" json:"integrity"`

	// Duplicate detector configuration
	Duplicates DuplicateConfig `yaml:"duplicates" json:"duplicates"`

	// Folder monitor configuration
	Monitor MonitorConfig `yaml:"monitor" json:"monitor"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string        `yaml:"host" json:"host" env:"VA_HOST" default:"127.0.0.1"`
	Port          int           `yaml:"port" json:"port" env:"VA_PORT" default:"8080"`
	ReadTimeout   time.Duration `yaml:"read_timeout" json:"read_timeout" env:"VA_READ_TIMEOUT" default:"30s"`
	WriteTimeout  time.Duration `yaml:"write_timeout" json:"write_timeout" env:"VA_WRITE_TIMEOUT" default:"30s"`
	EnableMetrics bool          `yaml:"enable_metrics" json:"enable_metrics" env:"VA_ENABLE_METRICS" default:"true"`
}

// DatabaseConfig holds catalog database configuration
type DatabaseConfig struct {
	DataDir      string `yaml:"data_dir" json:"data_dir" env:"VA_DATA_DIR"`
	DatabasePath string `yaml:"database_path" json:"database_path" env:"VA_DATABASE_PATH"`
	CacheSizeKB  int    `yaml:"cache_size_kb" json:"cache_size_kb" env:"VA_DB_CACHE_KB" default:"65536"`
	LogQueries   bool   `yaml:"log_queries" json:"log_queries" env:"VA_DB_LOG_QUERIES" default:"false"`
}

// ScannerConfig holds scan engine configuration
type ScannerConfig struct {
	MaxConcurrency     int           `yaml:"max_concurrency" json:"max_concurrency" env:"VA_SCAN_CONCURRENCY" default:"12"`
	BatchSize          int           `yaml:"batch_size" json:"batch_size" env:"VA_BATCH_SIZE" default:"50"`
	CheckpointInterval time.Duration `yaml:"checkpoint_interval" json:"checkpoint_interval" env:"VA_CHECKPOINT_INTERVAL" default:"10s"`
	MaxRetries         int           `yaml:"max_retries" json:"max_retries" env:"VA_SCAN_RETRIES" default:"3"`
	StaleCheckpointAge time.Duration `yaml:"stale_checkpoint_age" json:"stale_checkpoint_age" env:"VA_STALE_CHECKPOINT_AGE" default:"24h"`
	AdaptiveThrottling bool          `yaml:"adaptive_throttling" json:"adaptive_throttling" env:"VA_ADAPTIVE_THROTTLING" default:"true"`
	CPUThreshold       float64       `yaml:"cpu_threshold" json:"cpu_threshold" env:"VA_CPU_THRESHOLD" default:"90.0"`
	MemoryThreshold    float64       `yaml:"memory_threshold" json:"memory_threshold" env:"VA_MEMORY_THRESHOLD" default:"90.0"`
}

// ProbeConfig holds ffprobe subprocess configuration
type ProbeConfig struct {
	BinaryPath      string        `yaml:"binary_path" json:"binary_path" env:"VA_FFPROBE_PATH"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout" env:"VA_PROBE_TIMEOUT" default:"15s"`
	ProbeSize       int64         `yaml:"probe_size" json:"probe_size" env:"VA_PROBE_SIZE" default:"5000000"`
	AnalyzeDuration int64         `yaml:"analyze_duration" json:"analyze_duration" env:"VA_ANALYZE_DURATION" default:"5000000"`
}

// IntegrityConfig holds integrity checker configuration
type IntegrityConfig struct {
	BinaryPath     string `yaml:"binary_path" json:"binary_path" env:"VA_FFMPEG_PATH"`
	MaxConcurrency int    `yaml:"max_concurrency" json:"max_concurrency" env:"VA_INTEGRITY_CONCURRENCY" default:"4"`
}

// DuplicateConfig holds duplicate detector configuration
type DuplicateConfig struct {
	PartialHashWindow int64 `yaml:"partial_hash_window" json:"partial_hash_window" env:"VA_PARTIAL_HASH_WINDOW" default:"65536"`
}

// MonitorConfig holds folder monitor configuration
type MonitorConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled" env:"VA_MONITOR_ENABLED" default:"false"`
	DebounceWindow time.Duration `yaml:"debounce_window" json:"debounce_window" env:"VA_MONITOR_DEBOUNCE" default:"2s"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level" env:"VA_LOG_LEVEL" default:"info"`
	JSONFormat bool   `yaml:"json_format" json:"json_format" env:"VA_LOG_JSON" default:"false"`
}

// Manager manages application configuration
type Manager struct {
	config     *Config
	configPath string
	mu         sync.RWMutex
}

var (
	globalManager *Manager
	configOnce    sync.Once
)

// GetManager returns the global configuration manager instance
func GetManager() *Manager {
	configOnce.Do(func() {
		globalManager = NewManager()
	})
	return globalManager
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{config: DefaultConfig()}
}

// DefaultConfig returns the default application configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "127.0.0.1",
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			EnableMetrics: true,
		},
		Database: DatabaseConfig{
			CacheSizeKB: 65536,
		},
		Scanner: ScannerConfig{
			MaxConcurrency:     12,
			BatchSize:          50,
			CheckpointInterval: 10 * time.Second,
			MaxRetries:         3,
			StaleCheckpointAge: 24 * time.Hour,
			AdaptiveThrottling: true,
			CPUThreshold:       90.0,
			MemoryThreshold:    90.0,
		},
		Probe: ProbeConfig{
			Timeout:         15 * time.Second,
			ProbeSize:       5_000_000,
			AnalyzeDuration: 5_000_000,
		},
		Integrity: IntegrityConfig{
			MaxConcurrency: 4,
		},
		Duplicates: DuplicateConfig{
			PartialHashWindow: 64 * 1024,
		},
		Monitor: MonitorConfig{
			Enabled:        false,
			DebounceWindow: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from file (if present) and environment.
func (m *Manager) LoadConfig(configPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.configPath = configPath
	newConfig := DefaultConfig()

	if configPath != "" && fileExists(configPath) {
		if err := loadFromFile(configPath, newConfig); err != nil {
			return fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(newConfig).Elem()); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := validateConfig(newConfig); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	applyDerivedConfig(newConfig)
	m.config = newConfig
	return nil
}

// GetConfig returns the current configuration (thread-safe)
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	configCopy := *m.config
	return &configCopy
}

// SaveConfig saves the current configuration to its file
func (m *Manager) SaveConfig() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.configPath == "" {
		return fmt.Errorf("no config path set")
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}
	return os.WriteFile(m.configPath, data, 0644)
}

func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s: %w", fieldType.Name, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(intVal)
		}
	case reflect.Float32, reflect.Float64:
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatVal)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolVal)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			values := strings.Split(value, ",")
			for i, v := range values {
				values[i] = strings.TrimSpace(v)
			}
			field.Set(reflect.ValueOf(values))
		}
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

func validateConfig(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Scanner.MaxConcurrency < 1 {
		return fmt.Errorf("scanner max_concurrency must be at least 1")
	}
	if config.Scanner.BatchSize < 1 {
		return fmt.Errorf("scanner batch_size must be at least 1")
	}
	if config.Integrity.MaxConcurrency < 1 {
		return fmt.Errorf("integrity max_concurrency must be at least 1")
	}
	if config.Probe.Timeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}
	return nil
}

// applyDerivedConfig fills in paths that depend on other settings.
func applyDerivedConfig(config *Config) {
	if config.Database.DataDir == "" {
		if base, err := os.UserConfigDir(); err == nil {
			config.Database.DataDir = filepath.Join(base, "VideoAnalyzer")
		} else {
			config.Database.DataDir = "VideoAnalyzer"
		}
	}
	if config.Database.DatabasePath == "" {
		config.Database.DatabasePath = filepath.Join(config.Database.DataDir, "video_analyzer.sqlite")
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Convenience functions for global access

// Get returns the current global configuration
func Get() *Config {
	return GetManager().GetConfig()
}

// Load loads the global configuration
func Load(configPath string) error {
	return GetManager().LoadConfig(configPath)
}
