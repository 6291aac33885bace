package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Downloader DownloaderConfig `yaml:"downloader" mapstructure:"downloader"`
	path       string
}

type ServerConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Host      string `yaml:"host" mapstructure:"host"`
	Port      int    `yaml:"port" mapstructure:"port"`
	QueueSize int    `yaml:"queue_size" mapstructure:"queue_size"`
}

type LoggingConfig struct {
	LogPath           string `yaml:"log_path" mapstructure:"log_path"`
	EnableFileLogging bool   `yaml:"enable_file_logging" mapstructure:"enable_file_logging"`
	Level             string `yaml:"level" mapstructure:"level"`
}

type PathsConfig struct {
	DownloadPath      string `yaml:"download_path" mapstructure:"download_path"`
	DownloaderPath    string `yaml:"downloader_path" mapstructure:"downloader_path"`
	LocalDatabasePath string `yaml:"local_database_path" mapstructure:"local_database_path"`
}

// Flags handed to the downloader on every fetch.
type DownloaderConfig struct {
	ConcurrentFragments int           `yaml:"concurrent_fragments" mapstructure:"concurrent_fragments"`
	BufferSize          string        `yaml:"buffer_size" mapstructure:"buffer_size"`
	HTTPChunkSize       string        `yaml:"http_chunk_size" mapstructure:"http_chunk_size"`
	Retries             int           `yaml:"retries" mapstructure:"retries"`
	FragmentRetries     int           `yaml:"fragment_retries" mapstructure:"fragment_retries"`
	MergeOutputFormat   string        `yaml:"merge_output_format" mapstructure:"merge_output_format"`
	ProbeTimeout        time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
	UniqueNames         bool          `yaml:"unique_names" mapstructure:"unique_names"`
	ExtraParams         []string      `yaml:"extra_params" mapstructure:"extra_params"`
}

var (
	instance     *Config
	instanceOnce sync.Once
)

func Instance() *Config {
	if instance == nil {
		instanceOnce.Do(func() {
			instance = &Config{}
			applyDefaults(instance)
		})
	}
	return instance
}

func applyDefaults(c *Config) {
	c.Server = ServerConfig{Host: "0.0.0.0", Port: 8080, QueueSize: 4}
	c.Logging = LoggingConfig{LogPath: "yt-dlp-fetcher.log", Level: "info"}
	c.Paths = PathsConfig{
		DownloadPath:      "downloads",
		DownloaderPath:    "yt-dlp",
		LocalDatabasePath: ".",
	}
	c.Downloader = DownloaderConfig{
		ConcurrentFragments: 16,
		BufferSize:          "16K",
		HTTPChunkSize:       "10M",
		Retries:             10,
		FragmentRetries:     10,
		MergeOutputFormat:   "mp4",
		ProbeTimeout:        30 * time.Second,
	}
}

func setDefaults(v *viper.Viper) {
	var d Config
	applyDefaults(&d)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.queue_size", d.Server.QueueSize)
	v.SetDefault("logging.log_path", d.Logging.LogPath)
	v.SetDefault("logging.enable_file_logging", d.Logging.EnableFileLogging)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("paths.download_path", d.Paths.DownloadPath)
	v.SetDefault("paths.downloader_path", d.Paths.DownloaderPath)
	v.SetDefault("paths.local_database_path", d.Paths.LocalDatabasePath)
	v.SetDefault("downloader.concurrent_fragments", d.Downloader.ConcurrentFragments)
	v.SetDefault("downloader.buffer_size", d.Downloader.BufferSize)
	v.SetDefault("downloader.http_chunk_size", d.Downloader.HTTPChunkSize)
	v.SetDefault("downloader.retries", d.Downloader.Retries)
	v.SetDefault("downloader.fragment_retries", d.Downloader.FragmentRetries)
	v.SetDefault("downloader.merge_output_format", d.Downloader.MergeOutputFormat)
	v.SetDefault("downloader.probe_timeout", d.Downloader.ProbeTimeout)
	v.SetDefault("downloader.unique_names", d.Downloader.UniqueNames)
	v.SetDefault("downloader.extra_params", d.Downloader.ExtraParams)
}

// Load reads the yaml file at path (if present) on top of the defaults and
// APP_ prefixed environment variables, e.g. APP_SERVER_PORT, then stores the
// result in Instance. A .env file next to the config file feeds the
// environment without overriding variables that are already set.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		slog.Debug("config file not found, using defaults", slog.String("path", path))
	}

	cfg := Instance()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if cfg.Server.QueueSize <= 0 {
		cfg.Server.QueueSize = 1
	}
	if cfg.Downloader.ProbeTimeout <= 0 {
		cfg.Downloader.ProbeTimeout = 30 * time.Second
	}

	if abs, err := filepath.Abs(path); err == nil {
		cfg.path = abs
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	slog.Debug("loaded environment file", slog.String("path", path))
	return nil
}

// Dump writes the configuration as yaml.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(c)
}

// Path of the directory containing the config file
func (c *Config) Dir() string { return filepath.Dir(c.path) }

// Absolute path of the config file
func (c *Config) Path() string { return c.path }
