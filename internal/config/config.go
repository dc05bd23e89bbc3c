// Package config provides configuration loading and structs for the docscan tool.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/docscan/internal/match"
	"github.com/hyperjump/docscan/internal/models"
	"gopkg.in/yaml.v3"
)

// Upload backends and failure policies.
const (
	BackendSFTP = "sftp"
	BackendS3   = "s3"

	OnFailureContinue = "continue"
	OnFailureAbort    = "abort"
)

// Config holds all configuration for the application.
type Config struct {
	Debug  bool         `yaml:"debug"`
	Scan   ScanConfig   `yaml:"scan"`
	Search SearchConfig `yaml:"search"`
	OCR    OCRConfig    `yaml:"ocr"`
	Report ReportConfig `yaml:"report"`
	Upload UploadConfig `yaml:"upload"`
	Watch  WatchConfig  `yaml:"watch"`
	Server ServerConfig `yaml:"server"`
}

// ScanConfig holds the directory to scan and the extensions to pick up.
type ScanConfig struct {
	Directory  string   `yaml:"directory"`
	Extensions []string `yaml:"extensions"`
}

// SearchConfig holds the rule set applied to extracted text.
type SearchConfig struct {
	Mode          string             `yaml:"mode"`
	Keywords      []string           `yaml:"keywords"`
	RegexPatterns []models.RegexRule `yaml:"regex_patterns"`
}

// SearchMode returns the parsed mode. Unrecognized values map to models.ModeNone.
func (s SearchConfig) SearchMode() models.SearchMode {
	return models.ParseSearchMode(s.Mode)
}

// OCRConfig holds the Tesseract trained-data directory.
type OCRConfig struct {
	DataPath string `yaml:"data_path"`
}

// ReportConfig holds where per-run reports are written.
type ReportConfig struct {
	LogDirectory string `yaml:"log_directory"`
	DatabasePath string `yaml:"database_path"`
}

// UploadConfig holds remote transfer settings for matched files.
type UploadConfig struct {
	Enabled   bool       `yaml:"enabled"`
	Backend   string     `yaml:"backend"`
	OnFailure string     `yaml:"on_failure"`
	SFTP      SFTPConfig `yaml:"sftp"`
	S3        S3Config   `yaml:"s3"`
}

// SFTPConfig holds SFTP connection settings.
type SFTPConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	PrivateKeyPath string `yaml:"private_key_path"`
	KnownHostsPath string `yaml:"known_hosts_path"`
	RemoteDir      string `yaml:"remote_dir"`
}

// S3Config holds S3 bucket settings. Credentials come from the default AWS chain.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"`
}

// WatchConfig holds watch-mode settings.
type WatchConfig struct {
	Recursive  *bool `yaml:"recursive"`
	DebounceMS int   `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ConfigError reports a missing or invalid setting. It is fatal before any scanning starts.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	if cfg.Scan.Directory != "" {
		cfg.Scan.Directory = expandPath(cfg.Scan.Directory, configDir)
	}
	cfg.OCR.DataPath = expandPath(cfg.OCR.DataPath, configDir)
	cfg.Report.LogDirectory = expandPath(cfg.Report.LogDirectory, configDir)
	cfg.Report.DatabasePath = expandPath(cfg.Report.DatabasePath, configDir)
	if cfg.Upload.SFTP.PrivateKeyPath != "" {
		cfg.Upload.SFTP.PrivateKeyPath = expandPath(cfg.Upload.SFTP.PrivateKeyPath, configDir)
	}
	if cfg.Upload.SFTP.KnownHostsPath != "" {
		cfg.Upload.SFTP.KnownHostsPath = expandPath(cfg.Upload.SFTP.KnownHostsPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the settings a scan needs. It compiles the regex rules so an invalid
// pattern is reported here rather than mid-run.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Scan.Directory) == "" {
		errs = append(errs, &ConfigError{Field: "scan.directory", Reason: "required"})
	} else if info, err := os.Stat(c.Scan.Directory); err != nil {
		errs = append(errs, &ConfigError{Field: "scan.directory", Reason: "not accessible", Err: err})
	} else if !info.IsDir() {
		errs = append(errs, &ConfigError{Field: "scan.directory", Reason: "not a directory"})
	}
	if len(c.Scan.Extensions) == 0 {
		errs = append(errs, &ConfigError{Field: "scan.extensions", Reason: "at least one extension is required"})
	}
	if strings.TrimSpace(c.Search.Mode) == "" {
		errs = append(errs, &ConfigError{Field: "search.mode", Reason: "required"})
	}
	if _, err := match.Compile(c.Search.Keywords, c.Search.RegexPatterns); err != nil {
		field := "search.regex_patterns"
		var rerr *match.RuleError
		if errors.As(err, &rerr) {
			field = fmt.Sprintf("search.regex_patterns[%d]", rerr.Index)
		}
		errs = append(errs, &ConfigError{Field: field, Reason: "invalid pattern", Err: err})
	}
	if c.Upload.Enabled {
		errs = append(errs, c.Upload.validate()...)
	}
	return errors.Join(errs...)
}

func (u *UploadConfig) validate() []error {
	var errs []error
	switch u.OnFailure {
	case OnFailureContinue, OnFailureAbort:
	default:
		errs = append(errs, &ConfigError{Field: "upload.on_failure", Reason: fmt.Sprintf("unknown policy %q", u.OnFailure)})
	}
	switch u.Backend {
	case BackendSFTP:
		if u.SFTP.Host == "" {
			errs = append(errs, &ConfigError{Field: "upload.sftp.host", Reason: "required"})
		}
		if u.SFTP.Username == "" {
			errs = append(errs, &ConfigError{Field: "upload.sftp.username", Reason: "required"})
		}
		if u.SFTP.Password == "" && u.SFTP.PrivateKeyPath == "" {
			errs = append(errs, &ConfigError{Field: "upload.sftp", Reason: "password or private_key_path is required"})
		}
	case BackendS3:
		if u.S3.Bucket == "" {
			errs = append(errs, &ConfigError{Field: "upload.s3.bucket", Reason: "required"})
		}
	default:
		errs = append(errs, &ConfigError{Field: "upload.backend", Reason: fmt.Sprintf("unknown backend %q", u.Backend)})
	}
	return errs
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
