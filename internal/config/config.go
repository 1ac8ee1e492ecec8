// Package config provides hierarchical configuration for symlog using koanf.
// Values are layered with priority: environment variables (SYMLOG_) >
// project config (.symlog/config.yml) > user config
// (~/.config/symlog/config.yml) > defaults. A .env file in the working
// directory is loaded into the process environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ariel-frischer/symlog/internal/discovery"
	"github.com/ariel-frischer/symlog/internal/store"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: SYMLOG_STORAGE__BACKEND=redis sets storage.backend.
const EnvPrefix = "SYMLOG_"

// ErrUnknownPackage is returned when a package id is not configured.
var ErrUnknownPackage = errors.New("package not configured")

// Configuration is the symlog configuration.
type Configuration struct {
	// Concurrency bounds parallel extractions per batch.
	Concurrency int    `koanf:"concurrency" yaml:"concurrency" validate:"min=1,max=64"`
	LogLevel    string `koanf:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	LogFile     string `koanf:"log_file" yaml:"log_file"`
	// OutputDir receives a rendered CHANGELOG.md per package after each
	// publish. Empty disables rendering.
	OutputDir    string `koanf:"output_dir" yaml:"output_dir"`
	MetricsFile  string `koanf:"metrics_file" yaml:"metrics_file"`
	OTLPEndpoint string `koanf:"otlp_endpoint" yaml:"otlp_endpoint"`

	Storage   StorageConfig   `koanf:"storage" yaml:"storage"`
	Fetch     FetchConfig     `koanf:"fetch" yaml:"fetch"`
	Cache     CacheConfig     `koanf:"cache" yaml:"cache"`
	Extractor ExtractorConfig `koanf:"extractor" yaml:"extractor"`
	History   HistoryConfig   `koanf:"history" yaml:"history"`

	Packages []PackageConfig `koanf:"packages" yaml:"packages" validate:"dive"`
}

// StorageConfig selects and configures the publication backend.
type StorageConfig struct {
	Backend       string  `koanf:"backend" yaml:"backend" validate:"omitempty,oneof=file redis sqlite http"`
	Dir           string  `koanf:"dir" yaml:"dir"`
	RedisAddr     string  `koanf:"redis_addr" yaml:"redis_addr"`
	RedisPassword string  `koanf:"redis_password" yaml:"redis_password"`
	RedisDB       int     `koanf:"redis_db" yaml:"redis_db" validate:"min=0,max=15"`
	SQLitePath    string  `koanf:"sqlite_path" yaml:"sqlite_path"`
	HTTPBaseURL   string  `koanf:"http_base_url" yaml:"http_base_url" validate:"omitempty,url"`
	HTTPToken     string  `koanf:"http_token" yaml:"http_token"`
	HTTPRate      float64 `koanf:"http_rate" yaml:"http_rate" validate:"min=0"`
}

// FetchConfig is the retry budget for reading the published changelog.
type FetchConfig struct {
	MaxTries        uint          `koanf:"max_tries" yaml:"max_tries" validate:"min=1,max=20"`
	InitialInterval time.Duration `koanf:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval" yaml:"max_interval"`
}

// CacheConfig configures the on-disk IR cache. An empty path disables it.
type CacheConfig struct {
	Path string `koanf:"path" yaml:"path"`
}

// ExtractorConfig is the default extractor for packages without their own
// command. Command takes precedence over Dir.
type ExtractorConfig struct {
	Command string        `koanf:"command" yaml:"command"`
	Dir     string        `koanf:"dir" yaml:"dir"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
}

// HistoryConfig configures the build run log. An empty path disables it.
type HistoryConfig struct {
	Path       string `koanf:"path" yaml:"path"`
	MaxEntries int    `koanf:"max_entries" yaml:"max_entries" validate:"min=0"`
}

// PackageConfig describes one tracked package.
type PackageConfig struct {
	ID               string   `koanf:"id" yaml:"id" validate:"required"`
	Name             string   `koanf:"name" yaml:"name"`
	Repo             string   `koanf:"repo" yaml:"repo"`
	TagPattern       string   `koanf:"tag_pattern" yaml:"tag_pattern" validate:"required"`
	MaxVersions      int      `koanf:"max_versions" yaml:"max_versions" validate:"min=0"`
	MinVersion       string   `koanf:"min_version" yaml:"min_version"`
	AlwaysInclude    []string `koanf:"always_include" yaml:"always_include"`
	ExtractorCommand string   `koanf:"extractor_command" yaml:"extractor_command"`
}

// DisplayName returns the package name, falling back to its id.
func (p PackageConfig) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// DiscoveryOptions returns the discovery bounds configured for the package.
func (p PackageConfig) DiscoveryOptions() discovery.Options {
	return discovery.Options{
		MaxVersions:   p.MaxVersions,
		MinVersion:    p.MinVersion,
		AlwaysInclude: p.AlwaysInclude,
	}
}

// LoadOptions configures how configuration is loaded.
type LoadOptions struct {
	// ProjectConfigPath overrides the project config path (default: .symlog/config.yml).
	ProjectConfigPath string
	// EnvFile overrides the dotenv file (default: .env).
	EnvFile string
	// SkipEnvFile disables dotenv loading.
	SkipEnvFile bool
	// SkipUserConfig ignores the user-level config file.
	SkipUserConfig bool
}

// Load loads configuration from defaults, user, project and environment sources.
func Load(projectConfigPath string) (*Configuration, error) {
	return LoadWithOptions(LoadOptions{ProjectConfigPath: projectConfigPath})
}

// LoadWithOptions loads configuration with custom options.
func LoadWithOptions(opts LoadOptions) (*Configuration, error) {
	if !opts.SkipEnvFile {
		if err := loadEnvFile(opts.EnvFile); err != nil {
			return nil, err
		}
	}

	k := koanf.New(".")
	loadDefaults(k)

	if !opts.SkipUserConfig {
		if err := loadUserConfig(k); err != nil {
			return nil, err
		}
	}

	if err := loadProjectConfig(k, opts.ProjectConfigPath); err != nil {
		return nil, err
	}

	if err := loadEnvironmentConfig(k); err != nil {
		return nil, err
	}

	return finalizeConfig(k)
}

// loadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set. A missing file is ignored.
func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func loadDefaults(k *koanf.Koanf) {
	for key, value := range GetDefaults() {
		k.Set(key, value)
	}
}

func loadUserConfig(k *koanf.Koanf) error {
	path, err := UserConfigPath()
	if err != nil || !fileExists(path) {
		return nil
	}
	if err := loadYAMLConfig(k, path, "user"); err != nil {
		return fmt.Errorf("loading user config: %w", err)
	}
	return nil
}

func loadProjectConfig(k *koanf.Koanf, customPath string) error {
	path := ProjectConfigPath()
	if customPath != "" {
		path = customPath
		if !fileExists(path) {
			return fmt.Errorf("config file %s not found", path)
		}
	}
	if !fileExists(path) {
		return nil
	}
	load := loadYAMLConfig
	if strings.EqualFold(filepath.Ext(path), ".json") {
		load = loadJSONConfig
	}
	if err := load(k, path, "project"); err != nil {
		return fmt.Errorf("loading project config: %w", err)
	}
	return nil
}

// loadJSONConfig loads a project config given explicitly as JSON.
func loadJSONConfig(k *koanf.Koanf, path, configType string) error {
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return fmt.Errorf("failed to load %s config %s: %w", configType, path, err)
	}
	return nil
}

// loadYAMLConfig checks syntax first so errors carry line and column.
func loadYAMLConfig(k *koanf.Koanf, path, configType string) error {
	if err := ValidateYAMLSyntax(path); err != nil {
		return fmt.Errorf("validating YAML syntax for %s config: %w", configType, err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s config %s: %w", configType, path, err)
	}
	return nil
}

func loadEnvironmentConfig(k *koanf.Koanf) error {
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return fmt.Errorf("failed to load environment config: %w", err)
	}
	return nil
}

func finalizeConfig(k *koanf.Koanf) (*Configuration, error) {
	var cfg Configuration
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateConfigValues(&cfg, "config"); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.Storage.Dir = expandHomePath(cfg.Storage.Dir)
	cfg.Storage.SQLitePath = expandHomePath(cfg.Storage.SQLitePath)
	cfg.Cache.Path = expandHomePath(cfg.Cache.Path)
	cfg.Extractor.Dir = expandHomePath(cfg.Extractor.Dir)
	cfg.OutputDir = expandHomePath(cfg.OutputDir)
	cfg.MetricsFile = expandHomePath(cfg.MetricsFile)
	cfg.LogFile = expandHomePath(cfg.LogFile)
	cfg.History.Path = expandHomePath(cfg.History.Path)

	return &cfg, nil
}

// Package returns the configuration of one package.
func (c *Configuration) Package(id string) (PackageConfig, error) {
	for _, p := range c.Packages {
		if p.ID == id {
			return p, nil
		}
	}
	return PackageConfig{}, fmt.Errorf("%w: %q", ErrUnknownPackage, id)
}

// PackageIDs lists configured package ids in file order.
func (c *Configuration) PackageIDs() []string {
	ids := make([]string, len(c.Packages))
	for i, p := range c.Packages {
		ids[i] = p.ID
	}
	return ids
}

// StoreConfig maps the storage section onto the store backend config.
func (c *Configuration) StoreConfig() store.Config {
	return store.Config{
		Backend:       c.Storage.Backend,
		Dir:           c.Storage.Dir,
		RedisAddr:     c.Storage.RedisAddr,
		RedisPassword: c.Storage.RedisPassword,
		RedisDB:       c.Storage.RedisDB,
		SQLitePath:    c.Storage.SQLitePath,
		HTTPBaseURL:   c.Storage.HTTPBaseURL,
		HTTPToken:     c.Storage.HTTPToken,
		HTTPRate:      c.Storage.HTTPRate,
	}
}

// RetryOptions maps the fetch section onto the store retry budget.
func (c *Configuration) RetryOptions() store.RetryOptions {
	opts := store.DefaultRetryOptions()
	if c.Fetch.MaxTries > 0 {
		opts.MaxTries = c.Fetch.MaxTries
	}
	if c.Fetch.InitialInterval > 0 {
		opts.InitialInterval = c.Fetch.InitialInterval
	}
	if c.Fetch.MaxInterval > 0 {
		opts.MaxInterval = c.Fetch.MaxInterval
	}
	return opts
}

// Redacted returns a copy with credentials masked, for display.
func (c *Configuration) Redacted() *Configuration {
	out := *c
	out.Packages = append([]PackageConfig(nil), c.Packages...)
	if out.Storage.RedisPassword != "" {
		out.Storage.RedisPassword = redactedValue
	}
	if out.Storage.HTTPToken != "" {
		out.Storage.HTTPToken = redactedValue
	}
	return &out
}

const redactedValue = "********"

// ExtractorCommand returns the command template for a package, falling back
// to the global extractor command.
func (c *Configuration) ExtractorCommand(p PackageConfig) string {
	if p.ExtractorCommand != "" {
		return p.ExtractorCommand
	}
	return c.Extractor.Command
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// envTransform converts environment variable names to config keys.
// Example: SYMLOG_FETCH__MAX_TRIES -> fetch.max_tries
func envTransform(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// expandHomePath expands ~ to the user's home directory.
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}
