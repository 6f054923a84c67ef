package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir        = ".postbot"
	DefaultConfigFile       = "config.yaml"
	DefaultEnvFile          = ".env"
	DefaultStorageBackend   = "file"
	DefaultHistoryPath      = "posted_ids.txt"
	DefaultQuotaPath        = "quota.json"
	DefaultDBPath           = "postbot.db"
	DefaultDailyLimit       = 16
	DefaultTimezone         = "Local"
	DefaultPlatformKind     = "x"
	DefaultMaxChars         = 280
	DefaultMaxMedia         = 4
	DefaultFeedTopK         = 3
	DefaultGenerateAttempts = 5
	DefaultSegmentDelay     = 5 * time.Second
	DefaultImagesPerPost    = 1
	DefaultMaxImageBytes    = 5 << 20
	DefaultSeparator        = "|||"
	DefaultMaxSegments      = 4
	DefaultMaxTags          = 2
	DefaultGenerateProvider = "openai"
	DefaultGenerateTokens   = 600
)

// ErrMissingCredentials is returned when a platform credential env var is unset.
var ErrMissingCredentials = errors.New("missing platform credentials")

// Duration wraps time.Duration for YAML unmarshaling from strings like "24h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Platform   PlatformConfig `yaml:"platform"`
	Storage    StorageConfig  `yaml:"storage"`
	Quota      QuotaConfig    `yaml:"quota"`
	Run        RunConfig      `yaml:"run"`
	Media      MediaConfig    `yaml:"media"`
	Generate   GenerateConfig `yaml:"generate"`
	Render     RenderConfig   `yaml:"render"`
	Sanitize   SanitizeConfig `yaml:"sanitize"`
	Categories []Category     `yaml:"categories"`
}

type PlatformConfig struct {
	Kind            string `yaml:"kind"` // "x" or "dryrun"
	APIKeyEnv       string `yaml:"api_key_env"`
	APISecretEnv    string `yaml:"api_secret_env"`
	AccessTokenEnv  string `yaml:"access_token_env"`
	AccessSecretEnv string `yaml:"access_secret_env"`
	MaxChars        int    `yaml:"max_chars"`
	MaxMedia        int    `yaml:"max_media"`

	// Resolved from env vars at load time.
	APIKey       string `yaml:"-"`
	APISecret    string `yaml:"-"`
	AccessToken  string `yaml:"-"`
	AccessSecret string `yaml:"-"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"` // "file" or "sqlite"
	HistoryPath string `yaml:"history_path"`
	QuotaPath   string `yaml:"quota_path"`
	Path        string `yaml:"path"`
}

type QuotaConfig struct {
	DailyLimit int    `yaml:"daily_limit"`
	Timezone   string `yaml:"timezone"`
}

type RunConfig struct {
	StartJitter      Duration `yaml:"start_jitter"`
	SegmentDelay     Duration `yaml:"segment_delay"`
	SegmentJitter    Duration `yaml:"segment_jitter"`
	FeedTopK         int      `yaml:"feed_top_k"`
	GenerateAttempts int      `yaml:"generate_attempts"`
}

type MediaConfig struct {
	ImagesPerPost int  `yaml:"images_per_post"`
	MaxBytes      int  `yaml:"max_bytes"`
	OGImage       bool `yaml:"og_image"`
}

type GenerateConfig struct {
	Provider  string `yaml:"provider"` // "openai" or "anthropic"
	Model     string `yaml:"model"`
	Endpoint  string `yaml:"endpoint"`
	APIKeyEnv string `yaml:"api_key_env"`
	MaxTokens int    `yaml:"max_tokens"`
	Separator string `yaml:"separator"`

	// Resolved from env var at load time.
	APIKey string `yaml:"-"`
}

type SanitizeConfig struct {
	Patterns []string `yaml:"patterns"`
}

// Credentials holds the four OAuth 1.0a values needed to post.
type Credentials struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Defaults for fields where zero is a meaningful setting are filled in
	// before decoding, so an explicit 0 survives.
	cfg := Config{Quota: QuotaConfig{DailyLimit: DefaultDailyLimit}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadEnv loads .env files from the config dir and the working directory.
// Variables already present in the process environment are not overridden.
// Returns the files that were loaded.
func LoadEnv(dir string) ([]string, error) {
	candidates := []string{filepath.Join(dir, DefaultEnvFile), DefaultEnvFile}

	var loaded []string
	seen := make(map[string]bool)
	for _, file := range candidates {
		abs, err := filepath.Abs(file)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return loaded, fmt.Errorf("load %s: %w", file, err)
		}
		loaded = append(loaded, file)
	}
	return loaded, nil
}

// Location returns the timezone used to decide where a quota day starts.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Quota.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DryRun reports whether posts are logged instead of sent.
func (c *Config) DryRun() bool {
	return c.Platform.Kind == "dryrun"
}

// Credentials returns the platform credentials or ErrMissingCredentials
// naming every unset env var.
func (p PlatformConfig) Credentials() (Credentials, error) {
	var missing []string
	check := func(env, val string) {
		if val == "" {
			missing = append(missing, env)
		}
	}
	check(p.APIKeyEnv, p.APIKey)
	check(p.APISecretEnv, p.APISecret)
	check(p.AccessTokenEnv, p.AccessToken)
	check(p.AccessSecretEnv, p.AccessSecret)
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return Credentials{
		APIKey:       p.APIKey,
		APISecret:    p.APISecret,
		AccessToken:  p.AccessToken,
		AccessSecret: p.AccessSecret,
	}, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Platform.Kind == "" {
		cfg.Platform.Kind = DefaultPlatformKind
	}
	if cfg.Platform.APIKeyEnv == "" {
		cfg.Platform.APIKeyEnv = "API_KEY"
	}
	if cfg.Platform.APISecretEnv == "" {
		cfg.Platform.APISecretEnv = "API_SECRET"
	}
	if cfg.Platform.AccessTokenEnv == "" {
		cfg.Platform.AccessTokenEnv = "ACCESS_TOKEN"
	}
	if cfg.Platform.AccessSecretEnv == "" {
		cfg.Platform.AccessSecretEnv = "ACCESS_SECRET"
	}
	if cfg.Platform.MaxChars == 0 {
		cfg.Platform.MaxChars = DefaultMaxChars
	}
	if cfg.Platform.MaxMedia == 0 {
		cfg.Platform.MaxMedia = DefaultMaxMedia
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.HistoryPath == "" {
		cfg.Storage.HistoryPath = DefaultHistoryPath
	}
	if cfg.Storage.QuotaPath == "" {
		cfg.Storage.QuotaPath = DefaultQuotaPath
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultDBPath
	}
	if cfg.Quota.Timezone == "" {
		cfg.Quota.Timezone = DefaultTimezone
	}
	if cfg.Run.SegmentDelay.Duration == 0 {
		cfg.Run.SegmentDelay.Duration = DefaultSegmentDelay
	}
	if cfg.Run.FeedTopK == 0 {
		cfg.Run.FeedTopK = DefaultFeedTopK
	}
	if cfg.Run.GenerateAttempts == 0 {
		cfg.Run.GenerateAttempts = DefaultGenerateAttempts
	}
	if cfg.Media.ImagesPerPost == 0 {
		cfg.Media.ImagesPerPost = DefaultImagesPerPost
	}
	if cfg.Media.MaxBytes == 0 {
		cfg.Media.MaxBytes = DefaultMaxImageBytes
	}
	if cfg.Generate.Provider == "" {
		cfg.Generate.Provider = DefaultGenerateProvider
	}
	if cfg.Generate.MaxTokens == 0 {
		cfg.Generate.MaxTokens = DefaultGenerateTokens
	}
	if cfg.Generate.Separator == "" {
		cfg.Generate.Separator = DefaultSeparator
	}
	if cfg.Render.MaxSegments == 0 {
		cfg.Render.MaxSegments = DefaultMaxSegments
	}
	if cfg.Render.MaxTags == 0 {
		cfg.Render.MaxTags = DefaultMaxTags
	}
	for i := range cfg.Categories {
		applyCategoryDefaults(&cfg.Categories[i])
	}
}

func resolveEnv(cfg *Config) {
	cfg.Platform.APIKey = os.Getenv(cfg.Platform.APIKeyEnv)
	cfg.Platform.APISecret = os.Getenv(cfg.Platform.APISecretEnv)
	cfg.Platform.AccessToken = os.Getenv(cfg.Platform.AccessTokenEnv)
	cfg.Platform.AccessSecret = os.Getenv(cfg.Platform.AccessSecretEnv)
	if cfg.Generate.APIKeyEnv != "" {
		cfg.Generate.APIKey = os.Getenv(cfg.Generate.APIKeyEnv)
	}
}

func validate(cfg *Config) error {
	switch cfg.Platform.Kind {
	case "x", "dryrun":
		// valid
	default:
		return fmt.Errorf("platform.kind: unknown kind %q (want x or dryrun)", cfg.Platform.Kind)
	}

	if cfg.Platform.MaxMedia < 0 || cfg.Platform.MaxChars < 0 {
		return errors.New("platform: max_chars and max_media must not be negative")
	}

	switch cfg.Storage.Backend {
	case "file", "sqlite":
		// valid
	default:
		return fmt.Errorf("storage.backend: unknown backend %q (want file or sqlite)", cfg.Storage.Backend)
	}

	if cfg.Quota.DailyLimit < 0 {
		return fmt.Errorf("quota.daily_limit: must not be negative, got %d", cfg.Quota.DailyLimit)
	}
	if _, err := time.LoadLocation(cfg.Quota.Timezone); err != nil {
		return fmt.Errorf("quota.timezone: %w", err)
	}

	switch cfg.Generate.Provider {
	case "openai", "anthropic":
		// valid
	default:
		return fmt.Errorf("generate.provider: unknown provider %q (want openai or anthropic)", cfg.Generate.Provider)
	}
	if strings.TrimSpace(cfg.Generate.Separator) == "" {
		return errors.New("generate.separator: must not be blank")
	}

	if len(cfg.Categories) == 0 {
		return errors.New("categories: at least one category must be configured")
	}
	names := make(map[string]bool)
	for i := range cfg.Categories {
		c := &cfg.Categories[i]
		if names[c.Name] {
			return fmt.Errorf("categories: duplicate name %q", c.Name)
		}
		names[c.Name] = true
		if err := validateCategory(c); err != nil {
			return fmt.Errorf("categories[%d]: %w", i, err)
		}
	}

	return validateRender(&cfg.Render)
}
