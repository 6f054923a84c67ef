package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestYAML(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test yaml: %v", err)
	}
	return path
}

const minimalFeedConfig = `
categories:
  - name: news
    kind: feed
    feeds:
      - "https://example.com/feed.xml"
`

// --- Load tests ---

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_X_KEY", "key")
	t.Setenv("TEST_X_SECRET", "secret")
	t.Setenv("TEST_X_TOKEN", "token")
	t.Setenv("TEST_X_TOKEN_SECRET", "token-secret")
	t.Setenv("TEST_LLM_KEY", "sk-secret")

	writeTestYAML(t, dir, DefaultConfigFile, `
platform:
  kind: x
  api_key_env: TEST_X_KEY
  api_secret_env: TEST_X_SECRET
  access_token_env: TEST_X_TOKEN
  access_secret_env: TEST_X_TOKEN_SECRET
  max_chars: 500
storage:
  backend: sqlite
  path: custom.db
quota:
  daily_limit: 10
  timezone: "America/New_York"
run:
  start_jitter: 15m
  segment_delay: 2s
  segment_jitter: 3s
  feed_top_k: 5
media:
  images_per_post: 2
  og_image: true
generate:
  provider: anthropic
  model: claude-sonnet-4-5
  api_key_env: TEST_LLM_KEY
  separator: "###"
render:
  max_tags: 3
  tags:
    - contains_any: ["formula 1", "f1"]
      tags: ["F1"]
categories:
  - name: news
    weight: 5
    kind: feed
    prefix: "NEWS: "
    tags: ["Gaming", "#Motorsport"]
    feeds: ["https://example.com/feed.xml"]
  - name: tracks
    weight: 2
    kind: topics
    topics:
      - "Monza"
      - name: "Circuit de Monaco"
        wiki: "Circuit_de_Monaco"
  - name: tech
    kind: generate
    style: quiz
    topics: ["GPUs"]
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	creds, err := cfg.Platform.Credentials()
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.APIKey != "key" || creds.AccessSecret != "token-secret" {
		t.Errorf("credentials = %+v", creds)
	}
	if cfg.Platform.MaxChars != 500 {
		t.Errorf("max_chars = %d, want 500", cfg.Platform.MaxChars)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.Path != "custom.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Quota.DailyLimit != 10 {
		t.Errorf("daily_limit = %d, want 10", cfg.Quota.DailyLimit)
	}
	if cfg.Location().String() != "America/New_York" {
		t.Errorf("location = %s", cfg.Location())
	}
	if cfg.Run.StartJitter.Duration != 15*time.Minute {
		t.Errorf("start_jitter = %v, want 15m", cfg.Run.StartJitter.Duration)
	}
	if cfg.Run.FeedTopK != 5 {
		t.Errorf("feed_top_k = %d, want 5", cfg.Run.FeedTopK)
	}
	if cfg.Generate.APIKey != "sk-secret" {
		t.Errorf("generate api_key = %q, want sk-secret", cfg.Generate.APIKey)
	}
	if cfg.Generate.Separator != "###" {
		t.Errorf("separator = %q", cfg.Generate.Separator)
	}
	if got := cfg.Render.Tags[0].Tags[0]; got != "#F1" {
		t.Errorf("tag rule tag = %q, want #F1", got)
	}

	if len(cfg.Categories) != 3 {
		t.Fatalf("categories = %d, want 3", len(cfg.Categories))
	}
	news := cfg.Categories[0]
	if news.Tags[0] != "#Gaming" || news.Tags[1] != "#Motorsport" {
		t.Errorf("news tags = %v", news.Tags)
	}
	tracks := cfg.Categories[1]
	if tracks.Topics[0].Name != "Monza" {
		t.Errorf("scalar topic = %+v", tracks.Topics[0])
	}
	if tracks.Topics[1].Wiki != "Circuit_de_Monaco" {
		t.Errorf("mapping topic = %+v", tracks.Topics[1])
	}
	tech := cfg.Categories[2]
	if tech.Weight != 1 {
		t.Errorf("default weight = %d, want 1", tech.Weight)
	}
	if tech.Segments != 2 {
		t.Errorf("quiz segments = %d, want 2", tech.Segments)
	}
	if tech.IDFrom != IDFromTopic {
		t.Errorf("id_from = %q, want topic", tech.IDFrom)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, minimalFeedConfig)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Platform.Kind != DefaultPlatformKind {
		t.Errorf("platform.kind = %q, want %q", cfg.Platform.Kind, DefaultPlatformKind)
	}
	if cfg.Platform.APIKeyEnv != "API_KEY" {
		t.Errorf("api_key_env = %q, want API_KEY", cfg.Platform.APIKeyEnv)
	}
	if cfg.Platform.MaxChars != DefaultMaxChars {
		t.Errorf("max_chars = %d, want %d", cfg.Platform.MaxChars, DefaultMaxChars)
	}
	if cfg.Platform.MaxMedia != DefaultMaxMedia {
		t.Errorf("max_media = %d, want %d", cfg.Platform.MaxMedia, DefaultMaxMedia)
	}
	if cfg.Storage.Backend != DefaultStorageBackend {
		t.Errorf("backend = %q, want %q", cfg.Storage.Backend, DefaultStorageBackend)
	}
	if cfg.Storage.HistoryPath != DefaultHistoryPath {
		t.Errorf("history_path = %q, want %q", cfg.Storage.HistoryPath, DefaultHistoryPath)
	}
	if cfg.Quota.DailyLimit != DefaultDailyLimit {
		t.Errorf("daily_limit = %d, want %d", cfg.Quota.DailyLimit, DefaultDailyLimit)
	}
	if cfg.Run.SegmentDelay.Duration != DefaultSegmentDelay {
		t.Errorf("segment_delay = %v, want %v", cfg.Run.SegmentDelay.Duration, DefaultSegmentDelay)
	}
	if cfg.Run.FeedTopK != DefaultFeedTopK {
		t.Errorf("feed_top_k = %d, want %d", cfg.Run.FeedTopK, DefaultFeedTopK)
	}
	if cfg.Run.GenerateAttempts != DefaultGenerateAttempts {
		t.Errorf("generate_attempts = %d, want %d", cfg.Run.GenerateAttempts, DefaultGenerateAttempts)
	}
	if cfg.Generate.Separator != DefaultSeparator {
		t.Errorf("separator = %q, want %q", cfg.Generate.Separator, DefaultSeparator)
	}
	if cfg.Render.MaxTags != DefaultMaxTags {
		t.Errorf("max_tags = %d, want %d", cfg.Render.MaxTags, DefaultMaxTags)
	}
	if cfg.Location() != time.Local {
		t.Errorf("location = %v, want Local", cfg.Location())
	}
}

func TestLoad_NoCategories(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, `
categories: []
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for no categories")
	}
	if want := "at least one category must be configured"; !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want containing %q", err, want)
	}
}

func TestLoad_ExplicitZeroKept(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, `
quota:
  daily_limit: 0
categories:
  - name: news
    kind: feed
    weight: 0
    feeds: ["https://example.com/feed"]
  - name: tracks
    kind: topics
    topics: [Monza]
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Quota.DailyLimit != 0 {
		t.Errorf("daily_limit = %d, want explicit 0", cfg.Quota.DailyLimit)
	}
	if cfg.Categories[0].Weight != 0 {
		t.Errorf("news weight = %d, want explicit 0", cfg.Categories[0].Weight)
	}
	if cfg.Categories[1].Weight != 1 {
		t.Errorf("tracks weight = %d, want default 1", cfg.Categories[1].Weight)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "unknown platform",
			content: `
platform:
  kind: mastodon
` + minimalFeedConfig,
			want: "platform.kind",
		},
		{
			name: "unknown backend",
			content: `
storage:
  backend: redis
` + minimalFeedConfig,
			want: "storage.backend",
		},
		{
			name: "invalid timezone",
			content: `
quota:
  timezone: "Not/AZone"
` + minimalFeedConfig,
			want: "quota.timezone",
		},
		{
			name: "unknown provider",
			content: `
generate:
  provider: cohere
` + minimalFeedConfig,
			want: "generate.provider",
		},
		{
			name: "feed without feeds",
			content: `
categories:
  - name: news
    kind: feed
`,
			want: "needs at least one feed",
		},
		{
			name: "unknown kind",
			content: `
categories:
  - name: news
    kind: podcast
`,
			want: "unknown kind",
		},
		{
			name: "duplicate names",
			content: `
categories:
  - name: news
    kind: topics
    topics: ["a"]
  - name: news
    kind: topics
    topics: ["b"]
`,
			want: "duplicate name",
		},
		{
			name: "unknown style",
			content: `
categories:
  - name: ai
    kind: generate
    style: poem
`,
			want: "unknown style",
		},
		{
			name: "tag rule without tags",
			content: `
render:
  tags:
    - contains_any: ["f1"]
` + minimalFeedConfig,
			want: "render.tags[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTestYAML(t, dir, DefaultConfigFile, tt.content)

			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_GenerateWithoutTopicsHashesText(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, `
categories:
  - name: facts
    kind: generate
    style: fact
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c := cfg.Categories[0]
	if c.IDFrom != IDFromText {
		t.Errorf("id_from = %q, want text", c.IDFrom)
	}
	if c.Segments != 1 {
		t.Errorf("fact segments = %d, want 1", c.Segments)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_EmptyDir(t *testing.T) {
	if _, err := Load("  "); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, `
run:
  segment_delay: soon
`+minimalFeedConfig)

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

// --- Credentials tests ---

func TestCredentials_Missing(t *testing.T) {
	p := PlatformConfig{
		APIKeyEnv:       "K",
		APISecretEnv:    "S",
		AccessTokenEnv:  "T",
		AccessSecretEnv: "TS",
		APIKey:          "k",
		AccessToken:     "t",
	}
	_, err := p.Credentials()
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
	if !strings.Contains(err.Error(), "S, TS") {
		t.Errorf("error should name missing env vars, got %q", err)
	}
}

// --- LoadEnv tests ---

func TestLoadEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultEnvFile, "POSTBOT_TEST_A=from-file\nPOSTBOT_TEST_B=from-file\n")
	t.Setenv("POSTBOT_TEST_A", "from-env")
	t.Setenv("POSTBOT_TEST_B", "")
	_ = os.Unsetenv("POSTBOT_TEST_B")

	loaded, err := LoadEnv(dir)
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if len(loaded) == 0 {
		t.Fatal("expected .env file to be loaded")
	}
	if got := os.Getenv("POSTBOT_TEST_A"); got != "from-env" {
		t.Errorf("POSTBOT_TEST_A = %q, want from-env", got)
	}
	if got := os.Getenv("POSTBOT_TEST_B"); got != "from-file" {
		t.Errorf("POSTBOT_TEST_B = %q, want from-file", got)
	}
	_ = os.Unsetenv("POSTBOT_TEST_B")
}

func TestLoadEnv_NoFiles(t *testing.T) {
	loaded, err := LoadEnv(t.TempDir())
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("loaded = %v, want none", loaded)
	}
}

func TestNormalizeTag(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"F1", "#F1"},
		{"#Gaming", "#Gaming"},
		{" Formula One ", "#FormulaOne"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeTag(tt.in); got != tt.want {
			t.Errorf("normalizeTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
