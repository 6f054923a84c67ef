package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/postbot/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with example files",
	RunE:  initAction,
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	created := 0

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig), 0o644)
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	envPath := filepath.Join(configDir, config.DefaultEnvFile)
	wrote, err = writeIfNotExists(envPath, []byte(exampleEnv), 0o600)
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	if created == 0 {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s with %d config files.\n", configDir, created)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte, perm os.FileMode) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# postbot configuration

platform:
  kind: x            # x or dryrun
  max_chars: 280
  max_media: 4
  api_key_env: API_KEY
  api_secret_env: API_SECRET
  access_token_env: ACCESS_TOKEN
  access_secret_env: ACCESS_SECRET

storage:
  backend: file      # file or sqlite
  history_path: posted_ids.txt
  quota_path: quota.json
  # path: postbot.db

quota:
  daily_limit: 16
  timezone: Local

run:
  start_jitter: 10m
  segment_delay: 5s
  segment_jitter: 10s
  feed_top_k: 3
  generate_attempts: 5

media:
  images_per_post: 1
  max_bytes: 5242880
  og_image: true

generate:
  provider: openai   # openai or anthropic
  model: gpt-4o-mini
  api_key_env: OPENAI_API_KEY
  separator: "|||"

render:
  max_segments: 4
  max_tags: 2
  tags:
    - contains_any: ["formula 1", "f1", "grand prix"]
      tags: ["#F1"]
    - contains_any: ["playstation", "xbox", "nintendo"]
      tags: ["#Gaming"]

sanitize:
  patterns:
    - "submitted by /u/\\S+"
    - "\\[link\\]|\\[comments\\]"

categories:
  - name: news
    kind: feed
    weight: 3
    prefix: "🚨 NEWS: "
    tags: ["#Gaming", "#Motorsport"]
    feeds:
      - https://www.motorsport.com/rss/f1/news/
      - https://feeds.feedburner.com/ign/games-all
      - https://www.reddit.com/r/GamingLeaksAndRumours/.rss

  - name: tracks
    kind: topics
    weight: 1
    tags: ["#Motorsport"]
    topics:
      - name: Spa-Francorchamps
        wiki: Circuit de Spa-Francorchamps
      - name: Monza
        wiki: Monza Circuit
      - name: Suzuka
        wiki: Suzuka International Racing Course

  - name: cars
    kind: generate
    weight: 1
    style: thread
    segments: 3
    tone: enthusiastic but accurate
    tags: ["#Cars"]
    topics:
      - Porsche 917
      - McLaren F1
      - Lancia Stratos
`

const exampleEnv = `# postbot secrets; variables already set in the environment win
API_KEY=
API_SECRET=
ACCESS_TOKEN=
ACCESS_SECRET=
OPENAI_API_KEY=
`
