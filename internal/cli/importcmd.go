package cli

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/postbot/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	importDryRun   bool
	importCategory string
)

var importCmd = &cobra.Command{
	Use:   "import <file.opml>",
	Short: "Import feeds from an OPML file into a feed category",
	Args:  cobra.ExactArgs(1),
	RunE:  importAction,
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "show what would be added without modifying config")
	importCmd.Flags().StringVar(&importCategory, "category", "news", "name of the feed category to extend")
}

type opml struct {
	Body opmlBody `xml:"body"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	XMLURL   string        `xml:"xmlUrl,attr"`
	Text     string        `xml:"text,attr"`
	Outlines []opmlOutline `xml:"outline"`
}

func importAction(_ *cobra.Command, args []string) error {
	opmlPath := args[0]

	data, err := os.ReadFile(opmlPath)
	if err != nil {
		return fmt.Errorf("read OPML: %w", err)
	}

	var doc opml
	if err := xml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse OPML: %w", err)
	}

	feedURLs := extractFeedURLs(doc.Body.Outlines)
	if len(feedURLs) == 0 {
		fmt.Println("No feed URLs found in OPML file.")
		return nil
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var target *config.Category
	for i := range cfg.Categories {
		if cfg.Categories[i].Name == importCategory {
			target = &cfg.Categories[i]
		}
	}
	if target == nil || target.Kind != config.KindFeed {
		return fmt.Errorf("no feed category named %q in config", importCategory)
	}

	existing := make(map[string]bool)
	for _, f := range target.Feeds {
		existing[f] = true
	}

	var newFeeds []string
	skipped := 0
	for _, u := range feedURLs {
		if existing[u] {
			skipped++
			continue
		}
		existing[u] = true
		newFeeds = append(newFeeds, u)
	}

	if len(newFeeds) == 0 {
		fmt.Printf("All %d feeds already present, nothing to add.\n", skipped)
		return nil
	}

	if importDryRun {
		fmt.Printf("Would add %d feeds to %s (skipping %d duplicates):\n", len(newFeeds), importCategory, skipped)
		for _, f := range newFeeds {
			fmt.Printf("  + %s\n", f)
		}
		return nil
	}

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	if err := mergeFeeds(configPath, importCategory, newFeeds); err != nil {
		return fmt.Errorf("merge feeds: %w", err)
	}

	fmt.Printf("Added %d feeds to %s, skipped %d duplicates.\n", len(newFeeds), importCategory, skipped)
	return nil
}

func extractFeedURLs(outlines []opmlOutline) []string {
	var urls []string
	for _, o := range outlines {
		u := strings.TrimSpace(o.XMLURL)
		if u != "" && (strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")) {
			urls = append(urls, u)
		}
		urls = append(urls, extractFeedURLs(o.Outlines)...)
	}
	return urls
}

// mergeFeeds appends newFeeds to the feeds of the named category, editing
// config.yaml as a node tree so comments and layout survive.
func mergeFeeds(configPath, category string, newFeeds []string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config YAML: %w", err)
	}

	feedsNode := findFeedsNode(&doc, category)
	if feedsNode == nil {
		return fmt.Errorf("could not find feeds of category %q in config.yaml", category)
	}

	for _, f := range newFeeds {
		feedsNode.Content = append(feedsNode.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: f,
		})
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(configPath, out, 0o644)
}

// findFeedsNode returns the feeds sequence of the category with the given
// name, creating an empty one when the category has no feeds key.
func findFeedsNode(doc *yaml.Node, category string) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return findFeedsNode(doc.Content[0], category)
	}

	categories := findMapValue(doc, "categories")
	if categories == nil || categories.Kind != yaml.SequenceNode {
		return nil
	}

	for _, c := range categories.Content {
		name := findMapValue(c, "name")
		if name == nil || name.Value != category {
			continue
		}
		if feeds := findMapValue(c, "feeds"); feeds != nil {
			return feeds
		}
		feeds := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		c.Content = append(c.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "feeds"}, feeds)
		return feeds
	}
	return nil
}

func findMapValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}
