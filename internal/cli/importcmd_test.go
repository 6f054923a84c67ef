package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestExtractFeedURLs(t *testing.T) {
	outlines := []opmlOutline{
		{XMLURL: "https://krebsonsecurity.com/feed/", Text: "Krebs"},
		{XMLURL: "https://www.cisa.gov/cybersecurity-advisories/all.xml", Text: "CISA"},
		{XMLURL: "", Text: "Empty"},
		{XMLURL: "ftp://invalid.com/feed", Text: "Invalid scheme"},
	}

	urls := extractFeedURLs(outlines)
	if len(urls) != 2 {
		t.Fatalf("expected 2 URLs, got %d: %v", len(urls), urls)
	}
	if urls[0] != "https://krebsonsecurity.com/feed/" {
		t.Errorf("urls[0] = %q", urls[0])
	}
}

func TestExtractFeedURLs_Nested(t *testing.T) {
	outlines := []opmlOutline{
		{
			Text: "Security",
			Outlines: []opmlOutline{
				{XMLURL: "https://krebs.com/feed/"},
				{XMLURL: "https://cisa.gov/feed/"},
			},
		},
		{
			Text: "DevOps",
			Outlines: []opmlOutline{
				{XMLURL: "https://kubernetes.io/feed.xml"},
			},
		},
	}

	urls := extractFeedURLs(outlines)
	if len(urls) != 3 {
		t.Fatalf("expected 3 URLs from nested outlines, got %d: %v", len(urls), urls)
	}
}

func TestExtractFeedURLs_Empty(t *testing.T) {
	urls := extractFeedURLs(nil)
	if len(urls) != 0 {
		t.Errorf("expected 0 URLs, got %d", len(urls))
	}
}

func TestFindFeedsNode(t *testing.T) {
	yamlContent := `categories:
  - name: tracks
    kind: topics
    topics: [a]
  - name: news
    kind: feed
    feeds:
      - "https://example.com/feed"
`
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(yamlContent), &doc); err != nil {
		t.Fatal(err)
	}

	node := findFeedsNode(&doc, "news")
	if node == nil {
		t.Fatal("feeds node not found")
	}
	if node.Kind != yaml.SequenceNode {
		t.Errorf("expected sequence node, got %d", node.Kind)
	}
	if len(node.Content) != 1 {
		t.Errorf("expected 1 feed, got %d", len(node.Content))
	}
}

func TestFindFeedsNode_CreatesMissingList(t *testing.T) {
	yamlContent := `categories:
  - name: news
    kind: feed
`
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(yamlContent), &doc); err != nil {
		t.Fatal(err)
	}

	node := findFeedsNode(&doc, "news")
	if node == nil || node.Kind != yaml.SequenceNode || len(node.Content) != 0 {
		t.Fatalf("expected new empty sequence, got %+v", node)
	}
}

func TestFindFeedsNode_Missing(t *testing.T) {
	yamlContent := `platform:
  kind: dryrun
`
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(yamlContent), &doc); err != nil {
		t.Fatal(err)
	}

	if node := findFeedsNode(&doc, "news"); node != nil {
		t.Error("expected nil for config without categories")
	}
}

func TestMergeFeeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `# bot config
categories:
  - name: news
    kind: feed
    feeds:
      - https://a.example/feed
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := mergeFeeds(path, "news", []string{"https://b.example/feed"}); err != nil {
		t.Fatalf("mergeFeeds: %v", err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# bot config", "https://a.example/feed", "https://b.example/feed"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("merged config missing %q:\n%s", want, out)
		}
	}

	if err := mergeFeeds(path, "other", []string{"https://c.example/feed"}); err == nil {
		t.Error("expected error for unknown category")
	}
}
