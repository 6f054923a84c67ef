package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/postbot/internal/config"
	"github.com/ppiankov/postbot/internal/store"
	"github.com/spf13/cobra"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's quota, history size and categories",
	RunE:  statusAction,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "output format: text or json")
}

type statusReport struct {
	Date       string           `json:"date"`
	Count      int              `json:"count"`
	DailyLimit int              `json:"daily_limit"`
	Remaining  int              `json:"remaining"`
	Posted     int              `json:"posted"`
	Backend    string           `json:"backend"`
	DryRun     bool             `json:"dry_run"`
	Categories []statusCategory `json:"categories"`
	Warnings   []string         `json:"warnings,omitempty"`
}

type statusCategory struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Weight int    `json:"weight"`
	Items  int    `json:"items"`
}

func statusAction(cmd *cobra.Command, _ []string) error {
	if statusFormat != "text" && statusFormat != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", statusFormat)
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	var warnings []string
	backend, err := openStore(cfg, configDir, func(err error) {
		warnings = append(warnings, fmt.Sprintf("storage: %v", err))
	})
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	rep := buildStatus(cmd.Context(), cfg, backend)
	rep.Warnings = append(warnings, rep.Warnings...)
	if statusFormat == "json" {
		return writeStatusJSON(os.Stdout, rep)
	}
	writeStatusText(os.Stdout, rep)
	return nil
}

func buildStatus(ctx context.Context, cfg *config.Config, backend *store.Backend) statusReport {
	rep := statusReport{
		DailyLimit: cfg.Quota.DailyLimit,
		Backend:    cfg.Storage.Backend,
		DryRun:     cfg.DryRun(),
	}

	q, err := backend.Quota.Read(ctx)
	if err != nil {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("quota: %v", err))
	}
	rep.Date, rep.Count = q.Date, q.Count
	rep.Remaining = max(cfg.Quota.DailyLimit-q.Count, 0)

	ids, err := backend.History.List(ctx)
	if err != nil {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("history: %v", err))
	}
	rep.Posted = len(ids)

	for _, c := range cfg.Categories {
		items := len(c.Topics)
		if c.Kind == config.KindFeed {
			items = len(c.Feeds)
		}
		rep.Categories = append(rep.Categories, statusCategory{Name: c.Name, Kind: c.Kind, Weight: c.Weight, Items: items})
	}
	return rep
}

func writeStatusJSON(w io.Writer, rep statusReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func writeStatusText(w io.Writer, rep statusReport) {
	mode := ""
	if rep.DryRun {
		mode = " (dry run)"
	}
	_, _ = fmt.Fprintf(w, "postbot status%s\n\n", mode)
	_, _ = fmt.Fprintf(w, "  quota:    %d/%d on %s (%d left)\n", rep.Count, rep.DailyLimit, rep.Date, rep.Remaining)
	_, _ = fmt.Fprintf(w, "  history:  %d posted ids (%s backend)\n", rep.Posted, rep.Backend)
	_, _ = fmt.Fprintln(w, "  categories:")
	for _, c := range rep.Categories {
		unit := "topics"
		if c.Kind == config.KindFeed {
			unit = "feeds"
		}
		_, _ = fmt.Fprintf(w, "    %-16s %-8s weight %d, %d %s\n", c.Name, c.Kind, c.Weight, c.Items, unit)
	}
	for _, warn := range rep.Warnings {
		_, _ = fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}
