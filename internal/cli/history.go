package cli

import (
	"fmt"
	"os"

	"github.com/ppiankov/postbot/internal/config"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or seed the list of posted ids",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print posted ids, oldest first",
	RunE:  historyListAction,
}

var historyAddCmd = &cobra.Command{
	Use:   "add <id>...",
	Short: "Mark ids as posted so they are never selected",
	Args:  cobra.MinimumNArgs(1),
	RunE:  historyAddAction,
}

func init() {
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 0, "print only the last N ids (0 = all)")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyAddCmd)
}

func historyListAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	backend, err := openStore(cfg, configDir, warnStderr)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	ids, err := backend.History.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if historyLimit > 0 && len(ids) > historyLimit {
		ids = ids[len(ids)-historyLimit:]
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func historyAddAction(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	backend, err := openStore(cfg, configDir, warnStderr)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	ctx := cmd.Context()
	seen, err := backend.History.Load(ctx)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	added := 0
	for _, id := range args {
		if seen.Has(id) {
			fmt.Printf("  exists: %s\n", id)
			continue
		}
		if err := backend.History.Record(ctx, id); err != nil {
			return fmt.Errorf("record %q: %w", id, err)
		}
		seen.Add(id)
		added++
		fmt.Printf("  added: %s\n", id)
	}
	fmt.Printf("Recorded %d new ids.\n", added)
	return nil
}

func warnStderr(err error) {
	fmt.Fprintf(os.Stderr, "warning: %v\n", err)
}
