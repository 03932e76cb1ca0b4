package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <group-id>",
	Short: "List recorded enforcements for a group",
	Long: `List the violation history of a group from the sqlite history store.
With the in-memory backend, query the running server instead:

  groupguard history 123456789
  curl http://127.0.0.1:8089/groups/123456789/history`,
	Args: cobra.ExactArgs(1),
	RunE: historyCommand,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Backend != "sqlite" {
		return fmt.Errorf("history backend is %q; only the sqlite backend outlives the server", cfg.History.Backend)
	}

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(records) == 0 {
		fmt.Printf("No enforcements recorded for group %s.\n", args[0])
		return nil
	}
	fmt.Printf("%-20s %6s  %s\n", "USER", "COUNT", "LAST ENFORCED")
	for _, r := range records {
		fmt.Printf("%-20s %6d  %s\n", r.UserID, r.Count, r.LastEnforcedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
