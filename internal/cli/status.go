package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzhole/groupguard/internal/config"
	"github.com/gzhole/groupguard/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show GroupGuard status - trigger settings, buffers, history and audit log",
	Long: `Show the effective configuration and, when groupguard serve is running,
the live buffer state reported by its admin API.

  groupguard status`,
	RunE: statusCommand,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println("  GroupGuard Status")
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println()
	fmt.Printf("  Version:   %s\n", Version)
	fmt.Printf("  Config:    %s\n", cfg.ConfigDir)
	fmt.Println()

	fmt.Println("─── Trigger ───────────────────────────────────────────")
	fmt.Printf("  Mode:            %s\n", cfg.TriggerMode)
	fmt.Printf("  Check interval:  %s\n", cfg.CheckIntervalDuration())
	fmt.Printf("  Batch size:      %d\n", cfg.BatchSize)
	fmt.Printf("  Recent limit:    %s\n", limitString(cfg.RecentMessageLimit))
	fmt.Printf("  Ban duration:    %s\n", cfg.BanDurationDuration())
	fmt.Printf("  Cool-down:       %s\n", cfg.CoolDownDuration())
	fmt.Println()

	fmt.Println("─── Analyzer ──────────────────────────────────────────")
	if cfg.LLMProvider == "" {
		fmt.Println("  ⚠  No provider selected, batches are cleared without analysis")
	} else {
		p := cfg.Providers[cfg.LLMProvider]
		fmt.Printf("  ✅ %s (%s, %s)\n", cfg.LLMProvider, p.Type, p.Model)
		if p.Key() == "" {
			fmt.Println("  ⚠  No API key configured for this provider")
		}
	}
	if len(cfg.EnabledGroups) > 0 {
		fmt.Printf("  Enabled groups:  %s\n", strings.Join(cfg.EnabledGroups, ", "))
	} else {
		fmt.Println("  Enabled groups:  all")
	}
	fmt.Printf("  Whitelisted:     %d user(s)\n", len(cfg.WhitelistUsers))
	fmt.Println()

	fmt.Println("─── Runtime ───────────────────────────────────────────")
	printRuntime(cmd.Context(), cfg)
	fmt.Println()

	fmt.Println("─── Storage ───────────────────────────────────────────")
	if cfg.History.Backend == "sqlite" {
		checkFile("History", cfg.History.Path)
	} else {
		fmt.Println("  ⬚  History: in memory (lost on restart)")
	}
	checkFile("Audit log", cfg.AuditLog)
	fmt.Println()

	return nil
}

func printRuntime(ctx context.Context, cfg *config.Config) {
	if cfg.Admin.Listen == "" {
		fmt.Println("  ⬚  Admin API disabled")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var st engine.Status
	if err := adminCall(ctx, http.MethodGet, adminBaseURL(cfg)+"/status", &st); err != nil {
		fmt.Printf("  ⬚  Not running (%s)\n", adminBaseURL(cfg))
		return
	}
	fmt.Printf("  ✅ Running (%s)\n", adminBaseURL(cfg))
	fmt.Printf("  Buffered:        %d message(s) in %d group(s)\n", st.BufferMessages, st.BufferGroups)
	if st.TimeSensitive {
		fmt.Printf("  Clock:           every %s (%s)\n", st.CheckInterval, st.Mode)
	} else {
		fmt.Printf("  Clock:           unused (%s)\n", st.Mode)
	}
}

func limitString(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}

func checkFile(name, path string) {
	if path == "" {
		fmt.Printf("  ⬚  %s: disabled\n", name)
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("  ⬚  %s: %s (not yet created)\n", name, path)
		return
	}
	sizeKB := info.Size() / 1024
	if sizeKB == 0 {
		fmt.Printf("  ✅ %s: %s (<1 KB)\n", name, path)
	} else {
		fmt.Printf("  ✅ %s: %s (%d KB)\n", name, path, sizeKB)
	}
}
