package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gzhole/groupguard/internal/approval"
	"github.com/gzhole/groupguard/internal/engine"
	"github.com/gzhole/groupguard/internal/logger"
	"github.com/gzhole/groupguard/internal/onebot"
)

const testMuteDuration = 60 * time.Second

var testMuteYes bool

var testMuteCmd = &cobra.Command{
	Use:   "test-mute <group-id> <user-id>",
	Short: "Mute a user for 60 seconds to verify the bot's permissions",
	Long: `Send a 60 second mute through the OneBot HTTP API. Use this once after
setup to confirm the bot account is a group admin.

  groupguard test-mute 123456789 987654321
  groupguard test-mute 123456789 987654321 --yes`,
	Args: cobra.ExactArgs(2),
	RunE: testMuteCommand,
}

func init() {
	testMuteCmd.Flags().BoolVarP(&testMuteYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(testMuteCmd)
}

func testMuteCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.OneBot.HTTPURL == "" {
		return fmt.Errorf("onebot.http_url is not configured")
	}
	groupID, userID := args[0], args[1]

	if !testMuteYes {
		res := approval.Ask(approval.Prompt{
			Action:   "test mute",
			Group:    groupID,
			User:     userID,
			Duration: testMuteDuration,
		})
		if !res.Approved {
			fmt.Printf("Cancelled (%s).\n", res.UserAction)
			return nil
		}
	}

	audit, closeAudit, err := openAudit(cfg)
	if err != nil {
		return err
	}
	defer closeAudit()

	client := onebot.NewClient(cfg.OneBot.HTTPURL, cfg.OneBot.AccessToken, cfg.OneBot.ActionsPerSecond, appLog)
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	err = testMute(ctx, client, audit, groupID, userID)
	if err != nil {
		appLog.Error("test mute failed", zap.String("group", groupID), zap.String("user", userID), zap.Error(err))
		return fmt.Errorf("test mute failed: %w", err)
	}
	fmt.Printf("Muted %s in group %s for %s.\n", userID, groupID, testMuteDuration)
	return nil
}

// testMute enforces a short mute and records the attempt with the TEST
// decision so it never counts as a violation.
func testMute(ctx context.Context, e engine.Enforcer, audit engine.Auditor, groupID, userID string) error {
	err := e.Enforce(ctx, groupID, userID, testMuteDuration)
	if audit != nil {
		ev := logger.AuditEvent{
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
			Source:          "cli",
			Group:           groupID,
			User:            userID,
			Decision:        logger.DecisionTest,
			Reason:          "manual test mute",
			DurationSeconds: int64(testMuteDuration / time.Second),
		}
		if err != nil {
			ev.Error = err.Error()
		}
		if logErr := audit.Log(ev); logErr != nil {
			appLog.Warn("audit log write failed", zap.Error(logErr))
		}
	}
	return err
}
