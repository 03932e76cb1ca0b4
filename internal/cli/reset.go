package cli

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/gzhole/groupguard/internal/approval"
	"github.com/gzhole/groupguard/internal/engine"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset <group-id>",
	Short: "Discard a group's buffered messages without analyzing them",
	Long: `Ask the running groupguard serve process to drop everything buffered for
one group and restart its check clock. Nothing is sent to the analyzer.

  groupguard reset 123456789
  groupguard reset 123456789 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: resetCommand,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func resetCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Admin.Listen == "" {
		return fmt.Errorf("admin.listen is empty; resets need the admin API")
	}
	if !resetYes {
		res := approval.Ask(approval.Prompt{Action: "discard buffer", Group: args[0]})
		if !res.Approved {
			fmt.Printf("Cancelled (%s)\n", res.UserAction)
			return nil
		}
	}

	var r engine.GroupReset
	target := adminBaseURL(cfg) + "/groups/" + url.PathEscape(args[0]) + "/buffer"
	if err := adminCall(cmd.Context(), http.MethodDelete, target, &r); err != nil {
		return err
	}
	fmt.Printf("group %s: discarded %d message(s)\n", r.Group, r.Discarded)
	return nil
}
