package cli

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/gzhole/groupguard/internal/engine"
)

var checkCmd = &cobra.Command{
	Use:   "check <group-id>",
	Short: "Analyze a group's buffered messages now",
	Long: `Ask the running groupguard serve process to run a batch cycle for one
group immediately, regardless of the trigger mode.

  groupguard check 123456789`,
	Args: cobra.ExactArgs(1),
	RunE: checkCommand,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func checkCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Admin.Listen == "" {
		return fmt.Errorf("admin.listen is empty; manual checks need the admin API")
	}

	var rep engine.Report
	target := adminBaseURL(cfg) + "/groups/" + url.PathEscape(args[0]) + "/check"
	if err := adminCall(cmd.Context(), http.MethodPost, target, &rep); err != nil {
		return err
	}
	fmt.Println(rep.Summary())
	return nil
}
