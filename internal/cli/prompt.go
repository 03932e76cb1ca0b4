package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gzhole/groupguard/internal/analyzer"
	"github.com/gzhole/groupguard/internal/verdict"
)

var promptFull bool

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Show the review rules and the response format sent to the analyzer",
	Long: `Print which review rules are in effect and the JSON format the analyzer
must answer with. --full prints the complete system prompt.

  groupguard prompt
  groupguard prompt --full`,
	RunE: promptCommand,
}

func init() {
	promptCmd.Flags().BoolVar(&promptFull, "full", false, "Print the complete system prompt")
	rootCmd.AddCommand(promptCmd)
}

func promptCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p := analyzer.NewPrompt(cfg.DefaultReviewRules, cfg.CustomReviewRules)
	if cfg.RulesFile != "" {
		if err := analyzer.NewRulesWatcher(cfg.RulesFile, p, appLog).Load(); err != nil {
			return fmt.Errorf("failed to read rules file: %w", err)
		}
	}

	def, custom, file := p.Sources()
	fmt.Println("Review rules:")
	fmt.Printf("  default rules: %s\n", sourceLabel(def, "configured", "built-in"))
	fmt.Printf("  custom rules:  %s\n", sourceLabel(custom, "configured", "none"))
	if cfg.RulesFile != "" {
		fmt.Printf("  rules file:    %s (%s)\n", cfg.RulesFile, sourceLabel(file, "loaded", "empty or missing"))
	}
	fmt.Println()

	if promptFull {
		fmt.Println(p.System())
		return nil
	}
	fmt.Println(p.Rules())
	fmt.Println()
	fmt.Println("Required response format:")
	fmt.Println(verdict.RequiredFormat)
	return nil
}

func sourceLabel(set bool, yes, no string) string {
	if set {
		return yes
	}
	return no
}
