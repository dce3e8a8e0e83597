package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/praetorian-inc/betwixt/pkg/rule"
	"github.com/praetorian-inc/betwixt/pkg/types"
	"github.com/spf13/cobra"
)

var (
	rulesPath    string
	rulesetID    string
	outputFormat string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage delimiter rules",
	Long:  "Commands for listing and checking delimiter rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available rules",
	Long:  "Display all available rules with their IDs, names and delimiters",
	RunE:  runRulesList,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Validate rules and their examples",
	Long: `Validate rules (builtin, or loaded from a file or directory) and run
every rule against its examples and negative examples. Builtin rulesets are
checked against the builtin rules.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRulesCheck,
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
	rulesListCmd.Flags().StringVar(&rulesPath, "rules", "", "Path to custom rules file or directory")
	rulesListCmd.Flags().StringVar(&rulesetID, "ruleset", "", "Only list rules of a builtin ruleset")
	rulesListCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(rulesPath, rulesetID, "", "")
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	// Output based on format
	switch outputFormat {
	case "json":
		return outputRulesJSON(cmd, rules)
	case "table":
		return outputRulesTable(cmd, rules)
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	loader := rule.NewLoader()

	var rules []*types.Rule
	var err error
	builtin := len(args) == 0
	if builtin {
		rules, err = loader.LoadBuiltinRules()
	} else {
		rules, err = loader.LoadRulesPath(args[0])
	}
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	out := cmd.OutOrStdout()
	failed := 0
	known := make(map[string]bool, len(rules))
	for _, r := range rules {
		if known[r.ID] {
			fmt.Fprintf(out, "FAIL %s: duplicate rule ID\n", r.ID)
			failed++
			continue
		}
		known[r.ID] = true

		if err := rule.ValidateRule(r); err != nil {
			fmt.Fprintf(out, "FAIL %s: %v\n", r.ID, err)
			failed++
			continue
		}
		if !quiet {
			fmt.Fprintf(out, "ok   %s (%d examples)\n", r.ID, len(r.Examples)+len(r.NegativeExamples))
		}
	}

	if builtin {
		rulesets, err := loader.LoadBuiltinRulesets()
		if err != nil {
			return fmt.Errorf("loading rulesets: %w", err)
		}
		for _, rs := range rulesets {
			if err := rule.ValidateRuleset(rs, known); err != nil {
				fmt.Fprintf(out, "FAIL ruleset %s: %v\n", rs.ID, err)
				failed++
				continue
			}
			if !quiet {
				fmt.Fprintf(out, "ok   ruleset %s (%d rules)\n", rs.ID, len(rs.RuleIDs))
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d checks failed", failed)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func outputRulesJSON(cmd *cobra.Command, rules []*types.Rule) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(rules)
}

func outputRulesTable(cmd *cobra.Command, rules []*types.Rule) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tName\tDelimiters\tCategories\n")
	fmt.Fprintf(w, "--\t----\t----------\t----------\n")

	for _, r := range rules {
		delims := fmt.Sprintf("%s .. %s", patternSummary(r.Identifiers), patternSummary(r.Terminators))
		if r.SingleShot {
			delims += " (first)"
		}
		categories := ""
		if len(r.Categories) > 0 {
			categories = r.Categories[0]
			if len(r.Categories) > 1 {
				categories += fmt.Sprintf(" (+%d)", len(r.Categories)-1)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Name, delims, categories)
	}

	return nil
}

// patternSummary shows the first pattern and how many more there are.
func patternSummary[P fmt.Stringer](patterns []P) string {
	if len(patterns) == 0 {
		return ""
	}
	s := patterns[0].String()
	if len(patterns) > 1 {
		s += fmt.Sprintf(" (+%d)", len(patterns)-1)
	}
	return s
}
