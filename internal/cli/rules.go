package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesExportCmd)
	rulesCmd.AddCommand(rulesImportCmd)
	rulesCmd.AddCommand(rulesResetCmd)
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Rule database operations",
	Long:  "Export, import and reset the learned patterns, block log and counters.",
}

var rulesExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the rule database as JSON (stdout when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRulesExport,
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the rule database with an exported JSON document",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesImport,
}

var rulesResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear learned patterns, block log and counters",
	RunE:  runRulesReset,
}

func runRulesExport(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	data, err := svc.ExportRules()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := os.WriteFile(args[0], data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported rules to %s\n", args[0])
	return nil
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	svc, err := openService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	if err := svc.ImportRules(data); err != nil {
		return err
	}
	s := svc.Summary()
	fmt.Fprintf(cmd.OutOrStdout(), "Imported rules: %d bad, %d good patterns\n", s.LearnedBad, s.LearnedGood)
	return nil
}

func runRulesReset(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	svc.ResetRules()
	fmt.Fprintln(cmd.OutOrStdout(), "Rule database reset")
	return nil
}
