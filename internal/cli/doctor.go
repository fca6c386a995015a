package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/askiguard/internal/audit"
	"github.com/ppiankov/askiguard/internal/command"
	"github.com/ppiankov/askiguard/internal/config"
	"github.com/ppiankov/askiguard/internal/patterns"
	"github.com/ppiankov/askiguard/internal/rules"
	"github.com/ppiankov/askiguard/internal/store"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, storage and audit log health",
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	checks := diagnose(resolvedConfigPath())
	return printChecks(cmd.OutOrStdout(), checks)
}

// diagnose runs every readiness check against the config at path. Checks
// that depend on a loaded config are skipped when it does not load.
func diagnose(path string) []checkResult {
	var checks []checkResult

	execPath, _ := os.Executable()
	checks = append(checks, checkResult{
		label:  "askiguard binary",
		ok:     execPath != "",
		detail: fmt.Sprintf("%s (v%s)", execPath, version),
	})

	if _, err := os.Stat(path); err == nil {
		checks = append(checks, checkResult{label: "config file", ok: true, detail: path})
	} else {
		checks = append(checks, checkResult{label: "config file", ok: true, detail: "not found, using defaults"})
	}

	cfg, hash, err := config.LoadConfigWithHash(path)
	if err != nil {
		return append(checks, checkResult{label: "config", ok: false, detail: err.Error(), fix: "askiguard init --force"})
	}
	checks = append(checks, checkResult{label: "config", ok: true, detail: hash})

	if _, err := command.New(cfg.Command); err != nil {
		checks = append(checks, checkResult{label: "timezone", ok: false, detail: err.Error(), fix: "set command.timezone to an IANA name"})
	} else {
		checks = append(checks, checkResult{label: "timezone", ok: true, detail: displayTimezone(cfg.Command.Timezone)})
	}

	if set, err := patterns.Load(cfg.Output.PatternsPath); err != nil {
		checks = append(checks, checkResult{label: "patterns", ok: false, detail: err.Error()})
	} else {
		n := len(set.Tables().Safe)
		for _, c := range set.Categories() {
			n += len(c.Needles)
		}
		source := cfg.Output.PatternsPath
		if source == "" {
			source = "built-in"
		}
		checks = append(checks, checkResult{label: "patterns", ok: true, detail: fmt.Sprintf("%d patterns (%s)", n, source)})
	}

	checks = append(checks, checkStorage(cfg))

	if cfg.AuditLog == "" {
		checks = append(checks, checkResult{label: "audit log", ok: true, detail: "disabled"})
	} else if _, err := os.Stat(cfg.AuditLog); err != nil {
		checks = append(checks, checkResult{label: "audit log", ok: true, detail: "not yet written"})
	} else if v := audit.Verify(cfg.AuditLog); v.Valid {
		checks = append(checks, checkResult{label: "audit log", ok: true, detail: fmt.Sprintf("%d entries, chain intact", v.Lines)})
	} else {
		checks = append(checks, checkResult{
			label:  "audit log",
			ok:     false,
			detail: fmt.Sprintf("chain broken at line %d: %s", v.ErrorLine, v.Error),
			fix:    "askiguard audit verify",
		})
	}

	return checks
}

// checkStorage opens the backend and decodes the persisted rule database.
func checkStorage(cfg *config.Config) checkResult {
	backend, err := store.Open(cfg.Storage.Driver, cfg.StoragePath())
	if err != nil {
		return checkResult{label: "storage", ok: false, detail: err.Error()}
	}
	defer backend.Close()

	db := rules.New(backend, cfg.Rules)
	if err := db.Load(); err != nil {
		return checkResult{label: "storage", ok: false, detail: err.Error(), fix: "askiguard rules reset"}
	}
	st := db.Stats()
	return checkResult{
		label:  "storage",
		ok:     true,
		detail: fmt.Sprintf("%s at %s, %d checks recorded", cfg.Storage.Driver, cfg.StoragePath(), st.TotalChecked),
	}
}

func displayTimezone(tz string) string {
	if tz == "" {
		return "Local"
	}
	return tz
}

func printChecks(w io.Writer, checks []checkResult) error {
	hasFailures := false
	for _, c := range checks {
		mark := "\u2713" // ✓
		if !c.ok {
			mark = "\u2717" // ✗
			hasFailures = true
		}
		line := fmt.Sprintf("%s %-18s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Fprintln(w, line)
	}

	if hasFailures {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Some checks failed. Run the suggested commands to fix.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "All checks passed.")
	return nil
}
