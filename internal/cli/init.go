package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/askiguard/internal/config"
	"github.com/ppiankov/askiguard/internal/patterns"
)

var (
	initMode  string
	initForce bool
)

func init() {
	initCmd.Flags().StringVar(&initMode, "mode", "user", "Config location: user (~/.askiguard) or system (/etc/askiguard)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap askiguard configuration",
	Long: `Creates the config directory, a default config.yaml and an editable
patterns.yaml holding the shipped pattern tables.

User mode (default):  writes to ~/.askiguard/
System mode:          writes to /etc/askiguard/ (requires root)`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := initConfigDir()
	if err != nil {
		return err
	}

	var created []string

	if err := os.MkdirAll(filepath.Join(configDir, "pending"), 0o755); err != nil {
		return fmt.Errorf("create approvals directory: %w", err)
	}

	patternsPath := filepath.Join(configDir, "patterns.yaml")
	patternsContent, err := defaultPatternsYAML()
	if err != nil {
		return fmt.Errorf("generate default patterns: %w", err)
	}
	if wrote, err := writeIfMissing(patternsPath, patternsContent); err != nil {
		return err
	} else if wrote {
		created = append(created, patternsPath)
	}

	configFile := filepath.Join(configDir, "config.yaml")
	configContent, err := defaultConfigYAML(configDir, patternsPath)
	if err != nil {
		return fmt.Errorf("generate default config: %w", err)
	}
	if wrote, err := writeIfMissing(configFile, configContent); err != nil {
		return err
	} else if wrote {
		created = append(created, configFile)
	}

	// Print summary.
	fmt.Println("askiguard init complete.")
	fmt.Println()
	if len(created) > 0 {
		fmt.Println("Created:")
		for _, path := range created {
			fmt.Printf("  %s\n", path)
		}
		fmt.Println()
	} else {
		fmt.Println("All files already exist (use --force to overwrite).")
		fmt.Println()
	}

	fmt.Println("Verify:")
	fmt.Println("  askiguard doctor")
	fmt.Println()
	fmt.Println("Check a response:")
	fmt.Println("  askiguard output \"Я позвоню ему за тебя\"")
	return nil
}

// initConfigDir returns the configuration directory based on mode.
func initConfigDir() (string, error) {
	switch initMode {
	case "system":
		return "/etc/askiguard", nil
	case "user", "":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(home, ".askiguard"), nil
	default:
		return "", fmt.Errorf("unknown mode %q: use 'user' or 'system'", initMode)
	}
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// defaultConfigYAML renders the built-in config with paths rooted in dir.
func defaultConfigYAML(dir, patternsPath string) (string, error) {
	cfg := config.DefaultConfig()
	cfg.Output.PatternsPath = patternsPath
	cfg.Storage.Path = filepath.Join(dir, "state")
	cfg.ApprovalsDir = filepath.Join(dir, "pending")
	cfg.AuditLog = filepath.Join(dir, "audit.jsonl")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	header := "# askiguard configuration.\n" +
		"# Changes are picked up by a running `askiguard serve` without restart.\n" +
		"# Durations use Go syntax: 30s, 5m, 720h.\n\n"
	return header + string(data), nil
}

// defaultPatternsYAML generates a commented patterns.yaml with the shipped tables.
func defaultPatternsYAML() (string, error) {
	data, err := yaml.Marshal(patterns.DefaultTables)
	if err != nil {
		return "", err
	}
	header := "# askiguard pattern tables.\n" +
		"# Matching is case-insensitive substring containment on the whole response.\n" +
		"# safe patterns win over every blocking category.\n" +
		"#\n" +
		"# Edit this file to customize what askiguard blocks.\n\n"
	return header + string(data), nil
}
