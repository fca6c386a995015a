package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/askiguard/internal/client"
	"github.com/ppiankov/askiguard/internal/command"
	"github.com/ppiankov/askiguard/internal/model"
)

var (
	commandFile    string
	commandRequest string
	commandNow     string
	commandDryRun  bool
	commandQuick   bool
	commandFormat  string
	commandServer  string
)

func init() {
	rootCmd.AddCommand(commandCmd)
	commandCmd.Flags().StringVar(&commandFile, "file", "-", "Command JSON file (- for stdin)")
	commandCmd.Flags().StringVarP(&commandRequest, "request", "r", "", "Original user request the command was built from")
	commandCmd.Flags().StringVar(&commandNow, "now", "", "Validate as of this time (RFC3339)")
	commandCmd.Flags().BoolVar(&commandDryRun, "dry-run", false, "Skip the execution log and approval filing")
	commandCmd.Flags().BoolVar(&commandQuick, "quick", false, "Run only the syntax and logic levels")
	commandCmd.Flags().StringVarP(&commandFormat, "format", "f", "operator", "Output format (user|operator|json)")
	commandCmd.Flags().StringVar(&commandServer, "server", "", "Validate remotely via gRPC server address")
}

var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "Validate a scheduled command",
	Long: "Reads a command as JSON and runs it through the validation levels.\n" +
		"Exit code 2 when the command is blocked.",
	Example: `  echo '{"title":"Купить молоко","scheduled_at":"2026-03-10T18:00:00Z",
         "action_type":"push","sense_type":"reminder"}' | askiguard command -r "напомни купить молоко в 18:00"`,
	RunE: runCommand,
}

func runCommand(cmd *cobra.Command, args []string) error {
	c, err := readCommand(cmd, commandFile)
	if err != nil {
		return err
	}

	opts := command.Options{DryRun: commandDryRun}
	if commandNow != "" {
		now, err := time.Parse(time.RFC3339, commandNow)
		if err != nil {
			return fmt.Errorf("invalid --now %q: %w", commandNow, err)
		}
		opts.Now = now
	}

	var res *model.CommandValidationResult
	if commandServer != "" {
		cl, err := client.New(commandServer)
		if err != nil {
			return err
		}
		defer cl.Close()
		if commandQuick {
			res = cl.QuickValidate(cmd.Context(), c)
		} else {
			res = cl.ValidateCommand(cmd.Context(), c, commandRequest, opts)
		}
	} else {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer closeService(svc)
		if commandQuick {
			res = svc.QuickValidate(c)
		} else {
			res = svc.ValidateCommand(c, commandRequest, opts)
		}
	}

	if err := printCommandResult(cmd.OutOrStdout(), res, commandFormat); err != nil {
		return err
	}
	if res.Blocked {
		return errBlocked
	}
	return nil
}

func readCommand(cmd *cobra.Command, path string) (model.Command, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return model.Command{}, fmt.Errorf("open command: %w", err)
		}
		defer f.Close()
		r = f
	}

	var c model.Command
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return model.Command{}, fmt.Errorf("parse command: %w", err)
	}
	return c, nil
}

func printCommandResult(w io.Writer, res *model.CommandValidationResult, format string) error {
	switch format {
	case "json":
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Fprintln(w, string(out))
	case "user":
		fmt.Fprintln(w, command.FormatUser(res))
	case "operator", "":
		fmt.Fprint(w, command.FormatOperator(res))
	default:
		return fmt.Errorf("unknown format %q: use user, operator or json", format)
	}
	return nil
}
