package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/askiguard/internal/client"
	"github.com/ppiankov/askiguard/internal/model"
)

var (
	outputHistory []string
	outputFeed    []string
	outputInput   bool
	outputFormat  string
	outputServer  string
)

func init() {
	rootCmd.AddCommand(outputCmd)
	outputCmd.Flags().StringArrayVar(&outputHistory, "history", nil, "Recent conversation message (repeatable)")
	outputCmd.Flags().StringArrayVar(&outputFeed, "feed", nil, "Recently stored note or reminder text (repeatable)")
	outputCmd.Flags().BoolVar(&outputInput, "input", false, "Check as user input instead of assistant output")
	outputCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format (text|json)")
	outputCmd.Flags().StringVar(&outputServer, "server", "", "Validate remotely via gRPC server address")
}

var outputCmd = &cobra.Command{
	Use:   "output [text]",
	Short: "Validate an assistant response",
	Long: "Runs text through the output validator and prints the verdict and the text\n" +
		"that is safe to show. Reads stdin when no text argument is given.\n" +
		"Exit code 2 when the text is blocked.",
	RunE: runOutput,
}

func runOutput(cmd *cobra.Command, args []string) error {
	text, err := textArg(cmd, args)
	if err != nil {
		return err
	}

	vctx := model.Context{}
	for _, h := range outputHistory {
		vctx.History = append(vctx.History, model.Turn{Role: "user", Text: h})
	}
	for _, f := range outputFeed {
		vctx.Feed = append(vctx.Feed, model.FeedItem{Text: f})
	}

	var res model.ValidationResult
	if outputServer != "" {
		c, err := client.New(outputServer)
		if err != nil {
			return err
		}
		defer c.Close()
		if outputInput {
			res = c.ValidateInput(cmd.Context(), text)
		} else {
			res = c.ValidateOutput(cmd.Context(), text, vctx)
		}
	} else {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer closeService(svc)
		if outputInput {
			res = svc.ValidateInput(text)
		} else {
			res = svc.ValidateOutput(text, vctx)
		}
	}

	if err := printOutputResult(cmd.OutOrStdout(), res, outputFormat); err != nil {
		return err
	}
	if res.Blocked {
		return errBlocked
	}
	return nil
}

func printOutputResult(w io.Writer, res model.ValidationResult, format string) error {
	if format == "json" {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Fprintln(w, string(out))
		return nil
	}

	if res.Blocked {
		fmt.Fprintf(w, "BLOCKED  %s", res.Reason)
		if res.MatchedPattern != "" {
			fmt.Fprintf(w, " (matched %q)", res.MatchedPattern)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "PASS     confidence %.2f\n", res.Confidence)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, res.Sanitized)
	return nil
}

// textArg joins the positional arguments, or reads all of stdin when
// there are none.
func textArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
