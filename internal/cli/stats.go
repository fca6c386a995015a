package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ppiankov/askiguard/internal/client"
	"github.com/ppiankov/askiguard/internal/guard"
)

var (
	statsFormat string
	statsServer string
)

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVarP(&statsFormat, "format", "f", "text", "Output format (text|json)")
	statsCmd.Flags().StringVar(&statsServer, "server", "", "Read stats from gRPC server address")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show output validator counters and learned pattern counts",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	var s guard.Summary
	if statsServer != "" {
		c, err := client.New(statsServer)
		if err != nil {
			return err
		}
		defer c.Close()
		resp, err := c.Stats(cmd.Context())
		if err != nil {
			return err
		}
		s = guard.Summary(*resp)
	} else {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer closeService(svc)
		s = svc.Summary()
	}

	if statsFormat == "json" {
		out, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}
	printSummary(cmd.OutOrStdout(), s)
	return nil
}

func printSummary(w io.Writer, s guard.Summary) {
	fmt.Fprintf(w, "checked:        %d\n", s.TotalChecked)
	fmt.Fprintf(w, "passed:         %d\n", s.Passed)
	fmt.Fprintf(w, "blocked:        %d\n", s.Blocked)
	for _, reason := range slices.Sorted(maps.Keys(s.ByReason)) {
		fmt.Fprintf(w, "  %-22s %d\n", reason, s.ByReason[reason])
	}
	fmt.Fprintf(w, "learned bad:    %d\n", s.LearnedBad)
	fmt.Fprintf(w, "learned good:   %d\n", s.LearnedGood)
	fmt.Fprintf(w, "execution logs: %d\n", s.ExecutionLogs)
}
