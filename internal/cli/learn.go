package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/askiguard/internal/client"
)

var (
	learnRemove bool
	learnServer string
)

func init() {
	rootCmd.AddCommand(learnCmd)
	learnCmd.Flags().BoolVar(&learnRemove, "remove", false, "Remove the pattern instead of adding it")
	learnCmd.Flags().StringVar(&learnServer, "server", "", "Apply via gRPC server address")
}

var learnCmd = &cobra.Command{
	Use:   "learn <bad|good> <pattern>",
	Short: "Teach the output validator a pattern",
	Long: "Adds a learned pattern to the rule database. Bad patterns block matching\n" +
		"output; good patterns let matching output pass without further checks.",
	Args: cobra.ExactArgs(2),
	RunE: runLearn,
}

func runLearn(cmd *cobra.Command, args []string) error {
	kind, pattern := args[0], args[1]

	var changed bool
	if learnServer != "" {
		c, err := client.New(learnServer)
		if err != nil {
			return err
		}
		defer c.Close()
		if changed, err = c.Learn(cmd.Context(), kind, pattern, learnRemove); err != nil {
			return err
		}
	} else {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer closeService(svc)
		if changed, err = svc.Learn(kind, pattern, "cli", learnRemove); err != nil {
			return err
		}
	}

	verb := "Learned"
	if learnRemove {
		verb = "Removed"
	}
	if !changed {
		fmt.Fprintf(cmd.OutOrStdout(), "No change for %s pattern %q\n", kind, pattern)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s pattern %q\n", verb, kind, pattern)
	return nil
}
