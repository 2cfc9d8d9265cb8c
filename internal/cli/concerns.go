package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"broker-copilot/internal/intake"
)

func newConcernsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "concerns",
		Short: "List the concern vocabulary",
		Example: `  copilot concerns
  copilot concerns -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := a.jsonOutput()
			if err != nil {
				return err
			}
			concerns := intake.Concerns()
			if asJSON {
				return a.writeJSON(map[string]any{"concerns": concerns})
			}
			fmt.Fprintf(a.stdout, "%-10s  %s\n", "ID", "LABEL")
			fmt.Fprintln(a.stdout, strings.Repeat("─", 50))
			for _, c := range concerns {
				fmt.Fprintf(a.stdout, "%-10s  %s\n", c.ID, c.Label)
			}
			return nil
		},
	}
}
