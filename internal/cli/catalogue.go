package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCatalogueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "catalogue",
		Aliases: []string{"products"},
		Short:   "List the products of the catalogue",
		Example: `  copilot catalogue
  copilot catalogue --catalogue ./catalogue.yaml -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := a.jsonOutput()
			if err != nil {
				return err
			}
			cat, err := a.loadCatalogue()
			if err != nil {
				return err
			}
			items := cat.Summaries()
			if asJSON {
				return a.writeJSON(map[string]any{"count": len(items), "products": items})
			}
			fmt.Fprintf(a.stdout, "%-8s  %-36s  %s\n", "KEY", "NAME", "BASE")
			fmt.Fprintln(a.stdout, strings.Repeat("─", 52))
			for _, p := range items {
				fmt.Fprintf(a.stdout, "%-8s  %-36s  %4d\n", p.Key, truncate(p.Name, 36), p.Base)
			}
			return nil
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
