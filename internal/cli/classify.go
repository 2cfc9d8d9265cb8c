package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"broker-copilot/internal/classify"
)

func newClassifyCmd(a *app) *cobra.Command {
	var dedupe bool
	cmd := &cobra.Command{
		Use:   "classify <description>",
		Short: "Derive activity tags and follow-up questions from a description",
		Example: `  copilot classify "Builder doing patios and fencing"
  copilot classify --dedupe -o json "garden design consultancy"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := a.jsonOutput()
			if err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("a business description is required")
			}
			var opts []classify.Option
			if dedupe {
				opts = append(opts, classify.WithDedupe())
			}
			res := classify.Default(opts...).Classify(text)
			tags := res.Tags.Sorted()
			if asJSON {
				return a.writeJSON(map[string]any{"tags": tags, "followups": res.Followups})
			}
			if len(tags) == 0 {
				fmt.Fprintln(a.stdout, "No activity tags matched.")
				return nil
			}
			fmt.Fprintf(a.stdout, "Tags: %s\n", strings.Join(tags, ", "))
			if len(res.Followups) > 0 {
				fmt.Fprintln(a.stdout, "Follow-ups:")
				for _, q := range res.Followups {
					fmt.Fprintf(a.stdout, "  - %s\n", q)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dedupe, "dedupe", false, "drop repeated follow-up questions")
	return cmd
}
