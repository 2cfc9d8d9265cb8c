package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"broker-copilot/internal/agent"
	"broker-copilot/internal/classify"
	"broker-copilot/internal/intake"
	"broker-copilot/internal/scoring"
)

type scoredRow struct {
	Key     string       `json:"key"`
	Name    string       `json:"name"`
	Score   int          `json:"score"`
	Band    scoring.Band `json:"band"`
	Reasons []string     `json:"reasons,omitempty"`
	Faulted bool         `json:"faulted,omitempty"`
}

type scoreReport struct {
	Tags        []string    `json:"tags"`
	Concerns    []string    `json:"concerns"`
	Followups   []string    `json:"followups"`
	Recommended []scoredRow `json:"recommended"`
	Often       []scoredRow `json:"often"`
	Not         []scoredRow `json:"not"`
}

func newScoreCmd(a *app) *cobra.Command {
	var (
		inputPath   string
		in          intake.Input
		concernText string
	)
	cmd := &cobra.Command{
		Use:   "score [description]",
		Short: "Score the catalogue against a customer profile",
		Long: `Score every catalogue product for a customer profile and group them into
recommended, often bought and not usually needed.

The profile comes from flags, or from a JSON intake document with --input
(use "-" for stdin). Positional words are used as the business description.`,
		Example: `  copilot score --concern tools "Builder doing patios and fencing"
  copilot score --staff 1-5 --concern employees "Cafe with two part-time staff"
  cat intake.json | copilot score --input - -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := a.jsonOutput()
			if err != nil {
				return err
			}
			t, err := a.thresholds()
			if err != nil {
				return err
			}
			cat, err := a.loadCatalogue()
			if err != nil {
				return err
			}

			req := in
			if inputPath != "" {
				if req, err = a.readInput(inputPath); err != nil {
					return err
				}
			}
			if len(args) > 0 {
				req.BusinessDescription = strings.Join(args, " ")
			}
			if concernText != "" {
				req.Concerns.FreeText = concernText
			}

			local := &agent.Local{
				Catalogue:  cat,
				Classifier: classify.Default(),
				Engine:     scoring.NewEngine(t),
			}
			local.Engine.OnFault = func(f scoring.Fault) {
				fmt.Fprintf(a.stderr, "warning: %v\n", f)
			}
			analysis, err := local.Analyse(req)
			if err != nil {
				return err
			}
			ranked := local.Engine.Score(cat, analysis.Context, analysis.Tags)
			groups := local.Engine.Group(ranked)

			report := scoreReport{
				Tags:        analysis.Tags.Sorted(),
				Concerns:    analysis.Context.Concerns(),
				Followups:   analysis.Followups,
				Recommended: rows(groups.Recommended),
				Often:       rows(groups.Often),
				Not:         rows(groups.Not),
			}
			if asJSON {
				return a.writeJSON(report)
			}
			a.printReport(report)
			return nil
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", `JSON intake document ("-" for stdin)`)
	cmd.Flags().StringVar(&in.CustomerName, "customer", "", "customer name")
	cmd.Flags().StringVar(&in.BusinessType, "business-type", "", "business type fact")
	cmd.Flags().StringVar(&in.TurnoverBand, "turnover", "", "turnover band fact")
	cmd.Flags().StringVar(&in.StaffBand, "staff", "", "staff band fact (\"0\" means no staff)")
	cmd.Flags().StringVar(&in.Premises, "premises", "", "premises fact")
	cmd.Flags().StringVar(&in.Vehicles, "vehicles", "", "vehicles fact")
	cmd.Flags().StringSliceVar(&in.Concerns.Selected, "concern", nil, "selected concern id or label (repeatable)")
	cmd.Flags().StringVar(&concernText, "worries", "", "free-text concerns")
	cmd.Flags().StringSliceVar(&in.DismissedTags, "dismiss", nil, "activity tag to ignore (repeatable)")
	return cmd
}

func (a *app) readInput(path string) (intake.Input, error) {
	var r io.Reader
	if path == "-" {
		r = a.stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return intake.Input{}, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	var in intake.Input
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return intake.Input{}, fmt.Errorf("decode input: %w", err)
	}
	return in, nil
}

func rows(items []scoring.Scored) []scoredRow {
	out := make([]scoredRow, 0, len(items))
	for _, s := range items {
		out = append(out, scoredRow{
			Key:     s.Key,
			Name:    s.Name,
			Score:   s.Score,
			Band:    s.Band,
			Reasons: s.Reasons,
			Faulted: s.Faulted,
		})
	}
	return out
}

func (a *app) printReport(r scoreReport) {
	if len(r.Tags) > 0 {
		fmt.Fprintf(a.stdout, "Tags:     %s\n", strings.Join(r.Tags, ", "))
	}
	if len(r.Concerns) > 0 {
		fmt.Fprintf(a.stdout, "Concerns: %s\n", strings.Join(r.Concerns, ", "))
	}
	sections := []struct {
		title string
		rows  []scoredRow
	}{
		{"Recommended", r.Recommended},
		{"Often bought", r.Often},
		{"Not usually needed", r.Not},
	}
	for _, sec := range sections {
		fmt.Fprintf(a.stdout, "\n%s (%d)\n", sec.title, len(sec.rows))
		for _, row := range sec.rows {
			fmt.Fprintf(a.stdout, "  %-8s %-36s %4d\n", row.Key, truncate(row.Name, 36), row.Score)
			for _, reason := range row.Reasons {
				fmt.Fprintf(a.stdout, "           · %s\n", reason)
			}
		}
	}
	if len(r.Followups) > 0 {
		fmt.Fprintln(a.stdout, "\nFollow-ups:")
		for _, q := range r.Followups {
			fmt.Fprintf(a.stdout, "  - %s\n", q)
		}
	}
}
