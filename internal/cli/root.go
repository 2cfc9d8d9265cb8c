// Package cli is the operator command line for running the rule engine
// without the HTTP service.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"broker-copilot/internal/catalogue"
	"broker-copilot/internal/scoring"
)

type app struct {
	catalogueFile string
	high          int
	mid           int
	output        string
	stdin         io.Reader
	stdout        io.Writer
	stderr        io.Writer
}

// NewRootCommand builds the copilot command tree bound to the process streams.
func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdin, os.Stdout, os.Stderr)
}

// NewRootCommandWithIO builds the command tree with explicit streams.
func NewRootCommandWithIO(in io.Reader, out, errOut io.Writer) *cobra.Command {
	return newRootCommand(in, out, errOut)
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{
		stdin:  in,
		stdout: out,
		stderr: errOut,
	}

	cmd := &cobra.Command{
		Use:           "copilot",
		Short:         "Run the broker copilot rule engine offline",
		Long:          "copilot classifies business descriptions, scores the product catalogue and lists the concern vocabulary without starting the API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&a.catalogueFile, "catalogue", "", "YAML catalogue file (default: built-in catalogue)")
	cmd.PersistentFlags().IntVar(&a.high, "high", scoring.DefaultThresholds.High, "score at or above which a product is recommended")
	cmd.PersistentFlags().IntVar(&a.mid, "mid", scoring.DefaultThresholds.Mid, "score at or above which a product is often bought")
	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", "table", "output format: table|json")

	cmd.AddCommand(
		newConcernsCmd(a),
		newCatalogueCmd(a),
		newClassifyCmd(a),
		newScoreCmd(a),
	)
	return cmd
}

func (a *app) loadCatalogue() (*catalogue.Catalogue, error) {
	if a.catalogueFile == "" {
		return catalogue.Default(), nil
	}
	return catalogue.LoadFile(a.catalogueFile)
}

func (a *app) thresholds() (scoring.Thresholds, error) {
	t := scoring.Thresholds{High: a.high, Mid: a.mid}
	if t.High <= t.Mid {
		return t, fmt.Errorf("--high (%d) must be greater than --mid (%d)", t.High, t.Mid)
	}
	return t, nil
}

func (a *app) jsonOutput() (bool, error) {
	switch a.output {
	case "", "table":
		return false, nil
	case "json":
		return true, nil
	default:
		return false, fmt.Errorf("unsupported output format %q (use table or json)", a.output)
	}
}

func (a *app) writeJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, string(b))
	return nil
}
