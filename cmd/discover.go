package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/business-discovery/internal/progress"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

func newDiscoverCmd() *cobra.Command {
	var (
		analyze bool
		output  string
	)
	cmd := &cobra.Command{
		Use:   "discover <maps-url>",
		Short: "Run the discovery pipeline once and print the result",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(*cobra.Command, []string) error {
			switch output {
			case outputJSON, outputYAML:
				return nil
			default:
				return fmt.Errorf("unsupported output %q (want json or yaml)", output)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report := a.Discover(cmd.Context(), args[0], analyze, progressPrinter(cmd.ErrOrStderr()))
			return writeReport(cmd.OutOrStdout(), output, report)
		},
	}
	cmd.Flags().BoolVar(&analyze, "analyze", false, "also generate the task profile")
	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "output format: json or yaml")
	return cmd
}

// progressPrinter writes step and session events as plain lines.
func progressPrinter(w io.Writer) progress.Emitter {
	return progress.EmitterFunc(func(evt progress.Event) {
		switch data := evt.Data.(type) {
		case progress.StepData:
			fmt.Fprintf(w, "[%s] %s\n", data.Step, data.Message)
		case progress.SessionData:
			fmt.Fprintf(w, "[session] %s %s\n", data.SessionID, data.SessionURL)
		}
	})
}

// writeReport renders v in the requested format. YAML goes through the JSON
// encoding so both outputs share field names.
func writeReport(w io.Writer, format string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if format == outputJSON {
		_, err = fmt.Fprintln(w, string(raw))
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		return nil
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush yaml: %w", err)
	}
	return nil
}
