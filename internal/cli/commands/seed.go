package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/bmh-lims/lims/internal/cli/output"
	"github.com/bmh-lims/lims/internal/refdata"
	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed [file]",
		Short: "Load labs and projects from a reference data file",
		Long: `Create the labs and projects listed in a YAML reference data file.

Entries that already exist are left untouched, so seeding is safe to repeat.
Without an argument the file named by refdata in lims.yaml is used.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Seed from the configured file
  lims seed

  # Seed from a specific file as JSON
  lims seed labs.yaml --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runSeed(cmd, path)
		},
	}

	return cmd
}

func runSeed(cmd *cobra.Command, path string) error {
	cfg := getConfig()
	if path == "" {
		path = cfg.RefData
	}
	if path == "" {
		return errors.New("no reference data file given\nHint: pass a file or set refdata in lims.yaml")
	}

	doc, err := refdata.LoadFile(path)
	if err != nil {
		return err
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rep, err := refdata.Apply(cmd.Context(), cc.Store, doc, cc.Logger)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	out := output.SeedOutput{
		Source:           path,
		LabsCreated:      rep.LabsCreated,
		LabsExisting:     rep.LabsExisting,
		ProjectsCreated:  rep.ProjectsCreated,
		ProjectsExisting: rep.ProjectsExisting,
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return seedMarkdown(r, out)
	default:
		return seedText(r, out)
	}
}

// seedText outputs seed results in styled text format.
func seedText(r *output.Renderer, out output.SeedOutput) error {
	r.Header(2, "Reference Data")
	r.StatusLine("labs", "success", fmt.Sprintf("%d created, %d existing", out.LabsCreated, out.LabsExisting))
	r.StatusLine("projects", "success", fmt.Sprintf("%d created, %d existing", out.ProjectsCreated, out.ProjectsExisting))
	r.Println("")
	r.Muted("Source: " + out.Source)
	return nil
}

// seedMarkdown outputs seed results in markdown format.
func seedMarkdown(r *output.Renderer, out output.SeedOutput) error {
	r.Println(output.FormatHeader(1, "Reference Data Loaded"))
	r.Println("")
	r.Table([]string{"Kind", "Created", "Existing"}, [][]string{
		{"labs", strconv.Itoa(out.LabsCreated), strconv.Itoa(out.LabsExisting)},
		{"projects", strconv.Itoa(out.ProjectsCreated), strconv.Itoa(out.ProjectsExisting)},
	})
	r.Println("")
	r.Println(output.FormatKeyValue("Source", out.Source))
	return nil
}
