package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bmh-lims/lims/internal/cli/output"
	"github.com/bmh-lims/lims/internal/web"
	"github.com/bmh-lims/lims/pkg/core"
	"github.com/spf13/cobra"
)

// SamplesOptions holds options for the samples command.
type SamplesOptions struct {
	Lab   string
	Limit int
}

// NewSamplesCommand creates the samples command.
func NewSamplesCommand() *cobra.Command {
	opts := &SamplesOptions{}

	cmd := &cobra.Command{
		Use:   "samples [sample-id]",
		Short: "List stored samples or show one sample",
		Long: `List stored samples, newest last, or show every field of one sample.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Samples of one lab
  lims samples --lab LabA

  # One sample as JSON
  lims samples LIMS-2024-000001 --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runShowSample(cmd, args[0])
			}
			return runListSamples(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Lab, "lab", "", "Only samples submitted by this lab")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "Maximum number of samples (0 for all)")

	return cmd
}

func runListSamples(cmd *cobra.Command, opts *SamplesOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	samples, err := cc.Store.ListSamples(cmd.Context(), core.SampleFilter{LabName: opts.Lab, Limit: opts.Limit})
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		out := make([]web.SampleJSON, 0, len(samples))
		for _, s := range samples {
			out = append(out, web.NewSampleJSON(s))
		}
		return r.JSON(out)
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatHeader(1, "Samples"))
		r.Println("")
	} else {
		r.Header(1, "Samples")
	}
	if len(samples) == 0 {
		r.Muted("No samples found")
		return nil
	}

	rows := make([][]string, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, []string{
			s.SampleID,
			s.SampleName,
			s.SubmittingLab,
			s.SampleType.Label(),
			deref(s.BMHProject),
			s.CreatedAt.Local().Format(time.DateTime),
		})
	}
	r.Table([]string{"Sample ID", "Name", "Lab", "Type", "Project", "Created"}, rows)
	r.Println("")
	r.Muted(fmt.Sprintf("%d samples", len(samples)))
	return nil
}

func runShowSample(cmd *cobra.Command, sampleID string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	s, err := cc.Store.GetSample(cmd.Context(), sampleID)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("sample %q not found", sampleID)
	}
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(web.NewSampleJSON(s))
	}

	fields := [][2]string{
		{"Name", s.SampleName},
		{"Lab", s.SubmittingLab},
		{"Type", s.SampleType.Label()},
		{"Tube/plate label", deref(s.TubePlateLabel)},
		{"Well", deref(s.Well)},
		{"Volume (µl)", derefFloat(s.SampleVolumeInUL)},
		{"Requested services", deref(s.RequestedServices)},
		{"BMH project", deref(s.BMHProject)},
		{"Submitter project", deref(s.SubmitterProject)},
		{"Genus", deref(s.Genus)},
		{"Species", deref(s.Species)},
		{"Strain", deref(s.Strain)},
		{"Isolate", deref(s.Isolate)},
		{"Culture date", derefDate(s.CultureDate)},
		{"DNA extraction date", derefDate(s.DNAExtractionDate)},
		{"Comments", deref(s.Comments)},
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatHeader(1, s.SampleID))
		r.Println("")
		for _, f := range fields {
			if f[1] != "" {
				r.Println(output.FormatKeyValue(f[0], f[1]))
			}
		}
		return nil
	}

	r.Header(1, s.SampleID)
	for _, f := range fields {
		if f[1] != "" {
			r.Printf("%s %s\n", r.Styles().Bold.Render(f[0]+":"), f[1])
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func derefDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
