package commands

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/bmh-lims/lims/internal/cli/output"
	intconfig "github.com/bmh-lims/lims/internal/config"
	"github.com/bmh-lims/lims/internal/ingest"
	"github.com/bmh-lims/lims/internal/resolve"
	"github.com/bmh-lims/lims/internal/tabular"
	"github.com/spf13/cobra"
)

// UploadOptions holds options for the upload command.
type UploadOptions struct {
	Profile         string
	Sheet           string
	TypedCSV        bool
	Lab             string
	ExistingProject string
	NewProject      string
}

// NewUploadCommand creates the upload command.
func NewUploadCommand() *cobra.Command {
	opts := &UploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Validate and store the samples of a spreadsheet",
		Long: `Read a .xlsx or .csv file, validate every row and store the valid ones as samples.

Rows that fail validation are reported and skipped; the rest of the file is still
stored. Missing or unexpected columns refuse the whole file.

The bulk profile expects submitting_lab on every row. The form profile takes the
lab and project from --lab and --existing-project or --new-project instead.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Bulk upload
  lims upload samples.csv

  # Submission template for LabA, existing project
  lims upload submission.xlsx --profile form --lab LabA --existing-project ProjA

  # Machine-readable result
  lims upload samples.csv --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Profile, "profile", "p", intconfig.ProfileBulk, "Ingestion profile (bulk|form)")
	cmd.Flags().StringVar(&opts.Sheet, "sheet", "", "Worksheet to read from .xlsx files")
	cmd.Flags().BoolVar(&opts.TypedCSV, "typed-csv", false, "Infer CSV column types with DuckDB")
	cmd.Flags().StringVar(&opts.Lab, "lab", "", "Submitting lab (form profile)")
	cmd.Flags().StringVar(&opts.ExistingProject, "existing-project", "", "Existing BMH project (form profile)")
	cmd.Flags().StringVar(&opts.NewProject, "new-project", "", "New submitter project name (form profile)")

	_ = cmd.RegisterFlagCompletionFunc("profile", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{intconfig.ProfileBulk, intconfig.ProfileForm}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runUpload(cmd *cobra.Command, path string, opts *UploadOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	cfg := cc.Cfg

	readOpts := tabular.Options{Sheet: cfg.Ingest.Sheet}
	if cfg.Ingest.TypedCSV {
		duck, err := tabular.NewDuckDBReader(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = duck.Close() }()
		readOpts.DuckDB = duck
	}

	table, err := tabular.ReadFile(ctx, path, readOpts)
	if err != nil {
		return err
	}

	pipeline, err := newPipeline(cfg, cc.Store, opts.Profile, newWebhook(cfg, cc.Logger), nil, cc.Logger)
	if err != nil {
		return err
	}

	ctx = ingest.WithSource(ctx, filepath.Base(path))
	var res *ingest.Result
	if opts.Lab != "" || opts.ExistingProject != "" || opts.NewProject != "" {
		res, err = pipeline.IngestSubmission(ctx, resolve.Submission{
			Lab:             opts.Lab,
			ExistingProject: opts.ExistingProject,
			NewProject:      opts.NewProject,
		}, table)
	} else {
		res, err = pipeline.Ingest(ctx, table)
	}
	if err != nil {
		return err
	}

	return renderIngest(cc.Renderer, opts.Profile, res)
}

// newIngestOutput converts a Result to its JSON shape.
func newIngestOutput(profile string, res *ingest.Result) output.IngestOutput {
	out := output.IngestOutput{
		RunID:           res.RunID,
		Source:          res.Source,
		Profile:         profile,
		Summary:         res.Summary(),
		AcceptedCount:   res.AcceptedCount,
		RejectedCount:   res.RejectedCount,
		SkippedTestRows: res.SkippedTestRows,
		DroppedColumns:  append([]string{}, res.DroppedColumns...),
		SampleIDs:       make([]string, 0, len(res.AcceptedSamples)),
		Rejections:      make([]output.RejectionOutput, 0, len(res.Rejections)),
	}
	for _, s := range res.AcceptedSamples {
		out.SampleIDs = append(out.SampleIDs, s.SampleID)
	}
	for _, rej := range res.Rejections {
		out.Rejections = append(out.Rejections, output.RejectionOutput{
			Line:       rej.Line,
			SampleName: rej.SampleName,
			Reason:     rej.Reason,
		})
	}
	return out
}

func renderIngest(r *output.Renderer, profile string, res *ingest.Result) error {
	out := newIngestOutput(profile, res)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return ingestMarkdown(r, out)
	default:
		return ingestText(r, out)
	}
}

// ingestText outputs an ingestion result in styled text format.
func ingestText(r *output.Renderer, out output.IngestOutput) error {
	r.Header(1, "Upload "+out.Source)
	if out.RejectedCount == 0 {
		r.Success(out.Summary)
	} else {
		r.Warning(out.Summary)
	}
	if out.SkippedTestRows > 0 {
		r.Muted(fmt.Sprintf("%d template rows ignored", out.SkippedTestRows))
	}
	if len(out.DroppedColumns) > 0 {
		r.Muted(fmt.Sprintf("Ignored columns: %v", out.DroppedColumns))
	}

	if len(out.Rejections) > 0 {
		r.Println("")
		r.Header(2, "Rejected rows")
		rows := make([][]string, 0, len(out.Rejections))
		for _, rej := range out.Rejections {
			rows = append(rows, []string{strconv.Itoa(rej.Line), rej.SampleName, rej.Reason})
		}
		r.Table([]string{"Row", "Sample", "Reason"}, rows)
	}

	r.Println("")
	r.Muted("Run: " + out.RunID)
	return nil
}

// ingestMarkdown outputs an ingestion result in markdown format.
func ingestMarkdown(r *output.Renderer, out output.IngestOutput) error {
	r.Println(output.FormatHeader(1, "Upload"))
	r.Println("")
	r.Println(output.FormatKeyValue("Source", out.Source))
	r.Println(output.FormatKeyValue("Profile", out.Profile))
	r.Println(output.FormatKeyValue("Run", out.RunID))
	r.Println(output.FormatKeyValue("Summary", out.Summary))
	r.Printf("**Accepted:** %d\n", out.AcceptedCount)
	r.Printf("**Rejected:** %d\n", out.RejectedCount)
	if out.SkippedTestRows > 0 {
		r.Printf("**Template rows ignored:** %d\n", out.SkippedTestRows)
	}

	if len(out.SampleIDs) > 0 {
		r.Println("")
		r.Println(output.FormatHeader(2, "Stored samples"))
		r.Println("")
		r.Println(output.FormatList(out.SampleIDs))
	}

	if len(out.Rejections) > 0 {
		r.Println("")
		r.Println(output.FormatHeader(2, "Rejected rows"))
		r.Println("")
		rows := make([][]string, 0, len(out.Rejections))
		for _, rej := range out.Rejections {
			rows = append(rows, []string{strconv.Itoa(rej.Line), rej.SampleName, rej.Reason})
		}
		r.Table([]string{"Row", "Sample", "Reason"}, rows)
	}
	return nil
}
