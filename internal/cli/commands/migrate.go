package commands

import (
	"strconv"

	"github.com/bmh-lims/lims/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Create or upgrade the sample database schema.

Every command that opens the store migrates it first; migrate is useful to
prepare a PostgreSQL database ahead of the first upload.`,
		Example: `  # Migrate the production store
  lims migrate --env prod`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd)
		},
	}
}

func runMigrate(cmd *cobra.Command) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	version, err := cc.Store.GetMigrationVersion()
	if err != nil {
		return err
	}
	out := output.MigrateOutput{Store: cc.Cfg.Store.Type, Version: version}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Migrations"))
		r.Println("")
		r.Println(output.FormatKeyValue("Store", out.Store))
		r.Println(output.FormatKeyValue("Version", strconv.FormatInt(out.Version, 10)))
	default:
		r.Success("Database schema up to date")
		r.StatusLine(out.Store, "success", "version "+strconv.FormatInt(out.Version, 10))
	}
	return nil
}
