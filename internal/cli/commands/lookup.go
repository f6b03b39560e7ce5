package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasr/batch-grades-processing/internal/query"
	"github.com/haasr/batch-grades-processing/internal/report"
)

// NewLookupCommand creates the lookup command.
func NewLookupCommand() *cobra.Command {
	var orgID, username, name string
	var limit int

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Look up a student's current grades",
		Long: `Look up students by institutional ID, username, or a name fragment
and print their grade breakdown for the configured semester.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set := 0
			for _, v := range []string{orgID, username, name} {
				if v != "" {
					set++
				}
			}
			if set != 1 {
				return fmt.Errorf("give exactly one of --id, --username, or --name")
			}

			s, cfg, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			svc := query.NewService(s, LoggerFrom(cmd.Context()))
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case orgID != "":
				p, err := svc.StudentByOrgID(ctx, orgID, cfg.Semester)
				if err != nil {
					return err
				}
				report.Profile(out, p)
			case username != "":
				p, err := svc.StudentByUsername(ctx, username, cfg.Semester)
				if err != nil {
					return err
				}
				report.Profile(out, p)
			default:
				profiles, err := svc.SearchByName(ctx, name, cfg.Semester, limit)
				if err != nil {
					return err
				}
				report.Profiles(out, profiles)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "id", "", "institutional student identifier")
	cmd.Flags().StringVar(&username, "username", "", "student username")
	cmd.Flags().StringVar(&name, "name", "", "first or last name fragment")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum name-search results")
	return cmd
}
