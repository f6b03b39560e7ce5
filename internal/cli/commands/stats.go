package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasr/batch-grades-processing/internal/query"
	"github.com/haasr/batch-grades-processing/internal/report"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand() *cobra.Command {
	var cohortFlag string
	var list bool

	cmd := &cobra.Command{
		Use:   "stats <course>",
		Short: "Summarize a course's current lecture grades",
		Long: `Summarize the current grades of a course's lecture students for the
configured semester. The cohort flag narrows the sections considered:
in-person sections are those whose code does not start with '9', online
sections are those whose code does.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cohort, err := query.ParseCohort(cohortFlag)
			if err != nil {
				return err
			}

			s, cfg, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			svc := query.NewService(s, LoggerFrom(cmd.Context()))
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			course := args[0]

			if list {
				profiles, err := svc.CohortGrades(ctx, course, cfg.Semester, cohort)
				if err != nil {
					return err
				}
				report.Profiles(out, profiles)
				return nil
			}

			stats, err := svc.CohortStats(ctx, course, cfg.Semester, cohort)
			if err != nil {
				return err
			}
			title := fmt.Sprintf("%s %s (%s)", course, cfg.Semester, cohort)
			report.Stats(out, title, stats)
			return nil
		},
	}

	cmd.Flags().StringVar(&cohortFlag, "cohort", "all", "cohort to include (all|in-person|online)")
	cmd.Flags().BoolVar(&list, "list", false, "list individual students instead of summary statistics")
	return cmd
}
