package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasr/batch-grades-processing/internal/query"
	"github.com/haasr/batch-grades-processing/internal/report"
	"github.com/haasr/batch-grades-processing/internal/store"
)

// NewSectionsCommand creates the sections command.
func NewSectionsCommand() *cobra.Command {
	var typeFlag string
	var roster string

	cmd := &cobra.Command{
		Use:   "sections",
		Short: "List stored sections or print a section roster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, cfg, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			svc := query.NewService(s, LoggerFrom(cmd.Context()))
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if roster != "" {
				profiles, err := svc.SectionRoster(ctx, roster, cfg.Semester)
				if err != nil {
					return err
				}
				report.Profiles(out, profiles)
				return nil
			}

			typ, err := parseSectionType(typeFlag)
			if err != nil {
				return err
			}
			sections, err := svc.Sections(ctx, cfg.Semester, typ)
			if err != nil {
				return err
			}
			report.Sections(out, sections)
			return nil
		},
	}

	cmd.Flags().StringVar(&typeFlag, "type", "", "filter by section type (lab|lecture)")
	cmd.Flags().StringVar(&roster, "roster", "", "print the roster for the given section org unit")
	return cmd
}

func parseSectionType(s string) (store.SectionType, error) {
	switch s {
	case "":
		return "", nil
	case "lab", "LAB":
		return store.SectionLab, nil
	case "lecture", "LECTURE":
		return store.SectionLecture, nil
	}
	return "", fmt.Errorf("unknown section type %q (want lab or lecture)", s)
}
