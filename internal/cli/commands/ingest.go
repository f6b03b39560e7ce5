package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haasr/batch-grades-processing/internal/export"
	"github.com/haasr/batch-grades-processing/internal/pipeline"
	"github.com/haasr/batch-grades-processing/internal/store"
)

// NewIngestCommand creates the ingest command group.
func NewIngestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest gradebook exports into the grade database",
		Long: `Ingest per-section gradebook exports: fetch and aggregate each
section's export in parallel, then persist the results one section at a
time. Sections that fail to fetch or resolve are skipped and reported;
they never block the others.`,
	}

	cmd.AddCommand(newIngestFlowCommand("labs", store.SectionLab))
	cmd.AddCommand(newIngestFlowCommand("lectures", store.SectionLecture))
	return cmd
}

func newIngestFlowCommand(use string, typ store.SectionType) *cobra.Command {
	var ous []string
	var ousFile string

	cmd := &cobra.Command{
		Use:   use + " [flags]",
		Short: fmt.Sprintf("Ingest %s section exports", strings.ToLower(string(typ))),
		RunE: func(cmd *cobra.Command, _ []string) error {
			targets, err := collectOUs(ous, ousFile)
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				return fmt.Errorf("no org units given: use --ous or --ous-file")
			}
			return runIngest(cmd, typ, targets)
		},
	}

	cmd.Flags().StringSliceVar(&ous, "ous", nil, "org unit identifiers to ingest")
	cmd.Flags().StringVar(&ousFile, "ous-file", "", "file listing org units, one per line")
	return cmd
}

func runIngest(cmd *cobra.Command, typ store.SectionType, ous []string) error {
	ctx := cmd.Context()

	s, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	p := pipeline.New(pipeline.Config{
		Exporter:          export.NewCSVExporter(cfg.ExportsDir),
		Store:             s,
		Workers:           cfg.Workers,
		Semester:          cfg.Semester,
		FinalProjectLabel: cfg.Labels.FinalProject,
		Logger:            LoggerFrom(ctx),
	})

	var res *pipeline.Result
	switch typ {
	case store.SectionLab:
		res, err = p.IngestLabs(ctx, ous)
	default:
		res, err = p.IngestLectures(ctx, ous)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Persisted %d of %d sections (semester %s)\n",
		len(res.Persisted), len(ous), cfg.Semester)
	for _, f := range res.Failed {
		_, _ = fmt.Fprintf(out, "  skipped %s: %v\n", f.OU, f.Err)
	}

	if len(res.Failed) > 0 {
		return fmt.Errorf("%d section(s) failed", len(res.Failed))
	}
	return nil
}

// collectOUs merges the --ous flag with the contents of --ous-file. File
// lines may be bare org units or "name,ou" pairs; blank lines and '#'
// comments are skipped.
func collectOUs(flagOUs []string, file string) ([]string, error) {
	out := make([]string, 0, len(flagOUs))
	seen := make(map[string]bool)

	add := func(ou string) {
		ou = strings.TrimSpace(ou)
		if ou == "" || seen[ou] {
			return
		}
		seen[ou] = true
		out = append(out, ou)
	}

	for _, ou := range flagOUs {
		add(ou)
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read org unit list: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			fields := strings.Split(line, ",")
			add(fields[len(fields)-1])
		}
	}
	return out, nil
}
