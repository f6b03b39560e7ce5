// Package pipeline orchestrates gradebook ingestion in two phases: a
// parallel read phase that fetches, resolves, and aggregates each section's
// export with no store access, then a serial write phase that persists the
// aggregated tables one at a time.
//
// SQLite tolerates one writer, so all store writes happen on the calling
// goroutine after every worker has returned. A section that fails in either
// phase is logged and skipped; it never blocks the other sections.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haasr/batch-grades-processing/internal/export"
	"github.com/haasr/batch-grades-processing/internal/grades"
	"github.com/haasr/batch-grades-processing/internal/resolve"
	"github.com/haasr/batch-grades-processing/internal/store"
	"github.com/haasr/batch-grades-processing/internal/workerpool"
)

const defaultWorkers = 3

// PersistError reports a failed store write for one section.
type PersistError struct {
	OU  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist section %s: %v", e.OU, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// SectionError records why one section was left out of the store.
type SectionError struct {
	OU  string
	Err error
}

// Result summarizes one ingestion run.
type Result struct {
	// Persisted lists the org units whose tables reached the store.
	Persisted []string
	// Failed lists the org units that were skipped and why.
	Failed []SectionError
}

// Config assembles a Pipeline's collaborators.
type Config struct {
	Exporter export.Exporter
	Store    *store.Store
	// Workers caps phase-one parallelism. Zero means 3.
	Workers int
	// Semester keys the CurrentGrade rows written by this run.
	Semester string
	// FinalProjectLabel is the column prefix identifying the final project
	// grade item in lab exports.
	FinalProjectLabel string
	Logger            *slog.Logger
}

// Pipeline ingests gradebook exports for a set of sections.
type Pipeline struct {
	exporter export.Exporter
	store    *store.Store
	workers  int
	semester string
	fpLabel  string
	logger   *slog.Logger
}

// New builds a Pipeline. A nil logger discards log output.
func New(cfg Config) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		exporter: cfg.Exporter,
		store:    cfg.Store,
		workers:  workers,
		semester: cfg.Semester,
		fpLabel:  cfg.FinalProjectLabel,
		logger:   logger,
	}
}

// IngestLabs runs the two-phase ingestion over the given lab section org
// units.
func (p *Pipeline) IngestLabs(ctx context.Context, ous []string) (*Result, error) {
	return ingest(ctx, p, ous,
		func(ctx context.Context, ou string) (*grades.LabSection, error) {
			raw, err := p.exporter.Fetch(ctx, ou)
			if err != nil {
				return nil, err
			}
			resolved, err := resolve.Lab(raw, p.fpLabel)
			if err != nil {
				return nil, err
			}
			return grades.AggregateLab(resolved), nil
		},
		func(ctx context.Context, sec *grades.LabSection) error {
			return p.store.SaveLabSection(ctx, sec, p.semester)
		},
		func(sec *grades.LabSection) string { return sec.OU },
	)
}

// IngestLectures runs the two-phase ingestion over the given lecture section
// org units.
func (p *Pipeline) IngestLectures(ctx context.Context, ous []string) (*Result, error) {
	return ingest(ctx, p, ous,
		func(ctx context.Context, ou string) (*grades.LectureSection, error) {
			raw, err := p.exporter.Fetch(ctx, ou)
			if err != nil {
				return nil, err
			}
			resolved, err := resolve.Lecture(raw)
			if err != nil {
				return nil, err
			}
			return grades.AggregateLecture(resolved), nil
		},
		func(ctx context.Context, sec *grades.LectureSection) error {
			return p.store.SaveLectureSection(ctx, sec, p.semester)
		},
		func(sec *grades.LectureSection) string { return sec.OU },
	)
}

// outcome carries one section through phase one; exactly one of table and
// err is set.
type outcome[T any] struct {
	ou    string
	table T
	err   error
}

// ingest is the shared two-phase skeleton. build runs inside the worker pool
// and never touches the store; save runs afterwards on this goroutine, one
// table at a time, in the order the workers produced them.
func ingest[T any](
	ctx context.Context,
	p *Pipeline,
	ous []string,
	build func(context.Context, string) (T, error),
	save func(context.Context, T) error,
	ouOf func(T) string,
) (*Result, error) {
	chunks, err := workerpool.Chunked(ous, p.workers,
		func(chunk []string) ([]outcome[T], error) {
			out := make([]outcome[T], 0, len(chunk))
			for _, ou := range chunk {
				table, err := build(ctx, ou)
				if err != nil {
					p.logger.Error("section ingestion failed", "ou", ou, "error", err)
					out = append(out, outcome[T]{ou: ou, err: err})
					continue
				}
				out = append(out, outcome[T]{ou: ou, table: table})
			}
			return out, nil
		})
	if err != nil {
		// The chunk workers capture per-section errors themselves, so a
		// distributor error means something unexpected went wrong.
		return nil, fmt.Errorf("distribute sections: %w", err)
	}

	result := &Result{}
	for _, chunk := range chunks {
		for _, oc := range chunk {
			if oc.err != nil {
				result.Failed = append(result.Failed, SectionError{OU: oc.ou, Err: oc.err})
				continue
			}
			if err := save(ctx, oc.table); err != nil {
				perr := &PersistError{OU: ouOf(oc.table), Err: err}
				p.logger.Error("section persistence failed", "ou", perr.OU, "error", err)
				result.Failed = append(result.Failed, SectionError{OU: perr.OU, Err: perr})
				continue
			}
			result.Persisted = append(result.Persisted, oc.ou)
		}
	}

	p.logger.Info("ingestion run finished",
		"persisted", len(result.Persisted), "failed", len(result.Failed))
	return result, nil
}
