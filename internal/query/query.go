// Package query answers read-only questions about stored grade data:
// student lookups, section rosters, cohort splits, and summary statistics.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasr/batch-grades-processing/internal/grades"
	"github.com/haasr/batch-grades-processing/internal/store"
)

// onlineSectionPrefix marks lecture section codes taught online. Section
// codes starting with '9' (901, 940, ...) are online offerings; everything
// else meets in person.
const onlineSectionPrefix = "9"

// Cohort selects a slice of a course's lecture sections.
type Cohort string

const (
	CohortAll      Cohort = "all"
	CohortInPerson Cohort = "in-person"
	CohortOnline   Cohort = "online"
)

// Profile is one student's current standing for a semester.
type Profile struct {
	Student store.Student
	Grade   store.CurrentGrade

	// CurrentGrade is the externally visible figure: post-final once a
	// final project is in, otherwise pre-final. Nil when nothing has been
	// observed yet.
	CurrentGrade    *float64
	HasFinalProject bool
}

// Stats summarizes a set of current grades.
type Stats struct {
	Students      int
	Graded        int
	Mean          float64
	Min           float64
	Max           float64
	FinalProjects int
}

// Service runs read queries against the grade store.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

// NewService builds a Service. A nil logger discards log output.
func NewService(s *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: s, logger: logger}
}

// StudentByOrgID returns the profile for a student looked up by
// institutional ID. A student with no grade record for the semester gets a
// profile with a zero Grade and nil CurrentGrade.
func (s *Service) StudentByOrgID(ctx context.Context, orgDefinedID, semester string) (*Profile, error) {
	st, err := s.store.GetStudent(ctx, orgDefinedID)
	if err != nil {
		return nil, fmt.Errorf("look up student %s: %w", orgDefinedID, err)
	}
	return s.profile(ctx, st, semester)
}

// StudentByUsername returns the profile for a student looked up by username.
func (s *Service) StudentByUsername(ctx context.Context, username, semester string) (*Profile, error) {
	st, err := s.store.GetStudentByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("look up student %s: %w", username, err)
	}
	return s.profile(ctx, st, semester)
}

// SearchByName returns profiles for students whose first or last name
// contains the query.
func (s *Service) SearchByName(ctx context.Context, query, semester string, limit int) ([]Profile, error) {
	students, err := s.store.SearchStudentsByName(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search students %q: %w", query, err)
	}

	out := make([]Profile, 0, len(students))
	for i := range students {
		p, err := s.profile(ctx, &students[i], semester)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *Service) profile(ctx context.Context, st *store.Student, semester string) (*Profile, error) {
	p := &Profile{Student: *st}

	cg, err := s.store.GetCurrentGrade(ctx, st.OrgDefinedID, semester)
	if errors.Is(err, store.ErrNotFound) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load grade record for %s: %w", st.OrgDefinedID, err)
	}

	p.Grade = *cg
	p.CurrentGrade = grades.CurrentGrade(cg.PreFinal, cg.PostFinal)
	p.HasFinalProject = grades.HasFinalProject(cg.DCAScore)
	return p, nil
}

// SectionRoster returns the profiles of every student whose current grade
// record points at the given section, regardless of section type.
func (s *Service) SectionRoster(ctx context.Context, ou, semester string) ([]Profile, error) {
	sec, err := s.store.GetSection(ctx, ou)
	if err != nil {
		return nil, fmt.Errorf("look up section %s: %w", ou, err)
	}

	var cgs []store.CurrentGrade
	switch sec.Type {
	case store.SectionLab:
		cgs, err = s.store.GradesByLabSection(ctx, ou, semester)
	case store.SectionLecture:
		cgs, err = s.store.GradesByLectureSection(ctx, ou, semester)
	default:
		return nil, fmt.Errorf("section %s has unknown type %q", ou, sec.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("roster for section %s: %w", ou, err)
	}
	return s.profiles(ctx, cgs)
}

// CohortGrades returns the current grades of a course's lecture students,
// filtered to the requested cohort.
func (s *Service) CohortGrades(ctx context.Context, courseName, semester string, cohort Cohort) ([]Profile, error) {
	sections, err := s.store.ListSections(ctx, semester, store.SectionLecture)
	if err != nil {
		return nil, fmt.Errorf("list lecture sections: %w", err)
	}

	var ous []string
	for _, sec := range sections {
		if sec.CourseName != courseName {
			continue
		}
		if !cohortIncludes(cohort, sec.SectionCode) {
			continue
		}
		ous = append(ous, sec.OU)
	}
	if len(ous) == 0 {
		return nil, nil
	}

	cgs, err := s.store.GradesByLectureSections(ctx, ous, semester)
	if err != nil {
		return nil, fmt.Errorf("cohort grades for %s: %w", courseName, err)
	}
	return s.profiles(ctx, cgs)
}

// CohortStats computes summary statistics over a cohort's current grades.
// Students with no derived grade yet count toward Students but not toward
// the mean/min/max.
func (s *Service) CohortStats(ctx context.Context, courseName, semester string, cohort Cohort) (*Stats, error) {
	profiles, err := s.CohortGrades(ctx, courseName, semester, cohort)
	if err != nil {
		return nil, err
	}
	return Summarize(profiles), nil
}

// Sections lists the stored sections for a semester, optionally filtered by
// type.
func (s *Service) Sections(ctx context.Context, semester string, typ store.SectionType) ([]store.Section, error) {
	return s.store.ListSections(ctx, semester, typ)
}

func (s *Service) profiles(ctx context.Context, cgs []store.CurrentGrade) ([]Profile, error) {
	out := make([]Profile, 0, len(cgs))
	for _, cg := range cgs {
		st, err := s.store.GetStudent(ctx, cg.StudentID)
		if err != nil {
			return nil, fmt.Errorf("load student %s: %w", cg.StudentID, err)
		}
		out = append(out, Profile{
			Student:         *st,
			Grade:           cg,
			CurrentGrade:    grades.CurrentGrade(cg.PreFinal, cg.PostFinal),
			HasFinalProject: grades.HasFinalProject(cg.DCAScore),
		})
	}
	return out, nil
}

// Summarize reduces a set of profiles to cohort statistics.
func Summarize(profiles []Profile) *Stats {
	stats := &Stats{Students: len(profiles)}

	sum := 0.0
	for _, p := range profiles {
		if p.HasFinalProject {
			stats.FinalProjects++
		}
		if p.CurrentGrade == nil {
			continue
		}
		g := *p.CurrentGrade
		if stats.Graded == 0 || g < stats.Min {
			stats.Min = g
		}
		if stats.Graded == 0 || g > stats.Max {
			stats.Max = g
		}
		sum += g
		stats.Graded++
	}
	if stats.Graded > 0 {
		stats.Mean = sum / float64(stats.Graded)
	}
	return stats
}

// ParseCohort validates a cohort name from user input.
func ParseCohort(s string) (Cohort, error) {
	switch Cohort(strings.ToLower(s)) {
	case CohortAll, "":
		return CohortAll, nil
	case CohortInPerson:
		return CohortInPerson, nil
	case CohortOnline:
		return CohortOnline, nil
	}
	return "", fmt.Errorf("unknown cohort %q (want all, in-person, or online)", s)
}

func cohortIncludes(cohort Cohort, sectionCode string) bool {
	switch cohort {
	case CohortOnline:
		return strings.HasPrefix(sectionCode, onlineSectionPrefix)
	case CohortInPerson:
		return !strings.HasPrefix(sectionCode, onlineSectionPrefix)
	default:
		return true
	}
}
