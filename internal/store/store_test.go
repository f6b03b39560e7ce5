package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasr/batch-grades-processing/internal/grades"
	"github.com/haasr/batch-grades-processing/internal/resolve"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s := New(nil)
	require.NoError(t, s.Open(":memory:"))
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate())

	s.now = func() time.Time { return time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func labSection() *grades.LabSection {
	return &grades.LabSection{
		CourseName:  "CSCI-1150",
		SectionCode: "001",
		OU:          "9001",
		Rows: []grades.LabGrade{
			{
				Identity: resolve.Identity{
					OrgDefinedID: "E00123456",
					Username:     "doej",
					Email:        "doej@example.edu",
					LastName:     "Doe",
					FirstName:    "Jane",
				},
				LabNumerator:   45,
				LabDenominator: 50,
				LabAverage:     90,
				DCAScore:       90,
			},
		},
	}
}

func lectureSection() *grades.LectureSection {
	return &grades.LectureSection{
		CourseName:  "CSCI-1100",
		SectionCode: "201",
		OU:          "9002",
		Rows: []grades.LectureGrade{
			{
				Identity: resolve.Identity{
					OrgDefinedID: "E00123456",
					Username:     "doej",
					Email:        "doej@example.edu",
					LastName:     "Doe",
					FirstName:    "Jane",
				},
				QuizzesNumerator:       40,
				QuizzesDenominator:     50,
				QuizzesAverage:         80,
				ExitTicketsNumerator:   35,
				ExitTicketsDenominator: 50,
				ExitTicketsAverage:     70,
			},
		},
	}
}

func TestSaveLabSectionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLabSection(ctx, labSection(), "202580"))

	st, err := s.GetStudent(ctx, "E00123456")
	require.NoError(t, err)
	assert.Equal(t, "doej", st.Username)
	assert.Equal(t, "Doe", st.LastName)

	sec, err := s.GetSection(ctx, "9001")
	require.NoError(t, err)
	assert.Equal(t, SectionLab, sec.Type)
	assert.Equal(t, "CSCI-1150", sec.CourseName)
	assert.Equal(t, "001", sec.SectionCode)

	cg, err := s.GetCurrentGrade(ctx, "E00123456", "202580")
	require.NoError(t, err)
	require.NotNil(t, cg.LabAverage)
	assert.InDelta(t, 90, *cg.LabAverage, 1e-9)
	assert.InDelta(t, 45, *cg.LabNumerator, 1e-9)
	assert.InDelta(t, 50, *cg.LabDenominator, 1e-9)
	assert.InDelta(t, 90, cg.DCAScore, 1e-9)
	assert.Nil(t, cg.QuizzesAverage)
	assert.Nil(t, cg.LectureSectionOU)

	// Only the lab average is present, so the fixed /3 divisor gives 30.
	require.NotNil(t, cg.PreFinal)
	assert.InDelta(t, 30, *cg.PreFinal, 1e-9)
	require.NotNil(t, cg.PostFinal)
	assert.InDelta(t, 60, *cg.PostFinal, 1e-9)

	n, err := s.CountSnapshots(ctx, "E00123456", "9001")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveBothFlowsMergesIntoOneRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLabSection(ctx, labSection(), "202580"))
	require.NoError(t, s.SaveLectureSection(ctx, lectureSection(), "202580"))

	cg, err := s.GetCurrentGrade(ctx, "E00123456", "202580")
	require.NoError(t, err)

	// Lab-side fields survive the lecture write untouched.
	require.NotNil(t, cg.LabAverage)
	assert.InDelta(t, 90, *cg.LabAverage, 1e-9)
	assert.InDelta(t, 90, cg.DCAScore, 1e-9)
	require.NotNil(t, cg.LabSectionOU)
	assert.Equal(t, "9001", *cg.LabSectionOU)

	require.NotNil(t, cg.QuizzesAverage)
	assert.InDelta(t, 80, *cg.QuizzesAverage, 1e-9)
	require.NotNil(t, cg.ExitTicketsAverage)
	assert.InDelta(t, 70, *cg.ExitTicketsAverage, 1e-9)
	require.NotNil(t, cg.LectureSectionOU)
	assert.Equal(t, "9002", *cg.LectureSectionOU)

	// (90 + 80 + 70) / 3 = 80; (80 + 90) / 2 = 85.
	require.NotNil(t, cg.PreFinal)
	assert.InDelta(t, 80, *cg.PreFinal, 1e-9)
	require.NotNil(t, cg.PostFinal)
	assert.InDelta(t, 85, *cg.PostFinal, 1e-9)
}

func TestSaveLabSectionIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLabSection(ctx, labSection(), "202580"))
	first, err := s.GetCurrentGrade(ctx, "E00123456", "202580")
	require.NoError(t, err)

	require.NoError(t, s.SaveLabSection(ctx, labSection(), "202580"))
	second, err := s.GetCurrentGrade(ctx, "E00123456", "202580")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first, second)

	// Each re-ingestion appends one more snapshot per row.
	n, err := s.CountSnapshots(ctx, "E00123456", "9001")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSectionFirstWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLabSection(ctx, labSection(), "202580"))

	renamed := labSection()
	renamed.CourseName = "CSCI-9999"
	renamed.SectionCode = "777"
	require.NoError(t, s.SaveLabSection(ctx, renamed, "202580"))

	sec, err := s.GetSection(ctx, "9001")
	require.NoError(t, err)
	assert.Equal(t, "CSCI-1150", sec.CourseName)
	assert.Equal(t, "001", sec.SectionCode)
}

func TestStudentLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLabSection(ctx, labSection(), "202580"))

	updated := labSection()
	updated.Rows[0].Email = "jane.doe@example.edu"
	updated.Rows[0].FirstName = "Janet"
	require.NoError(t, s.SaveLabSection(ctx, updated, "202580"))

	st, err := s.GetStudent(ctx, "E00123456")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.edu", st.Email)
	assert.Equal(t, "Janet", st.FirstName)
}

func TestLookupsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetStudent(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetSection(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetCurrentGrade(ctx, "nope", "202580")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchStudentsByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sec := labSection()
	sec.Rows = append(sec.Rows, grades.LabGrade{
		Identity: resolve.Identity{
			OrgDefinedID: "E00999999",
			Username:     "smithb",
			Email:        "smithb@example.edu",
			LastName:     "Smith",
			FirstName:    "Bob",
		},
		LabDenominator: 50,
	})
	require.NoError(t, s.SaveLabSection(ctx, sec, "202580"))

	found, err := s.SearchStudentsByName(ctx, "doe", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "E00123456", found[0].OrgDefinedID)

	found, err = s.SearchStudentsByName(ctx, "B", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Smith", found[0].LastName)
}

func TestGradesByLectureSections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLectureSection(ctx, lectureSection(), "202580"))

	other := lectureSection()
	other.OU = "9003"
	other.SectionCode = "202"
	other.Rows[0].OrgDefinedID = "E00777777"
	other.Rows[0].Username = "reyesa"
	require.NoError(t, s.SaveLectureSection(ctx, other, "202580"))

	all, err := s.GradesByLectureSections(ctx, []string{"9002", "9003"}, "202580")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := s.GradesByLectureSection(ctx, "9003", "202580")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "E00777777", one[0].StudentID)

	none, err := s.GradesByLectureSections(ctx, nil, "202580")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindSectionAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLabSection(ctx, labSection(), "202580"))
	require.NoError(t, s.SaveLectureSection(ctx, lectureSection(), "202580"))

	sec, err := s.FindSection(ctx, "CSCI-1150", "001", "202580", SectionLab)
	require.NoError(t, err)
	assert.Equal(t, "9001", sec.OU)

	_, err = s.FindSection(ctx, "CSCI-1150", "001", "202580", SectionLecture)
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.ListSections(ctx, "202580", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	labs, err := s.ListSections(ctx, "202580", SectionLab)
	require.NoError(t, err)
	require.Len(t, labs, 1)
	assert.Equal(t, SectionLab, labs[0].Type)
}

func TestListSnapshotsOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	require.NoError(t, s.SaveLabSection(ctx, labSection(), "202580"))

	s.now = func() time.Time { return base.Add(time.Hour) }
	require.NoError(t, s.SaveLabSection(ctx, labSection(), "202580"))

	snaps, err := s.ListSnapshots(ctx, "E00123456", "9001")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].TakenAt.Before(snaps[1].TakenAt))
	require.NotNil(t, snaps[0].LabAverage)
	assert.InDelta(t, 90, *snaps[0].LabAverage, 1e-9)
	assert.Nil(t, snaps[0].QuizzesAverage)
}

func TestUnopenedStore(t *testing.T) {
	s := New(nil)
	assert.Error(t, s.SaveLabSection(context.Background(), labSection(), "202580"))
	_, err := s.GetStudent(context.Background(), "x")
	assert.Error(t, err)
}
