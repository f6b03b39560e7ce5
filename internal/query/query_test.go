package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasr/batch-grades-processing/internal/grades"
	"github.com/haasr/batch-grades-processing/internal/resolve"
	"github.com/haasr/batch-grades-processing/internal/store"
)

const semester = "202580"

func identity(orgID, username, last, first string) resolve.Identity {
	return resolve.Identity{
		OrgDefinedID: orgID,
		Username:     username,
		Email:        username + "@example.edu",
		LastName:     last,
		FirstName:    first,
	}
}

// seededService loads two lecture sections (201 in person, 901 online) and
// one lab section sharing a student with section 201.
func seededService(t *testing.T) *Service {
	t.Helper()

	s := store.New(nil)
	require.NoError(t, s.Open(":memory:"))
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate())

	ctx := context.Background()

	require.NoError(t, s.SaveLectureSection(ctx, &grades.LectureSection{
		CourseName:  "CSCI-1100",
		SectionCode: "201",
		OU:          "9102",
		Rows: []grades.LectureGrade{
			{
				Identity:       identity("E00000001", "doej", "Doe", "Jane"),
				QuizzesAverage: 80, ExitTicketsAverage: 70,
				QuizzesNumerator: 40, QuizzesDenominator: 50,
				ExitTicketsNumerator: 35, ExitTicketsDenominator: 50,
			},
			{
				Identity:       identity("E00000002", "smithb", "Smith", "Bob"),
				QuizzesAverage: 60, ExitTicketsAverage: 90,
				QuizzesNumerator: 30, QuizzesDenominator: 50,
				ExitTicketsNumerator: 45, ExitTicketsDenominator: 50,
			},
		},
	}, semester))

	require.NoError(t, s.SaveLectureSection(ctx, &grades.LectureSection{
		CourseName:  "CSCI-1100",
		SectionCode: "901",
		OU:          "9103",
		Rows: []grades.LectureGrade{
			{
				Identity:       identity("E00000003", "reyesa", "Reyes", "Ana"),
				QuizzesAverage: 100, ExitTicketsAverage: 100,
				QuizzesNumerator: 50, QuizzesDenominator: 50,
				ExitTicketsNumerator: 50, ExitTicketsDenominator: 50,
			},
		},
	}, semester))

	require.NoError(t, s.SaveLabSection(ctx, &grades.LabSection{
		CourseName:  "CSCI-1150",
		SectionCode: "001",
		OU:          "9001",
		Rows: []grades.LabGrade{
			{
				Identity:     identity("E00000001", "doej", "Doe", "Jane"),
				LabNumerator: 45, LabDenominator: 50, LabAverage: 90,
				DCAScore: 90,
			},
		},
	}, semester))

	return NewService(s, nil)
}

func TestStudentByOrgID(t *testing.T) {
	svc := seededService(t)

	p, err := svc.StudentByOrgID(context.Background(), "E00000001", semester)
	require.NoError(t, err)
	assert.Equal(t, "doej", p.Student.Username)
	assert.True(t, p.HasFinalProject)

	// (90 + 80 + 70) / 3 = 80, then (80 + 90) / 2 = 85.
	require.NotNil(t, p.CurrentGrade)
	assert.InDelta(t, 85, *p.CurrentGrade, 1e-9)
}

func TestStudentByUsername(t *testing.T) {
	svc := seededService(t)

	p, err := svc.StudentByUsername(context.Background(), "SMITHB", semester)
	require.NoError(t, err)
	assert.Equal(t, "E00000002", p.Student.OrgDefinedID)
	assert.False(t, p.HasFinalProject)

	// Lecture only: (60 + 90) / 3 = 50, no final project so no post-final.
	require.NotNil(t, p.CurrentGrade)
	assert.InDelta(t, 50, *p.CurrentGrade, 1e-9)

	_, err = svc.StudentByUsername(context.Background(), "nobody", semester)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStudentWithoutGradeRecord(t *testing.T) {
	svc := seededService(t)

	p, err := svc.StudentByOrgID(context.Background(), "E00000001", "202610")
	require.NoError(t, err)
	assert.Nil(t, p.CurrentGrade)
	assert.False(t, p.HasFinalProject)
}

func TestSearchByName(t *testing.T) {
	svc := seededService(t)

	found, err := svc.SearchByName(context.Background(), "doe", semester, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "E00000001", found[0].Student.OrgDefinedID)
}

func TestSectionRoster(t *testing.T) {
	svc := seededService(t)
	ctx := context.Background()

	lecture, err := svc.SectionRoster(ctx, "9102", semester)
	require.NoError(t, err)
	assert.Len(t, lecture, 2)

	lab, err := svc.SectionRoster(ctx, "9001", semester)
	require.NoError(t, err)
	require.Len(t, lab, 1)
	assert.Equal(t, "E00000001", lab[0].Student.OrgDefinedID)

	_, err = svc.SectionRoster(ctx, "nope", semester)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCohortGrades(t *testing.T) {
	svc := seededService(t)
	ctx := context.Background()

	all, err := svc.CohortGrades(ctx, "CSCI-1100", semester, CohortAll)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	inPerson, err := svc.CohortGrades(ctx, "CSCI-1100", semester, CohortInPerson)
	require.NoError(t, err)
	assert.Len(t, inPerson, 2)

	online, err := svc.CohortGrades(ctx, "CSCI-1100", semester, CohortOnline)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "E00000003", online[0].Student.OrgDefinedID)

	none, err := svc.CohortGrades(ctx, "MATH-1910", semester, CohortAll)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCohortStats(t *testing.T) {
	svc := seededService(t)

	stats, err := svc.CohortStats(context.Background(), "CSCI-1100", semester, CohortAll)
	require.NoError(t, err)

	// Current grades: Doe 85 (post-final), Smith 50, Reyes 66.666...
	assert.Equal(t, 3, stats.Students)
	assert.Equal(t, 3, stats.Graded)
	assert.Equal(t, 1, stats.FinalProjects)
	assert.InDelta(t, 50, stats.Min, 1e-9)
	assert.InDelta(t, 85, stats.Max, 1e-9)
	assert.InDelta(t, (85+50+200.0/3)/3, stats.Mean, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	stats := Summarize(nil)
	assert.Equal(t, 0, stats.Students)
	assert.Equal(t, 0, stats.Graded)
	assert.Zero(t, stats.Mean)
}

func TestParseCohort(t *testing.T) {
	tests := []struct {
		in      string
		want    Cohort
		wantErr bool
	}{
		{"", CohortAll, false},
		{"all", CohortAll, false},
		{"In-Person", CohortInPerson, false},
		{"online", CohortOnline, false},
		{"hybrid", "", true},
	}

	for _, tt := range tests {
		got, err := ParseCohort(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
