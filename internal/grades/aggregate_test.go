package grades

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasr/batch-grades-processing/internal/resolve"
)

func f(v float64) *float64 { return &v }

func TestDenominatorMode(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{name: "clear mode", values: []float64{50, 50, 50, 0, 45}, want: 50},
		{name: "zeros excluded", values: []float64{0, 0, 0, 50}, want: 50},
		{name: "tie breaks low", values: []float64{45, 50, 45, 50}, want: 45},
		{name: "all zero", values: []float64{0, 0}, want: 0},
		{name: "empty", values: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DenominatorMode(tt.values))
		})
	}
}

func TestAggregateLab(t *testing.T) {
	table := &resolve.LabTable{
		SectionName:     "CSCI-1150-001",
		OU:              "10219699",
		FinalProjectMax: 300,
		Rows: []resolve.LabRow{
			{
				Identity:        resolve.Identity{OrgDefinedID: "E001"},
				LabNumerator:    45,
				LabDenominator:  50,
				FinalProjectRaw: 270,
			},
			{
				Identity:       resolve.Identity{OrgDefinedID: "E002"},
				LabNumerator:   40,
				LabDenominator: 0, // data-entry gap, mode substituted
			},
			{
				Identity:       resolve.Identity{OrgDefinedID: "E003"},
				LabNumerator:   30,
				LabDenominator: 50,
			},
		},
	}

	sec := AggregateLab(table)

	assert.Equal(t, "CSCI-1150", sec.CourseName)
	assert.Equal(t, "001", sec.SectionCode)
	assert.Equal(t, "10219699", sec.OU)
	require.Len(t, sec.Rows, 3)

	assert.InDelta(t, 90.0, sec.Rows[0].LabAverage, 1e-9)
	assert.InDelta(t, 90.0, sec.Rows[0].DCAScore, 1e-9, "270/300 normalized to 90")

	assert.Equal(t, 50.0, sec.Rows[1].LabDenominator, "zero replaced with column mode")
	assert.InDelta(t, 80.0, sec.Rows[1].LabAverage, 1e-9)
	assert.Equal(t, 0.0, sec.Rows[1].DCAScore)
}

func TestAggregateLab_AverageOver100Preserved(t *testing.T) {
	table := &resolve.LabTable{
		SectionName:     "CSCI-1150-002",
		FinalProjectMax: 100,
		Rows: []resolve.LabRow{
			{LabNumerator: 55, LabDenominator: 0},
			{LabNumerator: 40, LabDenominator: 50},
			{LabNumerator: 42, LabDenominator: 50},
		},
	}

	sec := AggregateLab(table)

	// Bonus points can push a numerator past the substituted denominator;
	// the figure is stored as-is, not clamped.
	assert.InDelta(t, 110.0, sec.Rows[0].LabAverage, 1e-9)
}

func TestAggregateLab_AllZeroDenominators(t *testing.T) {
	table := &resolve.LabTable{
		SectionName:     "CSCI-1150-003",
		FinalProjectMax: 100,
		Rows: []resolve.LabRow{
			{LabNumerator: 10, LabDenominator: 0},
			{LabNumerator: 20, LabDenominator: 0},
		},
	}

	sec := AggregateLab(table)

	for _, row := range sec.Rows {
		assert.Equal(t, 0.0, row.LabAverage, "never divides by zero")
	}
}

func TestAggregateLecture(t *testing.T) {
	table := &resolve.LectureTable{
		SectionName: "CSCI-1100-901",
		OU:          "10219787",
		Rows: []resolve.LectureRow{
			{
				Identity:               resolve.Identity{OrgDefinedID: "E001"},
				QuizzesNumerator:       80,
				QuizzesDenominator:     100,
				ExitTicketsNumerator:   49.999998,
				ExitTicketsDenominator: 50,
			},
			{
				Identity:               resolve.Identity{OrgDefinedID: "E002"},
				QuizzesNumerator:       60,
				QuizzesDenominator:     0,
				ExitTicketsNumerator:   35,
				ExitTicketsDenominator: 50,
			},
			{
				QuizzesNumerator:       70,
				QuizzesDenominator:     100,
				ExitTicketsNumerator:   40,
				ExitTicketsDenominator: 50,
			},
		},
	}

	sec := AggregateLecture(table)

	require.Len(t, sec.Rows, 3)
	assert.InDelta(t, 80.0, sec.Rows[0].QuizzesAverage, 1e-9)
	assert.Equal(t, 100.0, sec.Rows[0].ExitTicketsAverage,
		"49.999998/50 rounds to full credit at six decimals")

	assert.Equal(t, 100.0, sec.Rows[1].QuizzesDenominator, "quiz column mode substituted")
	assert.InDelta(t, 60.0, sec.Rows[1].QuizzesAverage, 1e-9)
	assert.InDelta(t, 70.0, sec.Rows[1].ExitTicketsAverage, 1e-9)
}

func TestExitTicketAverage_RoundsBeforeScaling(t *testing.T) {
	got := exitTicketAverage(49.999998, 50)
	assert.Equal(t, 100.0, got)

	// A genuinely partial score is untouched by the rounding.
	got = exitTicketAverage(45.5, 50)
	assert.InDelta(t, 91.0, got, 1e-9)
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name     string
		lab      *float64
		quizzes  *float64
		exit     *float64
		dca      float64
		wantPre  *float64
		wantPost *float64
	}{
		{
			name: "all components with final project",
			lab:  f(90), quizzes: f(80), exit: f(70), dca: 90,
			wantPre: f(80), wantPost: f(85),
		},
		{
			name: "no final project",
			lab:  f(90), quizzes: f(80), exit: f(70), dca: 0,
			wantPre: f(80), wantPost: nil,
		},
		{
			// The divisor stays 3 even when components are missing. This is
			// the grading scheme's rule, not an averaging bug; do not
			// "fix" it to divide by the component count.
			name: "missing components keep divisor of three",
			lab:  f(90), quizzes: nil, exit: nil, dca: 0,
			wantPre: f(30), wantPost: nil,
		},
		{
			name: "two components",
			lab:  nil, quizzes: f(80), exit: f(70), dca: 0,
			wantPre: f(50), wantPost: nil,
		},
		{
			name: "no components",
			lab:  nil, quizzes: nil, exit: nil, dca: 90,
			wantPre: nil, wantPost: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pre, post := Overall(tt.lab, tt.quizzes, tt.exit, tt.dca)

			if tt.wantPre == nil {
				assert.Nil(t, pre)
			} else {
				require.NotNil(t, pre)
				assert.InDelta(t, *tt.wantPre, *pre, 1e-9)
			}
			if tt.wantPost == nil {
				assert.Nil(t, post)
			} else {
				require.NotNil(t, post)
				assert.InDelta(t, *tt.wantPost, *post, 1e-9)
			}
		})
	}
}

func TestCurrentGrade(t *testing.T) {
	assert.Equal(t, f(85.0), CurrentGrade(f(80), f(85)))
	assert.Equal(t, f(80.0), CurrentGrade(f(80), nil))
	assert.Nil(t, CurrentGrade(nil, nil))
}

func TestHasFinalProject(t *testing.T) {
	assert.False(t, HasFinalProject(0), "a score of exactly 0 means not submitted")
	assert.True(t, HasFinalProject(0.5))
	assert.True(t, HasFinalProject(90))
}
