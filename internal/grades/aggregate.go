// Package grades holds the numeric and business rules that turn resolved
// gradebook rows into percentage figures and overall grades.
//
// The arithmetic here is exact policy, not approximation: the edge cases
// (zero denominators, absent components, the fixed pre-final divisor) change
// grading outcomes and are locked in by tests.
package grades

import (
	"math"

	"github.com/haasr/batch-grades-processing/internal/resolve"
)

// exitTicketPrecision is the number of decimal places the exit-ticket ratio
// is rounded to before scaling by 100. Digital exit tickets report values
// like 49.999998/50 for full credit; without this rounding the average lands
// at 99.999996 instead of 100.
const exitTicketPrecision = 6

// LabGrade is one student's aggregated lab grades for a section.
type LabGrade struct {
	resolve.Identity
	LabNumerator   float64
	LabDenominator float64
	LabAverage     float64
	DCAScore       float64
}

// LabSection is one LAB section's aggregated table, ready to persist.
type LabSection struct {
	CourseName  string
	SectionCode string
	OU          string
	Rows        []LabGrade
}

// LectureGrade is one student's aggregated lecture grades for a section.
type LectureGrade struct {
	resolve.Identity
	QuizzesNumerator       float64
	QuizzesDenominator     float64
	QuizzesAverage         float64
	ExitTicketsNumerator   float64
	ExitTicketsDenominator float64
	ExitTicketsAverage     float64
}

// LectureSection is one LECTURE section's aggregated table, ready to persist.
type LectureSection struct {
	CourseName  string
	SectionCode string
	OU          string
	Rows        []LectureGrade
}

// AggregateLab turns a resolved lab table into percentage figures. Zero lab
// denominators are replaced with the column's mode before dividing, and the
// final-project raw score is normalized to a 0-100 scale using the table's
// max points.
func AggregateLab(t *resolve.LabTable) *LabSection {
	course, section := SplitSectionName(t.SectionName)
	out := &LabSection{
		CourseName:  course,
		SectionCode: section,
		OU:          t.OU,
		Rows:        make([]LabGrade, 0, len(t.Rows)),
	}

	denominators := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		denominators[i] = row.LabDenominator
	}
	mode := DenominatorMode(denominators)

	maxPoints := t.FinalProjectMax
	if maxPoints <= 0 {
		maxPoints = 100
	}

	for _, row := range t.Rows {
		denom := substituteZero(row.LabDenominator, mode)
		out.Rows = append(out.Rows, LabGrade{
			Identity:       row.Identity,
			LabNumerator:   row.LabNumerator,
			LabDenominator: denom,
			LabAverage:     average(row.LabNumerator, denom),
			DCAScore:       100 * (row.FinalProjectRaw / maxPoints),
		})
	}
	return out
}

// AggregateLecture turns a resolved lecture table into percentage figures.
// Zero denominators in each of the two subtotal columns are replaced with
// that column's own mode. Exit-ticket ratios are rounded to six decimals
// before scaling.
func AggregateLecture(t *resolve.LectureTable) *LectureSection {
	course, section := SplitSectionName(t.SectionName)
	out := &LectureSection{
		CourseName:  course,
		SectionCode: section,
		OU:          t.OU,
		Rows:        make([]LectureGrade, 0, len(t.Rows)),
	}

	quizDenoms := make([]float64, len(t.Rows))
	exitDenoms := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		quizDenoms[i] = row.QuizzesDenominator
		exitDenoms[i] = row.ExitTicketsDenominator
	}
	quizMode := DenominatorMode(quizDenoms)
	exitMode := DenominatorMode(exitDenoms)

	for _, row := range t.Rows {
		quizDenom := substituteZero(row.QuizzesDenominator, quizMode)
		exitDenom := substituteZero(row.ExitTicketsDenominator, exitMode)
		out.Rows = append(out.Rows, LectureGrade{
			Identity:               row.Identity,
			QuizzesNumerator:       row.QuizzesNumerator,
			QuizzesDenominator:     quizDenom,
			QuizzesAverage:         average(row.QuizzesNumerator, quizDenom),
			ExitTicketsNumerator:   row.ExitTicketsNumerator,
			ExitTicketsDenominator: exitDenom,
			ExitTicketsAverage:     exitTicketAverage(row.ExitTicketsNumerator, exitDenom),
		})
	}
	return out
}

// DenominatorMode returns the most frequent non-zero value in the column.
// Ties break toward the smaller value. A column with no non-zero values
// yields 0; callers treat a still-zero denominator as "no points possible"
// and produce a 0 average rather than dividing.
//
// A zero denominator for one student in an otherwise populated column is a
// data-entry gap, not a true zero-point state; the modal denominator
// approximates the real assignment total.
func DenominatorMode(values []float64) float64 {
	counts := make(map[float64]int)
	for _, v := range values {
		if v != 0 {
			counts[v]++
		}
	}

	var mode float64
	best := 0
	for v, n := range counts {
		if n > best || (n == best && v < mode) {
			mode = v
			best = n
		}
	}
	return mode
}

// substituteZero applies the zero-denominator policy to a single value.
func substituteZero(denom, mode float64) float64 {
	if denom == 0 {
		return mode
	}
	return denom
}

// average computes 100*numerator/denominator, guarding the all-zero-column
// case where mode substitution had nothing to substitute.
func average(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return 100 * (numerator / denominator)
}

// exitTicketAverage rounds the ratio to six decimals before scaling so
// full-credit scores reported as 49.999998/50 come out as 100, not
// 99.999996.
func exitTicketAverage(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	ratio := numerator / denominator
	shift := math.Pow(10, exitTicketPrecision)
	return 100 * (math.Round(ratio*shift) / shift)
}

// Overall computes the derived pre-final and post-final grades from
// whichever component averages are present. Nil pointers mean the component
// has never been observed for this student/semester.
//
// The pre-final divisor is fixed at 3 regardless of how many components are
// present: the grading scheme assumes all three components are eventually
// graded, so a missing component weighs as zero. Post-final exists only once
// a final project has been submitted (dca > 0); a dca of exactly 0 is
// indistinguishable from "not submitted".
func Overall(labAvg, quizzesAvg, exitTicketsAvg *float64, dcaScore float64) (preFinal, postFinal *float64) {
	sum := 0.0
	present := 0
	for _, c := range []*float64{labAvg, quizzesAvg, exitTicketsAvg} {
		if c != nil {
			sum += *c
			present++
		}
	}

	if present > 0 {
		pre := sum / 3
		preFinal = &pre
	}

	if preFinal != nil && dcaScore > 0 {
		post := (*preFinal + dcaScore) / 2
		postFinal = &post
	}
	return preFinal, postFinal
}

// CurrentGrade returns the externally visible grade: post-final when the
// final project has been folded in, otherwise pre-final. Nil when no
// components have been observed.
func CurrentGrade(preFinal, postFinal *float64) *float64 {
	if postFinal != nil {
		return postFinal
	}
	return preFinal
}

// HasFinalProject reports whether a final project has been submitted.
func HasFinalProject(dcaScore float64) bool {
	return dcaScore > 0
}
