// Package report renders query results as fixed-layout text tables for the
// CLI.
package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/haasr/batch-grades-processing/internal/query"
	"github.com/haasr/batch-grades-processing/internal/store"
)

// Profiles renders one row per student: identity, component averages, and
// the current grade.
func Profiles(w io.Writer, profiles []query.Profile) {
	if len(profiles) == 0 {
		_, _ = fmt.Fprintln(w, "(0 students)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{
		"ID", "Name", "Username",
		"Lab", "Quizzes", "Exit Tickets", "Final Project", "Current",
	})

	for _, p := range profiles {
		t.AppendRow(table.Row{
			p.Student.OrgDefinedID,
			p.Student.LastName + ", " + p.Student.FirstName,
			p.Student.Username,
			formatAvg(p.Grade.LabAverage),
			formatAvg(p.Grade.QuizzesAverage),
			formatAvg(p.Grade.ExitTicketsAverage),
			formatFinalProject(&p),
			formatAvg(p.CurrentGrade),
		})
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d students)\n", len(profiles))
}

// Profile renders a single student's full grade breakdown.
func Profile(w io.Writer, p *query.Profile) {
	_, _ = fmt.Fprintf(w, "%s, %s (%s)\n", p.Student.LastName, p.Student.FirstName, p.Student.OrgDefinedID)
	_, _ = fmt.Fprintf(w, "%s <%s>\n", p.Student.Username, p.Student.Email)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Component", "Points", "Average"})

	g := p.Grade
	t.AppendRow(table.Row{"Lab assignments", formatPoints(g.LabNumerator, g.LabDenominator), formatAvg(g.LabAverage)})
	t.AppendRow(table.Row{"Quizzes", formatPoints(g.QuizzesNumerator, g.QuizzesDenominator), formatAvg(g.QuizzesAverage)})
	t.AppendRow(table.Row{"Exit tickets", formatPoints(g.ExitTicketsNumerator, g.ExitTicketsDenominator), formatAvg(g.ExitTicketsAverage)})
	t.AppendRow(table.Row{"Final project", formatFinalProject(p), ""})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Pre-final", "", formatAvg(g.PreFinal)})
	t.AppendRow(table.Row{"Post-final", "", formatAvg(g.PostFinal)})
	t.AppendRow(table.Row{"Current grade", "", formatAvg(p.CurrentGrade)})
	t.Render()
}

// Stats renders cohort statistics.
func Stats(w io.Writer, title string, stats *query.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.AppendRow(table.Row{"Students", stats.Students})
	t.AppendRow(table.Row{"With grades", stats.Graded})
	t.AppendRow(table.Row{"Final projects in", stats.FinalProjects})
	if stats.Graded > 0 {
		t.AppendRow(table.Row{"Mean", fmt.Sprintf("%.2f", stats.Mean)})
		t.AppendRow(table.Row{"Min", fmt.Sprintf("%.2f", stats.Min)})
		t.AppendRow(table.Row{"Max", fmt.Sprintf("%.2f", stats.Max)})
	}
	t.Render()
}

// Sections renders a section listing.
func Sections(w io.Writer, sections []store.Section) {
	if len(sections) == 0 {
		_, _ = fmt.Fprintln(w, "(0 sections)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"OU", "Course", "Section", "Type", "Semester"})
	for _, sec := range sections {
		t.AppendRow(table.Row{sec.OU, sec.CourseName, sec.SectionCode, sec.Type, sec.Semester})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d sections)\n", len(sections))
}

func formatAvg(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func formatPoints(num, denom *float64) string {
	if num == nil || denom == nil {
		return "-"
	}
	return fmt.Sprintf("%.6g / %.6g", *num, *denom)
}

func formatFinalProject(p *query.Profile) string {
	if !p.HasFinalProject {
		return "not submitted"
	}
	return fmt.Sprintf("%.2f", p.Grade.DCAScore)
}
