// Package resolve locates the semantic columns in a raw gradebook export
// and produces a normalized row set ready for aggregation.
//
// Export layouts are not stable: column order and naming change between
// export runs and gradebook configurations. Resolution works by
// case-insensitive substring heuristics on header text, evaluated once per
// table, first match wins per predicate. The raw input table is never
// modified; resolution is a pure transform so the original export stays
// available for diagnostics.
package resolve

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/haasr/batch-grades-processing/internal/export"
)

// defaultFinalProjectMax is the normalization denominator used when the
// final-project header carries no maxpoints token.
const defaultFinalProjectMax = 100

// ResolutionError reports that a required semantic column could not be
// located in a raw table. The section's ingestion is abandoned; no partial
// data reaches the store.
type ResolutionError struct {
	Section string
	OU      string
	Column  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s (ou %s): no column matching %q", e.Section, e.OU, e.Column)
}

// Identity holds the student identity fields common to every export.
type Identity struct {
	OrgDefinedID string
	Username     string
	Email        string
	LastName     string
	FirstName    string
}

// LabRow is one student's resolved lab export row.
type LabRow struct {
	Identity
	LabNumerator    float64
	LabDenominator  float64
	FinalProjectRaw float64
}

// LabTable is a resolved LAB section export.
type LabTable struct {
	SectionName     string
	OU              string
	FinalProjectMax float64
	Rows            []LabRow
}

// LectureRow is one student's resolved lecture export row.
type LectureRow struct {
	Identity
	QuizzesNumerator       float64
	QuizzesDenominator     float64
	ExitTicketsNumerator   float64
	ExitTicketsDenominator float64
}

// LectureTable is a resolved LECTURE section export.
type LectureTable struct {
	SectionName string
	OU          string
	Rows        []LectureRow
}

// identityColumns locates the identity columns shared by lab and lecture
// exports. The OrgDefinedId column is assumed present under that exact name;
// last/first name columns are matched by substring ("name" alone would also
// hit Username, so the given-name tokens are matched instead).
type identityColumns struct {
	orgID, email, last, first int
}

func findIdentityColumns(t *export.RawTable) (identityColumns, error) {
	cols := identityColumns{
		orgID: firstMatch(t.Columns, func(h string) bool { return strings.Contains(h, "orgdefinedid") }),
		email: firstMatch(t.Columns, func(h string) bool { return strings.Contains(h, "email") }),
		last:  firstMatch(t.Columns, func(h string) bool { return strings.Contains(h, "last") }),
		first: firstMatch(t.Columns, func(h string) bool { return strings.Contains(h, "first") }),
	}

	for _, c := range []struct {
		idx  int
		name string
	}{
		{cols.orgID, "OrgDefinedId"},
		{cols.email, "email"},
		{cols.last, "last name"},
		{cols.first, "first name"},
	} {
		if c.idx < 0 {
			return cols, &ResolutionError{Section: t.SectionName, OU: t.OU, Column: c.name}
		}
	}
	return cols, nil
}

// Lab resolves a LAB section export. finalProjectLabel is the configured
// gradebook label of the final-project grade item, matched as a
// case-insensitive prefix of the header text. When that header embeds a
// "maxpoints:<n>" token, n becomes the raw score's normalization
// denominator; otherwise 100 is assumed.
func Lab(t *export.RawTable, finalProjectLabel string) (*LabTable, error) {
	ids, err := findIdentityColumns(t)
	if err != nil {
		return nil, err
	}

	numerator := firstMatch(t.Columns, func(h string) bool { return strings.Contains(h, "numerator") })
	denominator := firstMatch(t.Columns, func(h string) bool { return strings.Contains(h, "denominator") })

	label := strings.ToLower(finalProjectLabel)
	finalProject := firstMatch(t.Columns, func(h string) bool {
		return strings.HasPrefix(strings.TrimSpace(h), label)
	})

	switch {
	case numerator < 0:
		return nil, &ResolutionError{Section: t.SectionName, OU: t.OU, Column: "numerator"}
	case denominator < 0:
		return nil, &ResolutionError{Section: t.SectionName, OU: t.OU, Column: "denominator"}
	case finalProject < 0:
		return nil, &ResolutionError{Section: t.SectionName, OU: t.OU, Column: finalProjectLabel}
	}

	maxPoints, err := maxPointsFromHeader(t.Columns[finalProject])
	if err != nil {
		return nil, &ResolutionError{Section: t.SectionName, OU: t.OU, Column: t.Columns[finalProject]}
	}

	out := &LabTable{
		SectionName:     t.SectionName,
		OU:              t.OU,
		FinalProjectMax: maxPoints,
		Rows:            make([]LabRow, 0, len(t.Rows)),
	}
	for _, row := range t.Rows {
		out.Rows = append(out.Rows, LabRow{
			Identity:        resolveIdentity(row, ids),
			LabNumerator:    numericCell(row, numerator),
			LabDenominator:  numericCell(row, denominator),
			FinalProjectRaw: numericCell(row, finalProject),
		})
	}
	return out, nil
}

// Lecture resolves a LECTURE section export. Two numerator/denominator
// pairs are present; the pair whose header contains "exit" is the
// exit-ticket subtotal, the other is the quiz subtotal.
func Lecture(t *export.RawTable) (*LectureTable, error) {
	ids, err := findIdentityColumns(t)
	if err != nil {
		return nil, err
	}

	isExit := func(h string) bool { return strings.Contains(h, "exit") }
	exitNum := firstMatch(t.Columns, func(h string) bool { return strings.Contains(h, "numerator") && isExit(h) })
	exitDen := firstMatch(t.Columns, func(h string) bool { return strings.Contains(h, "denominator") && isExit(h) })
	quizNum := firstMatch(t.Columns, func(h string) bool { return strings.Contains(h, "numerator") && !isExit(h) })
	quizDen := firstMatch(t.Columns, func(h string) bool { return strings.Contains(h, "denominator") && !isExit(h) })

	switch {
	case exitNum < 0:
		return nil, &ResolutionError{Section: t.SectionName, OU: t.OU, Column: "exit tickets numerator"}
	case exitDen < 0:
		return nil, &ResolutionError{Section: t.SectionName, OU: t.OU, Column: "exit tickets denominator"}
	case quizNum < 0:
		return nil, &ResolutionError{Section: t.SectionName, OU: t.OU, Column: "quizzes numerator"}
	case quizDen < 0:
		return nil, &ResolutionError{Section: t.SectionName, OU: t.OU, Column: "quizzes denominator"}
	}

	out := &LectureTable{
		SectionName: t.SectionName,
		OU:          t.OU,
		Rows:        make([]LectureRow, 0, len(t.Rows)),
	}
	for _, row := range t.Rows {
		out.Rows = append(out.Rows, LectureRow{
			Identity:               resolveIdentity(row, ids),
			QuizzesNumerator:       numericCell(row, quizNum),
			QuizzesDenominator:     numericCell(row, quizDen),
			ExitTicketsNumerator:   numericCell(row, exitNum),
			ExitTicketsDenominator: numericCell(row, exitDen),
		})
	}
	return out, nil
}

// resolveIdentity extracts and normalizes the identity fields of one row:
// the leading '#' the export prepends to OrgDefinedId is stripped, the email
// is lower-cased, and the username is the email's local part.
func resolveIdentity(row []string, ids identityColumns) Identity {
	email := strings.ToLower(cell(row, ids.email))
	username, _, _ := strings.Cut(email, "@")
	return Identity{
		OrgDefinedID: strings.TrimPrefix(cell(row, ids.orgID), "#"),
		Username:     username,
		Email:        email,
		LastName:     cell(row, ids.last),
		FirstName:    cell(row, ids.first),
	}
}

// firstMatch returns the index of the first header whose lower-cased text
// satisfies pred, or -1.
func firstMatch(headers []string, pred func(string) bool) int {
	for i, h := range headers {
		if pred(strings.ToLower(h)) {
			return i
		}
	}
	return -1
}

// maxPointsFromHeader extracts the integer of a "maxpoints:<n>" token
// embedded in a header. A header without the token yields the default of
// 100; a token with no parseable integer is an error, since silently
// misnormalizing a final-project score changes grading outcomes.
func maxPointsFromHeader(header string) (float64, error) {
	lower := strings.ToLower(header)
	i := strings.Index(lower, "maxpoints:")
	if i < 0 {
		return defaultFinalProjectMax, nil
	}

	rest := header[i+len("maxpoints:"):]
	var digits strings.Builder
	for _, r := range rest {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		} else if digits.Len() > 0 {
			break
		}
	}
	if digits.Len() == 0 {
		return 0, fmt.Errorf("maxpoints token with no integer in %q", header)
	}

	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}

// cell returns the row's value at idx, tolerating short rows.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// numericCell parses the cell as a float. Missing or non-numeric values
// default to 0; rows are never discarded for missing grade data.
func numericCell(row []string, idx int) float64 {
	v, err := strconv.ParseFloat(cell(row, idx), 64)
	if err != nil {
		return 0
	}
	return v
}
