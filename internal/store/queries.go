package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

const currentGradeSelect = `SELECT
	id, student_id, semester,
	lab_section_ou, lab_numerator, lab_denominator, lab_average, dca_score,
	lecture_section_ou, quizzes_numerator, quizzes_denominator, quizzes_average,
	exit_tickets_numerator, exit_tickets_denominator, exit_tickets_average,
	overall_pre_final, overall_post_final, last_updated
FROM current_grades`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCurrentGrade(row rowScanner) (*CurrentGrade, error) {
	var cg CurrentGrade
	var labOU, lectureOU sql.NullString
	var labNum, labDenom, labAvg sql.NullFloat64
	var quizNum, quizDenom, quizAvg sql.NullFloat64
	var exitNum, exitDenom, exitAvg sql.NullFloat64
	var preFinal, postFinal sql.NullFloat64

	err := row.Scan(
		&cg.ID, &cg.StudentID, &cg.Semester,
		&labOU, &labNum, &labDenom, &labAvg, &cg.DCAScore,
		&lectureOU, &quizNum, &quizDenom, &quizAvg,
		&exitNum, &exitDenom, &exitAvg,
		&preFinal, &postFinal, &cg.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	cg.LabSectionOU = strPtr(labOU)
	cg.LabNumerator = floatPtr(labNum)
	cg.LabDenominator = floatPtr(labDenom)
	cg.LabAverage = floatPtr(labAvg)
	cg.LectureSectionOU = strPtr(lectureOU)
	cg.QuizzesNumerator = floatPtr(quizNum)
	cg.QuizzesDenominator = floatPtr(quizDenom)
	cg.QuizzesAverage = floatPtr(quizAvg)
	cg.ExitTicketsNumerator = floatPtr(exitNum)
	cg.ExitTicketsDenominator = floatPtr(exitDenom)
	cg.ExitTicketsAverage = floatPtr(exitAvg)
	cg.PreFinal = floatPtr(preFinal)
	cg.PostFinal = floatPtr(postFinal)
	return &cg, nil
}

// GetStudent looks up a student by institutional ID.
func (s *Store) GetStudent(ctx context.Context, orgDefinedID string) (*Student, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return scanStudent(s.db.QueryRowContext(ctx,
		`SELECT org_defined_id, username, email, last_name, first_name
		 FROM students WHERE org_defined_id = ?`, orgDefinedID))
}

// GetStudentByUsername looks up a student by username (case-insensitive).
func (s *Store) GetStudentByUsername(ctx context.Context, username string) (*Student, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return scanStudent(s.db.QueryRowContext(ctx,
		`SELECT org_defined_id, username, email, last_name, first_name
		 FROM students WHERE lower(username) = lower(?)`, username))
}

func scanStudent(row rowScanner) (*Student, error) {
	var st Student
	err := row.Scan(&st.OrgDefinedID, &st.Username, &st.Email, &st.LastName, &st.FirstName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan student: %w", err)
	}
	return &st, nil
}

// SearchStudentsByName finds students whose first or last name contains the
// query, case-insensitively, ordered by last then first name. limit <= 0
// means no limit.
func (s *Store) SearchStudentsByName(ctx context.Context, query string, limit int) ([]Student, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	q := "%" + strings.ToLower(query) + "%"
	stmt := `SELECT org_defined_id, username, email, last_name, first_name
		 FROM students
		 WHERE lower(last_name) LIKE ? OR lower(first_name) LIKE ?
		 ORDER BY last_name, first_name`
	args := []any{q, q}
	if limit > 0 {
		stmt += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search students: %w", err)
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.OrgDefinedID, &st.Username, &st.Email, &st.LastName, &st.FirstName); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// GetSection looks up a section by its org unit identifier.
func (s *Store) GetSection(ctx context.Context, ou string) (*Section, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return scanSection(s.db.QueryRowContext(ctx,
		`SELECT ou, course_name, section_type, section_code, semester
		 FROM sections WHERE ou = ?`, ou))
}

// FindSection looks up a section by course name, section code, semester, and
// type.
func (s *Store) FindSection(ctx context.Context, courseName, sectionCode, semester string, typ SectionType) (*Section, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return scanSection(s.db.QueryRowContext(ctx,
		`SELECT ou, course_name, section_type, section_code, semester
		 FROM sections
		 WHERE course_name = ? AND section_code = ? AND semester = ? AND section_type = ?`,
		courseName, sectionCode, semester, typ))
}

func scanSection(row rowScanner) (*Section, error) {
	var sec Section
	var code, semester sql.NullString
	err := row.Scan(&sec.OU, &sec.CourseName, &sec.Type, &code, &semester)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan section: %w", err)
	}
	if code.Valid {
		sec.SectionCode = code.String
	}
	if semester.Valid {
		sec.Semester = semester.String
	}
	return &sec, nil
}

// ListSections returns sections for a semester, optionally filtered by type
// (empty typ means both), ordered by course name then section code.
func (s *Store) ListSections(ctx context.Context, semester string, typ SectionType) ([]Section, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	stmt := `SELECT ou, course_name, section_type, section_code, semester
		 FROM sections WHERE semester = ?`
	args := []any{semester}
	if typ != "" {
		stmt += ` AND section_type = ?`
		args = append(args, typ)
	}
	stmt += ` ORDER BY course_name, section_code`

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var out []Section
	for rows.Next() {
		var sec Section
		var code, sem sql.NullString
		if err := rows.Scan(&sec.OU, &sec.CourseName, &sec.Type, &code, &sem); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		if code.Valid {
			sec.SectionCode = code.String
		}
		if sem.Valid {
			sec.Semester = sem.String
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

// GetCurrentGrade returns the live grade record for a student and semester.
func (s *Store) GetCurrentGrade(ctx context.Context, studentID, semester string) (*CurrentGrade, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	cg, err := scanCurrentGrade(s.db.QueryRowContext(ctx,
		currentGradeSelect+` WHERE student_id = ? AND semester = ?`,
		studentID, semester))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get current grade: %w", err)
	}
	return cg, nil
}

// GradesByLabSection returns current grades for every student whose lab
// section is the given ou, ordered by student ID.
func (s *Store) GradesByLabSection(ctx context.Context, ou, semester string) ([]CurrentGrade, error) {
	return s.gradesBySection(ctx, "lab_section_ou", []string{ou}, semester)
}

// GradesByLectureSection returns current grades for every student whose
// lecture section is the given ou, ordered by student ID.
func (s *Store) GradesByLectureSection(ctx context.Context, ou, semester string) ([]CurrentGrade, error) {
	return s.gradesBySection(ctx, "lecture_section_ou", []string{ou}, semester)
}

// GradesByLectureSections returns current grades for students in any of the
// given lecture sections. Used for cohort views spanning several sections.
func (s *Store) GradesByLectureSections(ctx context.Context, ous []string, semester string) ([]CurrentGrade, error) {
	return s.gradesBySection(ctx, "lecture_section_ou", ous, semester)
}

func (s *Store) gradesBySection(ctx context.Context, column string, ous []string, semester string) ([]CurrentGrade, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(ous) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?, ", len(ous)-1) + "?"
	args := make([]any, 0, len(ous)+1)
	for _, ou := range ous {
		args = append(args, ou)
	}
	args = append(args, semester)

	rows, err := s.db.QueryContext(ctx,
		currentGradeSelect+` WHERE `+column+` IN (`+placeholders+`) AND semester = ? ORDER BY student_id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("grades by section: %w", err)
	}
	defer rows.Close()

	var out []CurrentGrade
	for rows.Next() {
		cg, err := scanCurrentGrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan current grade: %w", err)
		}
		out = append(out, *cg)
	}
	return out, rows.Err()
}

// ListSnapshots returns a student's snapshots for one section, oldest first.
func (s *Store) ListSnapshots(ctx context.Context, studentID, sectionOU string) ([]Snapshot, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, section_ou, taken_at,
		   lab_numerator, lab_denominator, lab_average, dca_score,
		   quizzes_numerator, quizzes_denominator, quizzes_average,
		   exit_tickets_numerator, exit_tickets_denominator, exit_tickets_average
		 FROM grade_snapshots
		 WHERE student_id = ? AND section_ou = ?
		 ORDER BY taken_at`,
		studentID, sectionOU)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var labNum, labDenom, labAvg, dca sql.NullFloat64
		var quizNum, quizDenom, quizAvg sql.NullFloat64
		var exitNum, exitDenom, exitAvg sql.NullFloat64
		if err := rows.Scan(
			&snap.ID, &snap.StudentID, &snap.SectionOU, &snap.TakenAt,
			&labNum, &labDenom, &labAvg, &dca,
			&quizNum, &quizDenom, &quizAvg,
			&exitNum, &exitDenom, &exitAvg,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.LabNumerator = floatPtr(labNum)
		snap.LabDenominator = floatPtr(labDenom)
		snap.LabAverage = floatPtr(labAvg)
		snap.DCAScore = floatPtr(dca)
		snap.QuizzesNumerator = floatPtr(quizNum)
		snap.QuizzesDenominator = floatPtr(quizDenom)
		snap.QuizzesAverage = floatPtr(quizAvg)
		snap.ExitTicketsNumerator = floatPtr(exitNum)
		snap.ExitTicketsDenominator = floatPtr(exitDenom)
		snap.ExitTicketsAverage = floatPtr(exitAvg)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// CountSnapshots returns how many snapshots exist for a student and section.
func (s *Store) CountSnapshots(ctx context.Context, studentID, sectionOU string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM grade_snapshots WHERE student_id = ? AND section_ou = ?`,
		studentID, sectionOU).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}
