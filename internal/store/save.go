package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/haasr/batch-grades-processing/internal/grades"
)

// SaveLabSection persists one LAB section's aggregated table: the section
// is created if absent, each student is upserted, a snapshot is appended,
// and the lab-side fields of each student's CurrentGrade row are
// overwritten before the overall grades are recomputed.
//
// All of the table's writes commit as one unit; any failure rolls the whole
// table back. Re-applying identical input reproduces identical stored state
// (plus one more snapshot per row).
func (s *Store) SaveLabSection(ctx context.Context, sec *grades.LabSection, semester string) error {
	if err := s.ready(); err != nil {
		return err
	}

	s.logger.Info("saving lab section",
		"course", sec.CourseName, "section", sec.SectionCode, "ou", sec.OU, "rows", len(sec.Rows))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.ensureSection(ctx, tx, &Section{
		OU:          sec.OU,
		CourseName:  sec.CourseName,
		Type:        SectionLab,
		SectionCode: sec.SectionCode,
		Semester:    semester,
	}); err != nil {
		return err
	}

	now := s.now()
	for _, row := range sec.Rows {
		if err := s.upsertStudent(ctx, tx, &Student{
			OrgDefinedID: row.OrgDefinedID,
			Username:     row.Username,
			Email:        row.Email,
			LastName:     row.LastName,
			FirstName:    row.FirstName,
		}); err != nil {
			return err
		}

		if err := s.appendSnapshot(ctx, tx, &Snapshot{
			ID:             generateID(),
			StudentID:      row.OrgDefinedID,
			SectionOU:      sec.OU,
			TakenAt:        now,
			LabNumerator:   ptr(row.LabNumerator),
			LabDenominator: ptr(row.LabDenominator),
			LabAverage:     ptr(row.LabAverage),
			DCAScore:       ptr(row.DCAScore),
		}); err != nil {
			return err
		}

		cg, err := s.currentGradeForUpdate(ctx, tx, row.OrgDefinedID, semester)
		if err != nil {
			return err
		}

		ou := sec.OU
		cg.LabSectionOU = &ou
		cg.LabNumerator = ptr(row.LabNumerator)
		cg.LabDenominator = ptr(row.LabDenominator)
		cg.LabAverage = ptr(row.LabAverage)
		cg.DCAScore = row.DCAScore

		if err := s.writeCurrentGrade(ctx, tx, cg, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lab section %s: %w", sec.OU, err)
	}
	return nil
}

// SaveLectureSection persists one LECTURE section's aggregated table. Same
// transactional contract as SaveLabSection, writing the lecture-side fields
// of CurrentGrade and leaving the lab-side fields untouched.
func (s *Store) SaveLectureSection(ctx context.Context, sec *grades.LectureSection, semester string) error {
	if err := s.ready(); err != nil {
		return err
	}

	s.logger.Info("saving lecture section",
		"course", sec.CourseName, "section", sec.SectionCode, "ou", sec.OU, "rows", len(sec.Rows))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.ensureSection(ctx, tx, &Section{
		OU:          sec.OU,
		CourseName:  sec.CourseName,
		Type:        SectionLecture,
		SectionCode: sec.SectionCode,
		Semester:    semester,
	}); err != nil {
		return err
	}

	now := s.now()
	for _, row := range sec.Rows {
		if err := s.upsertStudent(ctx, tx, &Student{
			OrgDefinedID: row.OrgDefinedID,
			Username:     row.Username,
			Email:        row.Email,
			LastName:     row.LastName,
			FirstName:    row.FirstName,
		}); err != nil {
			return err
		}

		if err := s.appendSnapshot(ctx, tx, &Snapshot{
			ID:                     generateID(),
			StudentID:              row.OrgDefinedID,
			SectionOU:              sec.OU,
			TakenAt:                now,
			QuizzesNumerator:       ptr(row.QuizzesNumerator),
			QuizzesDenominator:     ptr(row.QuizzesDenominator),
			QuizzesAverage:         ptr(row.QuizzesAverage),
			ExitTicketsNumerator:   ptr(row.ExitTicketsNumerator),
			ExitTicketsDenominator: ptr(row.ExitTicketsDenominator),
			ExitTicketsAverage:     ptr(row.ExitTicketsAverage),
		}); err != nil {
			return err
		}

		cg, err := s.currentGradeForUpdate(ctx, tx, row.OrgDefinedID, semester)
		if err != nil {
			return err
		}

		ou := sec.OU
		cg.LectureSectionOU = &ou
		cg.QuizzesNumerator = ptr(row.QuizzesNumerator)
		cg.QuizzesDenominator = ptr(row.QuizzesDenominator)
		cg.QuizzesAverage = ptr(row.QuizzesAverage)
		cg.ExitTicketsNumerator = ptr(row.ExitTicketsNumerator)
		cg.ExitTicketsDenominator = ptr(row.ExitTicketsDenominator)
		cg.ExitTicketsAverage = ptr(row.ExitTicketsAverage)

		if err := s.writeCurrentGrade(ctx, tx, cg, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lecture section %s: %w", sec.OU, err)
	}
	return nil
}

// ensureSection creates the section if it does not exist. Sections are
// first-write-wins: an existing row is left untouched even when the export
// reports a different name or type for the same ou.
func (s *Store) ensureSection(ctx context.Context, tx *sql.Tx, sec *Section) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM sections WHERE ou = ?`, sec.OU).Scan(&exists)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("look up section %s: %w", sec.OU, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sections (ou, course_name, section_type, section_code, semester)
		 VALUES (?, ?, ?, ?, ?)`,
		sec.OU, sec.CourseName, sec.Type, sec.SectionCode, sec.Semester,
	)
	if err != nil {
		return fmt.Errorf("create section %s: %w", sec.OU, err)
	}
	return nil
}

// upsertStudent creates the student or refreshes name/email from the latest
// export (last write wins).
func (s *Store) upsertStudent(ctx context.Context, tx *sql.Tx, st *Student) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO students (org_defined_id, username, email, last_name, first_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (org_defined_id) DO UPDATE SET
		   username = excluded.username,
		   email = excluded.email,
		   last_name = excluded.last_name,
		   first_name = excluded.first_name`,
		st.OrgDefinedID, st.Username, st.Email, st.LastName, st.FirstName,
	)
	if err != nil {
		return fmt.Errorf("upsert student %s: %w", st.OrgDefinedID, err)
	}
	return nil
}

func (s *Store) appendSnapshot(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO grade_snapshots (
		   id, student_id, section_ou, taken_at,
		   lab_numerator, lab_denominator, lab_average, dca_score,
		   quizzes_numerator, quizzes_denominator, quizzes_average,
		   exit_tickets_numerator, exit_tickets_denominator, exit_tickets_average
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.StudentID, snap.SectionOU, snap.TakenAt,
		nullFloat(snap.LabNumerator), nullFloat(snap.LabDenominator),
		nullFloat(snap.LabAverage), nullFloat(snap.DCAScore),
		nullFloat(snap.QuizzesNumerator), nullFloat(snap.QuizzesDenominator),
		nullFloat(snap.QuizzesAverage),
		nullFloat(snap.ExitTicketsNumerator), nullFloat(snap.ExitTicketsDenominator),
		nullFloat(snap.ExitTicketsAverage),
	)
	if err != nil {
		return fmt.Errorf("append snapshot for student %s: %w", snap.StudentID, err)
	}
	return nil
}

// currentGradeForUpdate loads the student's CurrentGrade row inside the
// transaction, creating an empty one when this is the first observation for
// the semester.
func (s *Store) currentGradeForUpdate(ctx context.Context, tx *sql.Tx, studentID, semester string) (*CurrentGrade, error) {
	cg, err := scanCurrentGrade(tx.QueryRowContext(ctx,
		currentGradeSelect+` WHERE student_id = ? AND semester = ?`,
		studentID, semester,
	))
	if err == nil {
		return cg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("look up current grade for %s/%s: %w", studentID, semester, err)
	}

	return &CurrentGrade{
		ID:        generateID(),
		StudentID: studentID,
		Semester:  semester,
	}, nil
}

// writeCurrentGrade recomputes the overall grades from whatever components
// the row now holds and upserts it. The pre-final divisor stays fixed even
// when components are missing; the post-final grade appears only once a
// final project score exists.
func (s *Store) writeCurrentGrade(ctx context.Context, tx *sql.Tx, cg *CurrentGrade, now time.Time) error {
	cg.PreFinal, cg.PostFinal = grades.Overall(cg.LabAverage, cg.QuizzesAverage, cg.ExitTicketsAverage, cg.DCAScore)
	cg.LastUpdated = now

	res, err := tx.ExecContext(ctx,
		`UPDATE current_grades SET
		   lab_section_ou = ?, lab_numerator = ?, lab_denominator = ?, lab_average = ?, dca_score = ?,
		   lecture_section_ou = ?, quizzes_numerator = ?, quizzes_denominator = ?, quizzes_average = ?,
		   exit_tickets_numerator = ?, exit_tickets_denominator = ?, exit_tickets_average = ?,
		   overall_pre_final = ?, overall_post_final = ?, last_updated = ?
		 WHERE student_id = ? AND semester = ?`,
		nullStr(cg.LabSectionOU), nullFloat(cg.LabNumerator), nullFloat(cg.LabDenominator),
		nullFloat(cg.LabAverage), cg.DCAScore,
		nullStr(cg.LectureSectionOU), nullFloat(cg.QuizzesNumerator), nullFloat(cg.QuizzesDenominator),
		nullFloat(cg.QuizzesAverage),
		nullFloat(cg.ExitTicketsNumerator), nullFloat(cg.ExitTicketsDenominator),
		nullFloat(cg.ExitTicketsAverage),
		nullFloat(cg.PreFinal), nullFloat(cg.PostFinal), cg.LastUpdated,
		cg.StudentID, cg.Semester,
	)
	if err != nil {
		return fmt.Errorf("update current grade for %s/%s: %w", cg.StudentID, cg.Semester, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update current grade for %s/%s: %w", cg.StudentID, cg.Semester, err)
	} else if n > 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO current_grades (
		   id, student_id, semester,
		   lab_section_ou, lab_numerator, lab_denominator, lab_average, dca_score,
		   lecture_section_ou, quizzes_numerator, quizzes_denominator, quizzes_average,
		   exit_tickets_numerator, exit_tickets_denominator, exit_tickets_average,
		   overall_pre_final, overall_post_final, last_updated
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cg.ID, cg.StudentID, cg.Semester,
		nullStr(cg.LabSectionOU), nullFloat(cg.LabNumerator), nullFloat(cg.LabDenominator),
		nullFloat(cg.LabAverage), cg.DCAScore,
		nullStr(cg.LectureSectionOU), nullFloat(cg.QuizzesNumerator), nullFloat(cg.QuizzesDenominator),
		nullFloat(cg.QuizzesAverage),
		nullFloat(cg.ExitTicketsNumerator), nullFloat(cg.ExitTicketsDenominator),
		nullFloat(cg.ExitTicketsAverage),
		nullFloat(cg.PreFinal), nullFloat(cg.PostFinal), cg.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("create current grade for %s/%s: %w", cg.StudentID, cg.Semester, err)
	}
	return nil
}
