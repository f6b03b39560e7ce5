// Package store persists students, sections, current grades, and grade
// snapshots in an embedded SQLite database.
//
// The store is the single owner of write access to these tables. SQLite
// tolerates one writer at a time, so callers funnel all writes through one
// goroutine (see the pipeline package's two-phase discipline); the store
// itself relies on SQLite's transaction semantics for per-table atomicity
// rather than holding its own locks.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// SectionType distinguishes lab offerings from lecture offerings.
type SectionType string

const (
	SectionLab     SectionType = "LAB"
	SectionLecture SectionType = "LECTURE"
)

// Student is a student's identity record, keyed by the institution's opaque
// identifier. Name and email follow the most recent export (last write
// wins); the pipeline never deletes students.
type Student struct {
	OrgDefinedID string
	Username     string
	Email        string
	LastName     string
	FirstName    string
}

// Section is one course offering. Sections are immutable once created:
// a re-observation with a different name or type keeps the stored values.
type Section struct {
	OU          string
	CourseName  string
	Type        SectionType
	SectionCode string
	Semester    string
}

// CurrentGrade is the single live grade record per (student, semester).
// Component averages are nil until the corresponding ingestion flow has
// observed them; the lab flow writes only lab-side fields and the lecture
// flow only lecture-side fields.
type CurrentGrade struct {
	ID        string
	StudentID string
	Semester  string

	LabSectionOU   *string
	LabNumerator   *float64
	LabDenominator *float64
	LabAverage     *float64
	DCAScore       float64

	LectureSectionOU       *string
	QuizzesNumerator       *float64
	QuizzesDenominator     *float64
	QuizzesAverage         *float64
	ExitTicketsNumerator   *float64
	ExitTicketsDenominator *float64
	ExitTicketsAverage     *float64

	PreFinal  *float64
	PostFinal *float64

	LastUpdated time.Time
}

// Snapshot is an immutable historical observation of grade components for
// one (student, section) at ingestion time. Snapshots are only ever
// appended.
type Snapshot struct {
	ID        string
	StudentID string
	SectionOU string
	TakenAt   time.Time

	LabNumerator   *float64
	LabDenominator *float64
	LabAverage     *float64
	DCAScore       *float64

	QuizzesNumerator       *float64
	QuizzesDenominator     *float64
	QuizzesAverage         *float64
	ExitTicketsNumerator   *float64
	ExitTicketsDenominator *float64
	ExitTicketsAverage     *float64
}

// Store wraps the SQLite database holding all grade data.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates an unopened store. A nil logger discards log output.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Open opens the SQLite database at path. Use ":memory:" for an in-memory
// database. Foreign keys are enforced; file-backed databases run in WAL
// mode.
func (s *Store) Open(path string) error {
	dsn := path + "?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(wal)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open grade database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping grade database: %w", err)
	}

	// A single connection keeps the in-memory database alive across calls
	// and matches the single-writer discipline for file databases.
	db.SetMaxOpenConns(1)

	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ready() error {
	if s.db == nil {
		return fmt.Errorf("store not opened")
	}
	return nil
}

func generateID() string {
	return uuid.New().String()
}

func ptr(v float64) *float64 {
	return &v
}

// nullStr adapts *string for sql.Scan round-trips.
func nullStr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func strPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
