// Package config loads runtime configuration from defaults, a YAML file,
// environment variables, and CLI flags, in increasing order of precedence.
package config

// Labels holds the gradebook category labels used to identify grade-item
// columns in exports. Institutions rename categories between semesters, so
// these are configurable rather than baked in.
type Labels struct {
	// LabAssignments is the lab subtotal category label.
	LabAssignments string `koanf:"lab_assignments"`
	// FinalProject is matched as a case-insensitive prefix of the
	// final-project column header in lab exports.
	FinalProject string `koanf:"final_project"`
	// Quizzes is the quiz subtotal category label.
	Quizzes string `koanf:"quizzes"`
	// ExitTickets is the exit-ticket subtotal category label.
	ExitTickets string `koanf:"exit_tickets"`
}

// Config is the resolved runtime configuration.
type Config struct {
	// Database is the SQLite database path, or ":memory:".
	Database string `koanf:"database"`
	// ExportsDir is the directory holding per-section gradebook export CSVs.
	ExportsDir string `koanf:"exports_dir"`
	// Workers caps ingestion parallelism.
	Workers int `koanf:"workers"`
	// Semester is the 6-character semester code (4-digit year + term code
	// 10, 50, or 80). Derived from the clock when left empty.
	Semester string `koanf:"semester"`
	Labels   Labels `koanf:"labels"`
	// Verbose switches log output from info to debug level.
	Verbose bool `koanf:"verbose"`
}
