package config

// Default configuration values, overridable via gradepipe.yaml, GRADEPIPE_*
// environment variables, or flags.
const (
	DefaultDatabase   = "grades.db"
	DefaultExportsDir = "exports"
	DefaultWorkers    = 3

	DefaultLabAssignmentsLabel = "Lab Assignments"
	DefaultFinalProjectLabel   = "Audit"
	DefaultQuizzesLabel        = "Quizzes"
	DefaultExitTicketsLabel    = "Exit Tickets"
)
