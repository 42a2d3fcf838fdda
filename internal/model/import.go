package model

// Import phases.
const (
	PhaseListing   = "listing"
	PhaseWriting   = "writing"
	PhaseCompleted = "completed"
	PhaseCancelled = "cancelled"
	PhaseError     = "error"
)

// ImportProgress is the persisted progress row for one import, keyed by
// ImportID. Mutated only by the orchestrator; retained after completion so
// clients can keep polling.
type ImportProgress struct {
	ImportID          string   `json:"import_id"`
	UserID            string   `json:"-"`
	CourseID          string   `json:"course_id"`
	CurrentStep       string   `json:"current_step"`
	Phase             string   `json:"phase"`
	TotalModules      int      `json:"total_modules"`
	ProcessedModules  int      `json:"processed_modules"`
	TotalSubjects     int      `json:"total_subjects"`
	ProcessedSubjects int      `json:"processed_subjects"`
	TotalLessons      int      `json:"total_lessons"`
	ProcessedLessons  int      `json:"processed_lessons"`
	TotalTests        int      `json:"total_tests"`
	ProcessedTests    int      `json:"processed_tests"`
	CurrentItem       string   `json:"current_item"`
	Errors            []string `json:"errors"`
	Completed         bool     `json:"completed"`
	Cancelled         bool     `json:"cancelled"`
	Percentage        int      `json:"percentage"`
	Ctime             int64    `json:"-"`
	Mtime             int64    `json:"-"`
}

// JobMetadata pairs the capability token with the import it grants access
// to. Both must match on the token-based progress read path.
type JobMetadata struct {
	ImportID      string `json:"import_id"`
	ProgressToken string `json:"progress_token"`
	CourseID      string `json:"course_id"`
	DriveURL      string `json:"drive_url"`
}

type DriveImportJob struct {
	ID       string
	UserID   string
	Metadata JobMetadata
	Ctime    int64
	Mtime    int64
}
