package model

// Task types, one per curriculum level.
const (
	TaskTypeModule  = "module"
	TaskTypeSubject = "subject"
	TaskTypeLesson  = "lesson"
	TaskTypeTest    = "test"
)

// EntityRef points at a module or subject inside a task. ExistingID is set
// when an entity with the same structural code already exists for the
// course, turning the task into an update.
type EntityRef struct {
	OriginalIndex int    `json:"original_index"`
	Name          string `json:"name"`
	Code          string `json:"code,omitempty"`
	Order         int    `json:"order"`
	ExistingID    string `json:"existing_id,omitempty"`
}

type LessonRef struct {
	OriginalIndex int    `json:"original_index"`
	Name          string `json:"name"`
	Code          string `json:"code,omitempty"`
	Order         int    `json:"order"`
	ExistingID    string `json:"existing_id,omitempty"`
	FileID        string `json:"file_id"`
	ContentType   string `json:"content_type"`
	ContentURL    string `json:"content_url"`
}

type TestRef struct {
	OriginalIndex           int               `json:"original_index"`
	Name                    string            `json:"name"`
	Code                    string            `json:"code,omitempty"`
	Order                   int               `json:"order"`
	ExistingID              string            `json:"existing_id,omitempty"`
	FileID                  string            `json:"file_id"`
	ContentType             string            `json:"content_type"`
	ContentURL              string            `json:"content_url"`
	Questions               []TestQuestion    `json:"questions,omitempty"`
	AnswerKey               map[string]string `json:"answer_key,omitempty"`
	RequiresManualAnswerKey bool              `json:"requires_manual_answer_key,omitempty"`
}

// ImportTask is one unit of import work. Type selects which refs are set:
// every task carries Module; non-module tasks carry Subject; lesson and test
// tasks additionally carry their own ref.
type ImportTask struct {
	ID      string     `json:"id"`
	Type    string     `json:"type"`
	Module  *EntityRef `json:"module"`
	Subject *EntityRef `json:"subject,omitempty"`
	Lesson  *LessonRef `json:"lesson,omitempty"`
	Test    *TestRef   `json:"test,omitempty"`
}

// ImportTotals are per-level item counts for the whole tree discovered so
// far. They accumulate monotonically across cursor-resumed listing calls.
type ImportTotals struct {
	Modules  int `json:"modules"`
	Subjects int `json:"subjects"`
	Lessons  int `json:"lessons"`
	Tests    int `json:"tests"`
}

func (t ImportTotals) Sum() int {
	return t.Modules + t.Subjects + t.Lessons + t.Tests
}

// ImportSummary reports what one listing pass saw, warnings included.
// Unknown items are counted here, never silently dropped.
type ImportSummary struct {
	Modules  int      `json:"modules"`
	Subjects int      `json:"subjects"`
	Lessons  int      `json:"lessons"`
	Tests    int      `json:"tests"`
	Unknown  int      `json:"unknown"`
	Warnings []string `json:"warnings"`
}
