package model

type Course struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Ctime   int64  `json:"ctime"`
	Mtime   int64  `json:"mtime"`
}

// CourseModule is the top curriculum level. Code is the structural
// letters+2-digits identifier when the source folder name carried one.
type CourseModule struct {
	ID       string
	CourseID string
	Code     string
	Name     string
	Position int
	Ctime    int64
	Mtime    int64
}

type Subject struct {
	ID       string
	CourseID string
	ModuleID string
	Code     string
	Name     string
	Position int
	Ctime    int64
	Mtime    int64
}

type Lesson struct {
	ID          string
	CourseID    string
	SubjectID   string
	Code        string
	Name        string
	ContentType string
	ContentURL  string
	Position    int
	Ctime       int64
	Mtime       int64
}

type TestQuestion struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type Test struct {
	ID                      string
	CourseID                string
	SubjectID               string
	Code                    string
	Name                    string
	ContentType             string
	ContentURL              string
	Questions               []TestQuestion
	AnswerKey               map[string]string
	RequiresManualAnswerKey bool
	Position                int
	Ctime                   int64
	Mtime                   int64
}
