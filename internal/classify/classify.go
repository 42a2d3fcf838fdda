package classify

import (
	"errors"
	"regexp"
	"strings"
)

// Level is the curriculum level encoded in an item's name.
type Level string

const (
	LevelModule  Level = "module"
	LevelSubject Level = "subject"
	LevelLesson  Level = "lesson"
	LevelTest    Level = "test"
	LevelUnknown Level = "unknown"
)

// digit count of a structural code at each level
const (
	moduleDigits  = 2
	subjectDigits = 4
	lessonDigits  = 6
)

var ErrUnsupportedCode = errors.New("unsupported structural code")

var (
	codeRegex   = regexp.MustCompile(`^([A-Za-z]{1,4})(\d{2,6})`)
	prefixRegex = regexp.MustCompile(`^[A-Za-z]+`)
)

type Classification struct {
	Level  Level  `json:"level"`
	Code   string `json:"code,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// Classify maps an item name to its curriculum level. The test marker wins
// over any numeric pattern; after that the digit length of the structural
// code decides the level. Lengths other than 2/4/6 are not guessed.
func Classify(name string) Classification {
	trimmed := strings.TrimSpace(name)
	code := ExtractCode(trimmed)
	prefix := ExtractPrefix(code)
	if strings.Contains(strings.ToLower(trimmed), "test") {
		return Classification{Level: LevelTest, Code: code, Prefix: prefix}
	}
	if code == "" {
		return Classification{Level: LevelUnknown}
	}
	switch len(code) - len(prefix) {
	case lessonDigits:
		return Classification{Level: LevelLesson, Code: code, Prefix: prefix}
	case subjectDigits:
		return Classification{Level: LevelSubject, Code: code, Prefix: prefix}
	case moduleDigits:
		return Classification{Level: LevelModule, Code: code, Prefix: prefix}
	default:
		return Classification{Level: LevelUnknown}
	}
}

// ExtractCode returns the leading letters+digits run of the name, or "" when
// the name does not start with one.
func ExtractCode(name string) string {
	return codeRegex.FindString(strings.TrimSpace(name))
}

// ExtractPrefix strips the digits off a structural code.
func ExtractPrefix(code string) string {
	return prefixRegex.FindString(code)
}

// ParentCode derives the code of the structural parent: a lesson code yields
// its subject code, a subject code its module code. Modules have no parent
// and return "". Codes with other digit lengths are rejected.
func ParentCode(code string) (string, error) {
	prefix := ExtractPrefix(code)
	digits := code[len(prefix):]
	switch len(digits) {
	case lessonDigits:
		return prefix + digits[:subjectDigits], nil
	case subjectDigits:
		return prefix + digits[:moduleDigits], nil
	case moduleDigits:
		return "", nil
	default:
		return "", ErrUnsupportedCode
	}
}

// Order returns the numeric ordering implied by a name: the digits of its
// structural code when present, otherwise the last standalone digit run
// ("MÓDULO 01" orders as 1). Returns 0 when the name implies no order.
func Order(name string) int {
	code := ExtractCode(name)
	if code != "" {
		return atoiDigits(code[len(ExtractPrefix(code)):])
	}
	runs := trailingDigitsRegex.FindAllString(name, -1)
	if len(runs) == 0 {
		return 0
	}
	return atoiDigits(runs[len(runs)-1])
}

var trailingDigitsRegex = regexp.MustCompile(`\d+`)

func atoiDigits(digits string) int {
	value := 0
	for _, r := range digits {
		value = value*10 + int(r-'0')
	}
	return value
}
