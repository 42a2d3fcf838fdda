package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/classtrack/lms/internal/ai"
	"github.com/classtrack/lms/internal/model"
)

// ErrNoAnswerKey means the document yielded no usable answer key; the test
// must be created with the manual flag instead of being skipped.
var ErrNoAnswerKey = errors.New("no answer key found")

type AnswerKeyResult struct {
	Questions []model.TestQuestion
	AnswerKey map[string]string
}

// AnswerKeyExtractor pulls questions and the answer key out of a test
// document exported as markdown/plain text. The markdown walk handles the
// conventional layout (numbered questions, trailing key section); the
// optional AI generator is a fallback for free-form documents.
type AnswerKeyExtractor struct {
	gen ai.IGenerator
}

func NewAnswerKeyExtractor(gen ai.IGenerator) *AnswerKeyExtractor {
	return &AnswerKeyExtractor{gen: gen}
}

var (
	keyHeadingRegex = regexp.MustCompile(`(?i)\b(gabarito|answer\s*key|respostas)\b`)
	answerLineRegex = regexp.MustCompile(`(?m)^\s*(\d{1,3})\s*[-.):]\s*([A-Ea-e])\b`)
	questionRegex   = regexp.MustCompile(`(?m)^\s*(\d{1,3})\s*[-.)]\s+(.+)$`)
)

func (e *AnswerKeyExtractor) Extract(ctx context.Context, content string) (*AnswerKeyResult, error) {
	result := &AnswerKeyResult{
		Questions: parseQuestions(content),
		AnswerKey: parseAnswerKey(content),
	}
	if len(result.AnswerKey) > 0 {
		return result, nil
	}
	if e.gen != nil {
		key, err := e.aiFallback(ctx, content)
		if err == nil && len(key) > 0 {
			result.AnswerKey = key
			return result, nil
		}
	}
	return result, ErrNoAnswerKey
}

// parseQuestions walks the markdown AST and collects ordered-list items;
// plain numbered lines are picked up as a fallback for text exports that
// carry no list markup.
func parseQuestions(content string) []model.TestQuestion {
	source := []byte(content)
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var questions []model.TestQuestion
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		list, ok := node.(*ast.List)
		if !ok || !list.IsOrdered() {
			continue
		}
		number := list.Start
		if number == 0 {
			number = 1
		}
		for item := list.FirstChild(); item != nil; item = item.NextSibling() {
			itemText := strings.TrimSpace(nodeText(item, source))
			if itemText == "" {
				continue
			}
			questions = append(questions, model.TestQuestion{Number: number, Text: itemText})
			number++
		}
	}
	if len(questions) > 0 {
		return questions
	}
	body := content
	if loc := keyHeadingRegex.FindStringIndex(content); loc != nil {
		body = content[:loc[0]]
	}
	for _, match := range questionRegex.FindAllStringSubmatch(body, -1) {
		num, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		questions = append(questions, model.TestQuestion{Number: num, Text: strings.TrimSpace(match[2])})
	}
	return questions
}

// parseAnswerKey reads "N - X" lines after the key heading.
func parseAnswerKey(content string) map[string]string {
	loc := keyHeadingRegex.FindStringIndex(content)
	if loc == nil {
		return nil
	}
	section := content[loc[1]:]
	key := make(map[string]string)
	for _, match := range answerLineRegex.FindAllStringSubmatch(section, -1) {
		key[match[1]] = strings.ToUpper(match[2])
	}
	if len(key) == 0 {
		return nil
	}
	return key
}

func (e *AnswerKeyExtractor) aiFallback(ctx context.Context, content string) (map[string]string, error) {
	prompt := "Extract the answer key from the following test document. " +
		"Answer with a single JSON object mapping question numbers to the correct letter, " +
		"for example {\"1\":\"A\",\"2\":\"C\"}. Answer with {} if there is no answer key.\n\n" + content
	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, ErrNoAnswerKey
	}
	key := make(map[string]string)
	if err := json.Unmarshal([]byte(raw[start:end+1]), &key); err != nil {
		return nil, ErrNoAnswerKey
	}
	return key, nil
}

func nodeText(node ast.Node, source []byte) string {
	var builder strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if textNode, ok := n.(*ast.Text); ok {
			builder.Write(textNode.Segment.Value(source))
			if textNode.SoftLineBreak() || textNode.HardLineBreak() {
				builder.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return builder.String()
}
