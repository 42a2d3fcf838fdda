package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnswerKeyExtractorMarkdown(t *testing.T) {
	content := `# MAT0101 Teste

1. Quanto é 2+2?
2. Quanto é 3*3?
3. Quanto é 10/2?

## Gabarito

1 - A
2 - C
3 - B
`
	extractor := NewAnswerKeyExtractor(nil)
	result, err := extractor.Extract(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, result.Questions, 3)
	require.Equal(t, 1, result.Questions[0].Number)
	require.Equal(t, "Quanto é 2+2?", result.Questions[0].Text)
	require.Equal(t, map[string]string{"1": "A", "2": "C", "3": "B"}, result.AnswerKey)
}

func TestAnswerKeyExtractorEnglishHeading(t *testing.T) {
	content := "1. First question\n2. Second question\n\nAnswer Key\n1) B\n2) D\n"
	extractor := NewAnswerKeyExtractor(nil)
	result, err := extractor.Extract(context.Background(), content)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"1": "B", "2": "D"}, result.AnswerKey)
}

func TestAnswerKeyExtractorNoKey(t *testing.T) {
	content := "1. Lonely question without any key section\n"
	extractor := NewAnswerKeyExtractor(nil)
	result, err := extractor.Extract(context.Background(), content)
	require.ErrorIs(t, err, ErrNoAnswerKey)
	require.Len(t, result.Questions, 1)
	require.Empty(t, result.AnswerKey)
}

type fakeGenerator struct {
	reply string
	err   error
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.reply, g.err
}

func TestAnswerKeyExtractorAIFallback(t *testing.T) {
	extractor := NewAnswerKeyExtractor(&fakeGenerator{reply: `Here you go: {"1":"A","2":"E"}`})
	result, err := extractor.Extract(context.Background(), "free form test with no recognizable key")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"1": "A", "2": "E"}, result.AnswerKey)
}

func TestAnswerKeyExtractorAIFallbackFails(t *testing.T) {
	extractor := NewAnswerKeyExtractor(&fakeGenerator{err: errors.New("quota exceeded")})
	_, err := extractor.Extract(context.Background(), "free form test")
	require.ErrorIs(t, err, ErrNoAnswerKey)
}
