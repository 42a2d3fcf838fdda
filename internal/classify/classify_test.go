package classify_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classtrack/lms/internal/classify"
)

func TestClassifyLesson(t *testing.T) {
	c := classify.Classify("MAT020101_Intro.pdf")
	require.Equal(t, classify.LevelLesson, c.Level)
	require.Equal(t, "MAT020101", c.Code)
	require.Equal(t, "MAT", c.Prefix)

	c = classify.Classify("F010203 Kinematics.mp4")
	require.Equal(t, classify.LevelLesson, c.Level)
	require.Equal(t, "F010203", c.Code)
}

func TestClassifySubject(t *testing.T) {
	c := classify.Classify("MAT0201_Algebra")
	require.Equal(t, classify.LevelSubject, c.Level)
	require.Equal(t, "MAT0201", c.Code)
	require.Equal(t, "MAT", c.Prefix)
}

func TestClassifyModule(t *testing.T) {
	c := classify.Classify("MAT02 Matemática")
	require.Equal(t, classify.LevelModule, c.Level)
	require.Equal(t, "MAT02", c.Code)
}

func TestClassifyTestMarkerWinsOverNumericPattern(t *testing.T) {
	c := classify.Classify("MAT020101 Teste de Álgebra")
	require.Equal(t, classify.LevelTest, c.Level)
	require.Equal(t, "MAT020101", c.Code)

	c = classify.Classify("Teste Final Módulo 1")
	require.Equal(t, classify.LevelTest, c.Level)
	require.Empty(t, c.Code)
	require.Empty(t, c.Prefix)

	c = classify.Classify("TESTE surpresa")
	require.Equal(t, classify.LevelTest, c.Level)
}

func TestClassifyUnknown(t *testing.T) {
	require.Equal(t, classify.LevelUnknown, classify.Classify("MÓDULO 01").Level)
	require.Equal(t, classify.LevelUnknown, classify.Classify("notas.txt").Level)
	// 3- and 5-digit codes are unsupported, never guessed
	require.Equal(t, classify.LevelUnknown, classify.Classify("MAT021 meio termo").Level)
	require.Equal(t, classify.LevelUnknown, classify.Classify("MAT02010 meio termo").Level)
}

func TestClassifyPrefixIffCode(t *testing.T) {
	for _, name := range []string{"MAT020101_Intro", "MAT0201", "MAT02", "MÓDULO 01", "Teste Final", "x"} {
		c := classify.Classify(name)
		require.Equal(t, c.Code == "", c.Prefix == "", "name %q", name)
	}
}

func TestExtractCode(t *testing.T) {
	require.Equal(t, "MAT020101", classify.ExtractCode("MAT020101_Intro.pdf"))
	require.Equal(t, "AB12", classify.ExtractCode("  AB12 something"))
	require.Empty(t, classify.ExtractCode("12AB"))
	require.Empty(t, classify.ExtractCode("ABCDE12"))
	require.Empty(t, classify.ExtractCode("MAT0 too few digits"))
}

func TestParentCode(t *testing.T) {
	parent, err := classify.ParentCode("MAT020101")
	require.NoError(t, err)
	require.Equal(t, "MAT0201", parent)

	parent, err = classify.ParentCode("MAT0201")
	require.NoError(t, err)
	require.Equal(t, "MAT02", parent)

	parent, err = classify.ParentCode("MAT02")
	require.NoError(t, err)
	require.Empty(t, parent)

	_, err = classify.ParentCode("MAT021")
	require.ErrorIs(t, err, classify.ErrUnsupportedCode)
	_, err = classify.ParentCode("MAT02010")
	require.ErrorIs(t, err, classify.ErrUnsupportedCode)
}

func TestOrder(t *testing.T) {
	require.Equal(t, 201, classify.Order("MAT0201 Álgebra"))
	require.Equal(t, 1, classify.Order("MÓDULO 01"))
	require.Equal(t, 0, classify.Order("Introdução"))
}
