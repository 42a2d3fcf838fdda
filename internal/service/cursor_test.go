package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classtrack/lms/internal/model"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
)

func TestCursorRoundTrip(t *testing.T) {
	cursor := &ImportCursor{
		Pending: []dirFrame{
			{FolderID: "f1", FolderName: "MÓDULO 01", Depth: 1, PageToken: "page2", ChildIndex: 3,
				Module: &model.EntityRef{Name: "MÓDULO 01", Order: 1}},
		},
		Totals:    model.ImportTotals{Modules: 2, Subjects: 4, Lessons: 9, Tests: 1},
		ItemIndex: 16,
	}
	encoded, err := EncodeCursor(cursor)
	require.NoError(t, err)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	require.Equal(t, cursor.Totals, decoded.Totals)
	require.Equal(t, cursor.ItemIndex, decoded.ItemIndex)
	require.Len(t, decoded.Pending, 1)
	require.Equal(t, cursor.Pending[0].FolderID, decoded.Pending[0].FolderID)
	require.Equal(t, cursor.Pending[0].PageToken, decoded.Pending[0].PageToken)
	require.Equal(t, cursor.Pending[0].ChildIndex, decoded.Pending[0].ChildIndex)
	require.Equal(t, cursor.Pending[0].Module.Name, decoded.Pending[0].Module.Name)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("not base64 at all!!!")
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = DecodeCursor("bm90IGpzb24=")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
