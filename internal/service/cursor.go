package service

import (
	"encoding/base64"
	"encoding/json"

	"github.com/classtrack/lms/internal/model"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
)

// dirFrame is one directory the builder still has to enumerate. Module and
// Subject carry the enclosing curriculum context for items found inside.
type dirFrame struct {
	FolderID   string           `json:"folder_id"`
	FolderName string           `json:"folder_name"`
	Depth      int              `json:"depth"`
	Module     *model.EntityRef `json:"module,omitempty"`
	Subject    *model.EntityRef `json:"subject,omitempty"`
	PageToken  string           `json:"page_token,omitempty"`
	ChildIndex int              `json:"child_index,omitempty"`
}

// ImportCursor captures everything a partially-completed listing needs to
// resume: the remaining directory worklist and the running totals for the
// tree discovered so far. Transported opaquely as base64-encoded JSON.
type ImportCursor struct {
	Pending   []dirFrame         `json:"pending"`
	Totals    model.ImportTotals `json:"totals"`
	Processed model.ImportTotals `json:"processed"`
	ItemIndex int                `json:"item_index"`
}

func EncodeCursor(cursor *ImportCursor) (string, error) {
	data, err := json.Marshal(cursor)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func DecodeCursor(encoded string) (*ImportCursor, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, appErr.ErrInvalid
	}
	var cursor ImportCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, appErr.ErrInvalid
	}
	return &cursor, nil
}
