package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/classtrack/lms/internal/model"
	"github.com/classtrack/lms/internal/pkg/errcode"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
	"github.com/classtrack/lms/internal/pkg/response"
	"github.com/classtrack/lms/internal/service"
)

type ImportHandler struct {
	imports  *service.ImportService
	progress *service.ProgressService
}

func NewImportHandler(imports *service.ImportService, progress *service.ProgressService) *ImportHandler {
	return &ImportHandler{imports: imports, progress: progress}
}

type triggerImportRequest struct {
	DriveURL string `json:"drive_url"`
}

// Trigger starts a background import of a drive folder into the course and
// returns the ids the client needs to poll progress, token included.
func (h *ImportHandler) Trigger(c *gin.Context) {
	courseID := c.Param("course_id")
	if courseID == "" {
		response.Error(c, errcode.ErrInvalid, "course_id required")
		return
	}
	var req triggerImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.DriveURL == "" {
		response.Error(c, errcode.ErrInvalid, "drive_url required")
		return
	}
	result, err := h.imports.Trigger(c.Request.Context(), getUserID(c), courseID, req.DriveURL)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// Preview runs one read-only listing pass. Pass cursor to continue a
// previous page of a large tree.
func (h *ImportHandler) Preview(c *gin.Context) {
	courseID := c.Param("course_id")
	driveURL := c.Query("drive_url")
	cursor := c.Query("cursor")
	if courseID == "" || (driveURL == "" && cursor == "") {
		response.Error(c, errcode.ErrInvalid, "course_id and drive_url required")
		return
	}
	result, err := h.imports.Preview(c.Request.Context(), getUserID(c), courseID, driveURL, cursor)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"summary":     result.Summary,
		"totals":      result.Totals,
		"tasks":       result.Tasks,
		"next_cursor": result.NextCursor,
	})
}

func (h *ImportHandler) GetProgress(c *gin.Context) {
	importID := c.Param("import_id")
	if importID == "" {
		response.Error(c, errcode.ErrInvalid, "import_id required")
		return
	}
	p, err := h.progress.GetForUser(c.Request.Context(), getUserID(c), importID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, p)
}

// GetPublicProgress serves polling without a session: the job id and the
// capability token minted at trigger time gate the read. A failed check
// answers with an error-shaped progress payload instead of leaking whether
// the import exists.
func (h *ImportHandler) GetPublicProgress(c *gin.Context) {
	importID := c.Param("import_id")
	jobID := c.Query("job_id")
	token := c.Query("token")
	p, err := h.progress.GetByToken(c.Request.Context(), importID, jobID, token)
	if err != nil {
		if errors.Is(err, appErr.ErrUnauthorized) || errors.Is(err, appErr.ErrNotFound) {
			response.Success(c, gin.H{
				"import_id":    importID,
				"phase":        model.PhaseError,
				"current_step": "access denied",
				"errors":       []string{"access denied"},
			})
			return
		}
		handleError(c, err)
		return
	}
	response.Success(c, p)
}

func (h *ImportHandler) Cancel(c *gin.Context) {
	importID := c.Param("import_id")
	if importID == "" {
		response.Error(c, errcode.ErrInvalid, "import_id required")
		return
	}
	if err := h.progress.Cancel(c.Request.Context(), getUserID(c), importID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ImportHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	items, err := h.progress.List(c.Request.Context(), getUserID(c), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"imports": items})
}
