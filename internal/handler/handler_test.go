package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/lms/internal/drive"
	"github.com/classtrack/lms/internal/handler"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
	"github.com/classtrack/lms/internal/repo"
	"github.com/classtrack/lms/internal/runner"
	"github.com/classtrack/lms/internal/service"
	"github.com/classtrack/lms/internal/testutil"
)

type stubDrive struct{}

func (stubDrive) ListFolder(ctx context.Context, folderID, pageToken string) (*drive.FolderPage, error) {
	if folderID != "root" {
		return &drive.FolderPage{}, nil
	}
	return &drive.FolderPage{Items: []drive.RemoteItem{
		{ID: "m1", Name: "MAT01 - Matemática", MimeType: drive.MimeFolder},
	}}, nil
}

func (stubDrive) ExportText(ctx context.Context, fileID string) (string, error) {
	return "", appErr.ErrNotFound
}

func (stubDrive) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	return nil, appErr.ErrNotFound
}

func setupRouter(t *testing.T) (*gin.Engine, func()) {
	t.Helper()
	conn, cleanup := testutil.OpenTestDB(t)

	secret := []byte("test-secret")
	userRepo := repo.NewUserRepo(conn)
	courseRepo := repo.NewCourseRepo(conn)
	moduleRepo := repo.NewCourseModuleRepo(conn)
	subjectRepo := repo.NewSubjectRepo(conn)
	lessonRepo := repo.NewLessonRepo(conn)
	testRepo := repo.NewTestRepo(conn)
	progressRepo := repo.NewImportProgressRepo(conn)
	jobRepo := repo.NewDriveImportJobRepo(conn)

	client := stubDrive{}
	progressService := service.NewProgressService(progressRepo, jobRepo)
	builder := service.NewTaskListService(client, moduleRepo, subjectRepo, lessonRepo, testRepo, service.NewAnswerKeyExtractor(nil), 100)
	importService := service.NewImportService(service.ImportServiceParams{
		Courses:  courseRepo,
		Modules:  moduleRepo,
		Subjects: subjectRepo,
		Lessons:  lessonRepo,
		Tests:    testRepo,
		Jobs:     jobRepo,
		Locker:   repo.NewCourseLocker(conn),
		Progress: progressService,
		Builder:  builder,
		Drive:    client,
		MaxTasks: 50,
	})
	importRunner := runner.New(importService, 8, 3)
	importService.AttachRunner(importRunner)
	importRunner.Start()

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(service.NewAuthService(userRepo, secret, time.Hour)),
		Courses:   handler.NewCourseHandler(service.NewCourseService(courseRepo)),
		Imports:   handler.NewImportHandler(importService, progressService),
		JWTSecret: secret,
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/v1"), deps)
	return router, func() {
		importRunner.Stop()
		cleanup()
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

type apiEnvelope struct {
	Code uint32          `json:"code"`
	Data json.RawMessage `json:"data"`
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope apiEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.Zero(t, envelope.Code, "api error: %s", resp.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestImportEndToEndOverHTTP(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	resp := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "teacher@example.com", "password": "super-secret",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	var registered struct {
		Token string `json:"token"`
	}
	decodeData(t, resp, &registered)
	require.NotEmpty(t, registered.Token)

	resp = doJSON(t, router, http.MethodPost, "/api/v1/courses", registered.Token, gin.H{"name": "Curso"})
	require.Equal(t, http.StatusOK, resp.Code)
	var course struct {
		ID string `json:"id"`
	}
	decodeData(t, resp, &course)
	require.NotEmpty(t, course.ID)

	resp = doJSON(t, router, http.MethodPost, "/api/v1/courses/"+course.ID+"/imports", registered.Token, gin.H{
		"drive_url": "https://drive.google.com/drive/folders/root",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	var triggered struct {
		ImportID      string `json:"import_id"`
		JobID         string `json:"job_id"`
		ProgressToken string `json:"progress_token"`
	}
	decodeData(t, resp, &triggered)
	require.NotEmpty(t, triggered.ProgressToken)

	deadline := time.Now().Add(10 * time.Second)
	for {
		url := fmt.Sprintf("/api/v1/public/imports/%s?job_id=%s&token=%s",
			triggered.ImportID, triggered.JobID, triggered.ProgressToken)
		resp = doJSON(t, router, http.MethodGet, url, "", nil)
		require.Equal(t, http.StatusOK, resp.Code)
		var progress struct {
			Phase     string `json:"phase"`
			Completed bool   `json:"completed"`
		}
		decodeData(t, resp, &progress)
		if progress.Completed {
			require.Equal(t, "completed", progress.Phase)
			break
		}
		require.True(t, time.Now().Before(deadline), "import did not finish in time")
		time.Sleep(50 * time.Millisecond)
	}

	// session read path
	resp = doJSON(t, router, http.MethodGet, "/api/v1/imports/"+triggered.ImportID, registered.Token, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(t, router, http.MethodGet, "/api/v1/imports", registered.Token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestPublicProgressDenialShape(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	resp := doJSON(t, router, http.MethodGet, "/api/v1/public/imports/unknown?job_id=nope&token=bad", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var denial struct {
		Phase       string   `json:"phase"`
		CurrentStep string   `json:"current_step"`
		Errors      []string `json:"errors"`
	}
	decodeData(t, resp, &denial)
	require.Equal(t, "error", denial.Phase)
	require.Equal(t, "access denied", denial.CurrentStep)
	require.NotEmpty(t, denial.Errors)
}

func TestImportsRequireAuth(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	resp := doJSON(t, router, http.MethodGet, "/api/v1/imports", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var envelope apiEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NotZero(t, envelope.Code)
}
