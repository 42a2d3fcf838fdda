package drive_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classtrack/lms/internal/config"
	"github.com/classtrack/lms/internal/drive"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
)

func TestResolveFolderURL(t *testing.T) {
	id, err := drive.ResolveFolderURL("https://drive.google.com/drive/folders/1AbC_d-9xyz?usp=sharing")
	require.NoError(t, err)
	require.Equal(t, "1AbC_d-9xyz", id)

	id, err = drive.ResolveFolderURL("https://drive.google.com/open?id=FOLDER42")
	require.NoError(t, err)
	require.Equal(t, "FOLDER42", id)

	for _, bad := range []string{
		"",
		"not a url",
		"https://example.com/drive/folders/abc",
		"https://drive.google.com/file/d/xyz/view",
	} {
		_, err = drive.ResolveFolderURL(bad)
		require.ErrorIs(t, err, appErr.ErrInvalidSource, "url %q", bad)
	}
}

func TestListFolderPagination(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/files", r.URL.Path)
		require.Contains(t, r.URL.Query().Get("q"), "'root-folder' in parents")
		resp := map[string]interface{}{
			"files": []map[string]string{{"id": "f1", "name": "MAT02", "mimeType": drive.MimeFolder}},
		}
		if r.URL.Query().Get("pageToken") == "" {
			resp["nextPageToken"] = "page-2"
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := drive.NewClient(config.DriveConfig{
		APIBaseURL:  server.URL,
		APIKey:      "test-key",
		PageSize:    10,
		TimeoutSec:  5,
		CacheSize:   1,
		CacheTTLSec: 1,
	})

	page, err := client.ListFolder(context.Background(), "root-folder", "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "page-2", page.NextPageToken)
	require.True(t, page.Items[0].IsFolder())

	page, err = client.ListFolder(context.Background(), "root-folder", "page-2")
	require.NoError(t, err)
	require.Empty(t, page.NextPageToken)
	require.Equal(t, 2, calls)
}

func TestListFolderCachesPages(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"files": []map[string]string{}})
	}))
	defer server.Close()

	client := drive.NewClient(config.DriveConfig{
		APIBaseURL:  server.URL,
		APIKey:      "test-key",
		PageSize:    10,
		TimeoutSec:  5,
		CacheSize:   8,
		CacheTTLSec: 60,
	})
	_, err := client.ListFolder(context.Background(), "folder", "")
	require.NoError(t, err)
	_, err = client.ListFolder(context.Background(), "folder", "")
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestListFolderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := drive.NewClient(config.DriveConfig{
		APIBaseURL: server.URL, APIKey: "k", PageSize: 10, TimeoutSec: 5, CacheSize: 1, CacheTTLSec: 1,
	})
	_, err := client.ListFolder(context.Background(), "folder", "")
	require.ErrorIs(t, err, appErr.ErrSourceListing)
}
