package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/classtrack/lms/internal/config"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
)

const MimeFolder = "application/vnd.google-apps.folder"
const MimeGoogleDoc = "application/vnd.google-apps.document"

// RemoteItem is one entry of a remote folder as the drive API reports it.
// Ephemeral, never persisted.
type RemoteItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

func (i RemoteItem) IsFolder() bool {
	return i.MimeType == MimeFolder
}

type FolderPage struct {
	Items         []RemoteItem
	NextPageToken string
}

// Client is the narrow surface the import engine needs from the external
// document-storage service.
type Client interface {
	ListFolder(ctx context.Context, folderID, pageToken string) (*FolderPage, error)
	ExportText(ctx context.Context, fileID string) (string, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
}

var folderURLRegexes = []*regexp.Regexp{
	regexp.MustCompile(`/folders/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`[?&]id=([A-Za-z0-9_-]+)`),
}

// ResolveFolderURL extracts the folder identifier from a shared-folder URL.
func ResolveFolderURL(driveURL string) (string, error) {
	trimmed := strings.TrimSpace(driveURL)
	if trimmed == "" {
		return "", appErr.ErrInvalidSource
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return "", appErr.ErrInvalidSource
	}
	if !strings.HasSuffix(parsed.Host, "drive.google.com") {
		return "", appErr.ErrInvalidSource
	}
	for _, re := range folderURLRegexes {
		if match := re.FindStringSubmatch(trimmed); match != nil {
			return match[1], nil
		}
	}
	return "", appErr.ErrInvalidSource
}

// FileViewURL is the stable browser URL for a remote file. Used as the
// lesson/test content URL unless mirroring replaces it.
func FileViewURL(fileID string) string {
	return "https://drive.google.com/file/d/" + fileID + "/view"
}

type httpClient struct {
	baseURL  string
	apiKey   string
	pageSize int
	client   *http.Client
	cache    *expirable.LRU[string, *FolderPage]
}

func NewClient(cfg config.DriveConfig) Client {
	return &httpClient{
		baseURL:  strings.TrimSuffix(cfg.APIBaseURL, "/"),
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		cache:    expirable.NewLRU[string, *FolderPage](cfg.CacheSize, nil, time.Duration(cfg.CacheTTLSec)*time.Second),
	}
}

type listResponse struct {
	NextPageToken string       `json:"nextPageToken"`
	Files         []RemoteItem `json:"files"`
}

func (c *httpClient) ListFolder(ctx context.Context, folderID, pageToken string) (*FolderPage, error) {
	cacheKey := folderID + "|" + pageToken
	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			logutil.GetLogger(ctx).Debug("drive listing cache hit", zap.String("folder_id", folderID))
			return cached, nil
		}
	}
	params := url.Values{}
	params.Set("q", fmt.Sprintf("'%s' in parents and trashed = false", folderID))
	params.Set("pageSize", strconv.Itoa(c.pageSize))
	params.Set("fields", "nextPageToken,files(id,name,mimeType)")
	params.Set("orderBy", "name")
	params.Set("key", c.apiKey)
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	body, err := c.get(ctx, c.baseURL+"/files?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrSourceListing, err)
	}
	defer func() { _ = body.Close() }()
	var out listResponse
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode listing: %v", appErr.ErrSourceListing, err)
	}
	page := &FolderPage{Items: out.Files, NextPageToken: out.NextPageToken}
	if c.cache != nil {
		c.cache.Add(cacheKey, page)
	}
	return page, nil
}

func (c *httpClient) ExportText(ctx context.Context, fileID string) (string, error) {
	params := url.Values{}
	params.Set("mimeType", "text/plain")
	params.Set("key", c.apiKey)
	body, err := c.get(ctx, c.baseURL+"/files/"+url.PathEscape(fileID)+"/export?"+params.Encode())
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()
	content, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func (c *httpClient) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	params := url.Values{}
	params.Set("alt", "media")
	params.Set("key", c.apiKey)
	return c.get(ctx, c.baseURL+"/files/"+url.PathEscape(fileID)+"?"+params.Encode())
}

func (c *httpClient) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("drive request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return resp.Body, nil
}
