// Package gdrive implements storage.Backend on top of the Google Drive v3 REST API.
package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/mrlokans/mimeroute/internal/oauth2"
	"github.com/mrlokans/mimeroute/internal/storage"
)

const (
	DefaultAPIURL       = "https://www.googleapis.com/drive/v3"
	DefaultUploadURL    = "https://www.googleapis.com/upload/drive/v3"
	DefaultThumbnailURL = "https://drive.google.com/thumbnail"
)

// ErrNoFileID is returned when a copy or upload succeeds without naming the new file.
var ErrNoFileID = errors.New("response has no file id")

// Client implements storage.Backend and storage.ThumbnailSource for Google Drive
type Client struct {
	tokenSource  oauth2.TokenSource
	httpClient   *http.Client
	apiURL       string
	uploadURL    string
	thumbnailURL string
}

// Option configures a Client.
type Option func(*Client)

// WithAPIURL overrides the Drive v3 metadata endpoint.
func WithAPIURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.apiURL = u
		}
	}
}

// WithUploadURL overrides the Drive v3 upload endpoint.
func WithUploadURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.uploadURL = u
		}
	}
}

// WithThumbnailURL overrides the thumbnail endpoint.
func WithThumbnailURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.thumbnailURL = u
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a new Google Drive storage client
func NewClient(tokenSource oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		tokenSource: tokenSource,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		apiURL:       DefaultAPIURL,
		uploadURL:    DefaultUploadURL,
		thumbnailURL: DefaultThumbnailURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends req with the bearer token and returns the response body.
// Any status other than 200 or 204 becomes a *storage.BackendError.
func (c *Client) do(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if !storage.IsSuccess(resp.StatusCode) {
		return nil, &storage.BackendError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, op, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(ctx, op, req)
}

func (c *Client) fileURL(fileID string, query url.Values) string {
	return c.apiURL + "/files/" + url.PathEscape(fileID) + "?" + query.Encode()
}

func (c *Client) Capabilities(ctx context.Context) (*storage.Capabilities, error) {
	query := url.Values{}
	query.Set("fields", "importFormats,exportFormats")

	body, err := c.get(ctx, "about", c.apiURL+"/about?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var caps storage.Capabilities
	if len(bytes.TrimSpace(body)) == 0 {
		return &caps, nil
	}
	if err := json.Unmarshal(body, &caps); err != nil {
		return nil, fmt.Errorf("failed to decode formats: %w", err)
	}
	return &caps, nil
}

type fileResource struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

func (c *Client) Metadata(ctx context.Context, fileID string) (*storage.FileRef, error) {
	query := url.Values{}
	query.Set("fields", "id,name,mimeType")
	query.Set("supportsAllDrives", "true")

	body, err := c.get(ctx, "metadata", c.fileURL(fileID, query))
	if err != nil {
		return nil, err
	}

	var f fileResource
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("failed to decode file metadata: %w", err)
	}
	if f.ID == "" {
		f.ID = fileID
	}
	return &storage.FileRef{ID: f.ID, Name: f.Name, MIMEType: f.MimeType}, nil
}

type fileMetadata struct {
	Name     string   `json:"name,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents,omitempty"`
}

func parents(parentID string) []string {
	if parentID == "" {
		return nil
	}
	return []string{parentID}
}

func (c *Client) CopyWithRetype(ctx context.Context, fileID, name, targetType, parentID string) (string, error) {
	payload, err := json.Marshal(fileMetadata{Name: name, MimeType: targetType, Parents: parents(parentID)})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	query := url.Values{}
	query.Set("supportsAllDrives", "true")
	u := c.apiURL + "/files/" + url.PathEscape(fileID) + "/copy?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(ctx, "copy", req)
	if err != nil {
		return "", err
	}

	var f fileResource
	if err := json.Unmarshal(body, &f); err != nil {
		return "", fmt.Errorf("failed to decode copy response: %w", err)
	}
	if f.ID == "" {
		return "", fmt.Errorf("copy: %w", ErrNoFileID)
	}
	return f.ID, nil
}

func (c *Client) ExportLink(ctx context.Context, fileID, targetType string) (string, error) {
	query := url.Values{}
	query.Set("fields", "exportLinks")
	query.Set("supportsAllDrives", "true")

	body, err := c.get(ctx, "export_link", c.fileURL(fileID, query))
	if err != nil {
		return "", err
	}

	var resp struct {
		ExportLinks map[string]string `json:"exportLinks"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode export links: %w", err)
	}

	link, ok := resp.ExportLinks[targetType]
	if !ok || link == "" {
		return "", fmt.Errorf("%w: %s", storage.ErrNoExportLink, targetType)
	}
	return link, nil
}

func (c *Client) FetchContent(ctx context.Context, link string) ([]byte, error) {
	return c.get(ctx, "fetch", link)
}

// CreateFile uploads blob with a multipart/related request so that metadata
// and content are sent in one round trip.
func (c *Client) CreateFile(ctx context.Context, blob storage.Blob, parentID string) (string, error) {
	meta, err := json.Marshal(fileMetadata{Name: blob.Name, MimeType: blob.ContentType, Parents: parents(parentID)})
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := mw.CreatePart(metaHeader)
	if err != nil {
		return "", fmt.Errorf("failed to create metadata part: %w", err)
	}
	if _, err := part.Write(meta); err != nil {
		return "", fmt.Errorf("failed to write metadata part: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", blob.ContentType)
	part, err = mw.CreatePart(mediaHeader)
	if err != nil {
		return "", fmt.Errorf("failed to create media part: %w", err)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return "", fmt.Errorf("failed to write media part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	query := url.Values{}
	query.Set("uploadType", "multipart")
	query.Set("supportsAllDrives", "true")
	query.Set("fields", "id")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL+"/files?"+query.Encode(), &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	body, err := c.do(ctx, "create", req)
	if err != nil {
		return "", err
	}

	var f fileResource
	if err := json.Unmarshal(body, &f); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if f.ID == "" {
		return "", fmt.Errorf("upload: %w", ErrNoFileID)
	}
	return f.ID, nil
}

func (c *Client) Delete(ctx context.Context, fileID string) error {
	query := url.Values{}
	query.Set("supportsAllDrives", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.fileURL(fileID, query), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	_, err = c.do(ctx, "delete", req)
	var be *storage.BackendError
	if errors.As(err, &be) && be.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	query := url.Values{}
	query.Set("alt", "media")
	query.Set("supportsAllDrives", "true")

	return c.get(ctx, "download", c.fileURL(fileID, query))
}

func (c *Client) Thumbnail(ctx context.Context, fileID string, width int) ([]byte, error) {
	query := url.Values{}
	query.Set("sz", "w"+strconv.Itoa(width))
	query.Set("id", fileID)

	return c.get(ctx, "thumbnail", c.thumbnailURL+"?"+query.Encode())
}

var (
	_ storage.Backend         = (*Client)(nil)
	_ storage.ThumbnailSource = (*Client)(nil)
)
