package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	apierrors "github.com/diogo/agentchat/internal/errors"
	"github.com/diogo/agentchat/internal/models"
)

// MaxUploadSize mirrors the backend's limit
const MaxUploadSize = 20 * 1024 * 1024 // 20MB

// AllowedMIMETypes returns the upload types the backend accepts
func AllowedMIMETypes() []string {
	return []string{
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain",
	}
}

// Uploader pushes files to the upload collaborator and resolves durable
// URLs for them
type Uploader struct {
	client *Client
}

// NewUploader creates an uploader over the given client
func NewUploader(client *Client) *Uploader {
	return &Uploader{client: client}
}

// UploadFile uploads one file from disk and returns the attachment with
// its durable URL resolved
func (u *Uploader) UploadFile(ctx context.Context, filePath string) (*models.FileAttachment, error) {
	fileName := filepath.Base(filePath)

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, apierrors.NewUploadError(fileName, "cannot stat file", err)
	}
	if info.Size() > MaxUploadSize {
		return nil, apierrors.NewUploadError(fileName, "file exceeds 20MB limit", nil)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(filePath))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !isAllowedType(mimeType) {
		return nil, apierrors.NewUploadError(fileName, "unsupported file type "+mimeType, nil)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, apierrors.NewUploadError(fileName, "cannot open file", err)
	}
	defer f.Close()

	return u.UploadReader(ctx, f, fileName, mimeType)
}

// UploadReader uploads from a reader. The whole exchange aborts on a
// failed upload, so the error names the file.
func (u *Uploader) UploadReader(ctx context.Context, r io.Reader, fileName, mimeType string) (*models.FileAttachment, error) {
	if !isAllowedType(mimeType) {
		return nil, apierrors.NewUploadError(fileName, "unsupported file type "+mimeType, nil)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, apierrors.NewUploadError(fileName, "cannot build form", err)
	}
	if _, err := io.Copy(part, io.LimitReader(r, MaxUploadSize+1)); err != nil {
		return nil, apierrors.NewUploadError(fileName, "cannot read data", err)
	}
	if body.Len() > MaxUploadSize {
		return nil, apierrors.NewUploadError(fileName, "data exceeds 20MB limit", nil)
	}
	_ = writer.Close()

	endpoint := u.client.baseURL + models.PathUpload
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, apierrors.NewUploadError(fileName, "cannot build request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.client.httpClient.Do(req)
	if err != nil {
		return nil, apierrors.NewUploadError(fileName, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apierrors.NewUploadError(fileName, "cannot read response", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apierrors.NewUploadError(fileName, errorDetail(raw), nil)
	}

	var uploadResp models.UploadResponse
	if err := json.Unmarshal(raw, &uploadResp); err != nil || uploadResp.URL == "" {
		return nil, apierrors.NewUploadError(fileName, "malformed upload response", err)
	}

	return &models.FileAttachment{
		ID:          uploadResp.Filename,
		Kind:        models.KindForMIME(mimeType),
		DisplayName: fileName,
		RemoteURL:   u.resolveURL(uploadResp.URL),
	}, nil
}

// resolveURL turns the backend's relative upload path into an absolute URL
func (u *Uploader) resolveURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return u.client.baseURL + raw
}

func isAllowedType(mimeType string) bool {
	for _, allowed := range AllowedMIMETypes() {
		if mimeType == allowed {
			return true
		}
	}
	return false
}
