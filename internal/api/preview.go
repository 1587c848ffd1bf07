package api

import (
	"bytes"
	"context"
	"sync"

	apierrors "github.com/diogo/agentchat/internal/errors"
	"github.com/diogo/agentchat/internal/models"
)

// PendingAttachment holds a selected file's bytes before upload. The local
// buffer backs the preview shown to the user; it is owned by the selection
// and must be released explicitly on removal or once a durable URL
// replaces it. Release is never left to the garbage collector.
type PendingAttachment struct {
	FileName string
	MIMEType string

	mu       sync.Mutex
	data     []byte
	released bool
}

// NewPendingAttachment wraps selected file content for preview and upload
func NewPendingAttachment(fileName, mimeType string, data []byte) *PendingAttachment {
	return &PendingAttachment{
		FileName: fileName,
		MIMEType: mimeType,
		data:     data,
	}
}

// Kind classifies the pending file
func (p *PendingAttachment) Kind() models.AttachmentKind {
	return models.KindForMIME(p.MIMEType)
}

// Release frees the local buffer. Idempotent; every exit path of a
// selection, including error paths, ends here.
func (p *PendingAttachment) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = nil
	p.released = true
}

// Released reports whether the buffer has been freed
func (p *PendingAttachment) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// bytesLocked returns the buffered content for upload
func (p *PendingAttachment) bytes() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, apierrors.NewUploadError(p.FileName, "preview already released", nil)
	}
	return p.data, nil
}

// UploadPending uploads a selected file and releases its preview buffer on
// success: the durable URL supersedes the local resource. On failure the
// buffer is kept so the selection can be retried or removed (which
// releases it).
func (u *Uploader) UploadPending(ctx context.Context, p *PendingAttachment) (*models.FileAttachment, error) {
	data, err := p.bytes()
	if err != nil {
		return nil, err
	}

	att, err := u.UploadReader(ctx, bytes.NewReader(data), p.FileName, p.MIMEType)
	if err != nil {
		return nil, err
	}

	p.Release()
	return att, nil
}

// UploadAll resolves a whole selection in order. Any single failure aborts
// the exchange: no partial set is ever returned, and every already-pending
// buffer stays owned by the selection for the caller to release.
func (u *Uploader) UploadAll(ctx context.Context, pending []*PendingAttachment) ([]models.FileAttachment, error) {
	out := make([]models.FileAttachment, 0, len(pending))
	for _, p := range pending {
		att, err := u.UploadPending(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, *att)
	}
	return out, nil
}
