package executors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
)

// Variant tags for attachment transfer.
const (
	VariantDownload job.Variant = "attachment.download"
	VariantUpload   job.Variant = "attachment.upload"
)

// maxAttachmentFailures bounds retries for attachment transfers. A blob
// that will not move after this many attempts needs user attention, not
// another year of backoff.
const maxAttachmentFailures = 10

// BlobStore is the local storage attachments move through.
type BlobStore interface {
	Put(ctx context.Context, attachmentID id.AttachmentID, data []byte) error
	Get(ctx context.Context, attachmentID id.AttachmentID) ([]byte, error)
}

// DownloadDetails is the payload for the attachment.download variant.
type DownloadDetails struct {
	AttachmentID id.AttachmentID `json:"attachment_id"`
	ThreadID     id.ThreadID     `json:"thread_id"`
	KeyID        string          `json:"key_id"`
}

// UploadDetails is the payload for the attachment.upload variant.
type UploadDetails struct {
	AttachmentID   id.AttachmentID `json:"attachment_id"`
	ThreadID       id.ThreadID     `json:"thread_id"`
	RecipientKeyID string          `json:"recipient_key_id"`
}

// NewDownload returns the attachment.download definition. Downloads run
// on the parallel attachment lane; each attachment is unique so a
// re-requested blob is not fetched twice.
func NewDownload(blobs BlobStore) *job.Definition[DownloadDetails] {
	run := func(ctx context.Context, details DownloadDetails, deps job.Deps) job.Outcome {
		return runDownload(ctx, details, deps, blobs)
	}
	return job.NewDefinition(VariantDownload, run,
		job.InLane(courier.LaneAttachment),
		job.Unique(),
		job.MaxFailures(maxAttachmentFailures),
	)
}

func runDownload(ctx context.Context, details DownloadDetails, deps job.Deps, blobs BlobStore) job.Outcome {
	meta, body, err := deps.Transport.Get(ctx, "/v1/attachments/"+details.AttachmentID.String())
	if err != nil {
		return job.Retry(fmt.Errorf("download: %w", err))
	}
	if meta.Status == http.StatusNotFound {
		// The attachment expired server-side; no retry can recover it.
		return job.Fail(fmt.Errorf("download: attachment %s gone", details.AttachmentID))
	}
	if outcome := classify("download", meta); outcome.Status != job.StatusSuccess {
		return outcome
	}

	plaintext, err := deps.Crypto.Decrypt(ctx, details.KeyID, body)
	if err != nil {
		return job.Fail(fmt.Errorf("download: decrypt attachment %s: %w", details.AttachmentID, err))
	}
	if err := blobs.Put(ctx, details.AttachmentID, plaintext); err != nil {
		return job.Retry(fmt.Errorf("download: store attachment %s: %w", details.AttachmentID, err))
	}

	deps.Logger.Info("attachment downloaded",
		slog.String("attachment_id", details.AttachmentID.String()),
		slog.Int("bytes", len(plaintext)),
	)
	return job.Succeed()
}

// NewUpload returns the attachment.upload definition, the mirror of
// download on the same parallel lane.
func NewUpload(blobs BlobStore) *job.Definition[UploadDetails] {
	run := func(ctx context.Context, details UploadDetails, deps job.Deps) job.Outcome {
		return runUpload(ctx, details, deps, blobs)
	}
	return job.NewDefinition(VariantUpload, run,
		job.InLane(courier.LaneAttachment),
		job.Unique(),
		job.MaxFailures(maxAttachmentFailures),
	)
}

func runUpload(ctx context.Context, details UploadDetails, deps job.Deps, blobs BlobStore) job.Outcome {
	plaintext, err := blobs.Get(ctx, details.AttachmentID)
	if err != nil {
		return job.Fail(fmt.Errorf("upload: read attachment %s: %w", details.AttachmentID, err))
	}

	ciphertext, err := deps.Crypto.Encrypt(ctx, details.RecipientKeyID, plaintext)
	if err != nil {
		return job.Fail(fmt.Errorf("upload: encrypt attachment %s: %w", details.AttachmentID, err))
	}

	body, err := json.Marshal(struct {
		AttachmentID id.AttachmentID `json:"attachment_id"`
		ThreadID     id.ThreadID     `json:"thread_id"`
		Ciphertext   []byte          `json:"ciphertext"`
	}{details.AttachmentID, details.ThreadID, ciphertext})
	if err != nil {
		return job.Fail(fmt.Errorf("upload: marshal request: %w", err))
	}

	meta, _, err := deps.Transport.Put(ctx, "/v1/attachments/"+details.AttachmentID.String(), body)
	if err != nil {
		return job.Retry(fmt.Errorf("upload: %w", err))
	}

	outcome := classify("upload", meta)
	if outcome.Status == job.StatusSuccess {
		deps.Logger.Info("attachment uploaded",
			slog.String("attachment_id", details.AttachmentID.String()),
		)
	}
	return outcome
}
