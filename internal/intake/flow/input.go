package flow

import (
	"context"
	"strings"
	"time"

	"intake-workers/internal/models"
)

// Attachment is the transient media reference carried by an inbound event.
type Attachment struct {
	URL       string
	MediaType string
}

// Input is what an engine sees of one inbound event.
type Input struct {
	Body       string
	Selector   string
	Attachment *Attachment
	Now        time.Time
}

// Text is the trimmed free-text body.
func (in Input) Text() string {
	return strings.TrimSpace(in.Body)
}

// Choice is the upper-cased selector, falling back to the body.
func (in Input) Choice() string {
	if s := strings.TrimSpace(in.Selector); s != "" {
		return strings.ToUpper(s)
	}
	return strings.ToUpper(in.Text())
}

func (in Input) HasAttachment() bool {
	return in.Attachment != nil && in.Attachment.URL != ""
}

// MediaKind classifies declared media types.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
	MediaOther    MediaKind = "other"
)

// ClassifyMedia maps a MIME type onto a MediaKind.
func ClassifyMedia(mediaType string) MediaKind {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return MediaPhoto
	case mt == "application/pdf",
		mt == "application/msword",
		strings.HasPrefix(mt, "application/vnd.openxmlformats-officedocument"),
		strings.HasPrefix(mt, "application/vnd.ms-"),
		mt == "text/plain":
		return MediaDocument
	default:
		return MediaOther
	}
}

// IngestRequest names one attachment to re-host.
type IngestRequest struct {
	Identity   string
	Attachment Attachment
	// Label becomes part of the stored object name, e.g. "POA_PAID_UP_LETTER".
	Label string
}

// Stored is a durably re-hosted attachment.
type Stored struct {
	URL  string
	Kind MediaKind
}

// Ingestor re-hosts transient attachments. Implementations bound their own I/O time.
type Ingestor interface {
	Ingest(ctx context.Context, req IngestRequest) (Stored, error)
}

// RequestLister reads finalized requests for the file-intake flow.
type RequestLister interface {
	Recent(ctx context.Context, ownerIdentity string, limit int) ([]models.ServiceRequest, error)
}
