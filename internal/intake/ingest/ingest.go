// Package ingest re-hosts transient channel media in the document bucket.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/common/metrics"
	"intake-workers/internal/intake/flow"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultMaxBytes = 16 << 20

// Fetcher downloads provider media. *commonhttp.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Uploader stores objects. *aws.S3Client satisfies it.
type Uploader interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput) (*s3.PutObjectOutput, error)
}

type Options struct {
	Bucket        string
	Region        string
	Folder        string
	PublicBaseURL string
	Timeout       time.Duration
	MaxBytes      int64
}

// Ingestor implements flow.Ingestor.
type Ingestor struct {
	fetch  Fetcher
	upload Uploader
	opts   Options
	log    logger.Logger
	now    func() time.Time
}

func New(fetch Fetcher, upload Uploader, opts Options, log logger.Logger) *Ingestor {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.PublicBaseURL == "" {
		opts.PublicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")

	return &Ingestor{
		fetch:  fetch,
		upload: upload,
		opts:   opts,
		log:    log.WithFields(map[string]interface{}{"component": "attachment-ingestor"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ingest fetches req.Attachment and stores it under the configured folder. The
// returned URL is durable; nothing is staged by the caller unless this succeeds.
func (i *Ingestor) Ingest(ctx context.Context, req flow.IngestRequest) (flow.Stored, error) {
	start := time.Now()
	defer func() {
		metrics.IntakeIngestDuration.Observe(time.Since(start).Seconds())
	}()

	if i.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.opts.Timeout)
		defer cancel()
	}

	stored, err := i.ingest(ctx, req)
	if err != nil {
		metrics.IntakeIngestFailures.Inc()
		i.log.Warn("Attachment ingest failed", map[string]interface{}{
			"identity": req.Identity,
			"label":    req.Label,
			"error":    err,
		})
		return flow.Stored{}, errors.NewAttachmentIngestFailedError(err)
	}

	i.log.Info("Attachment stored", map[string]interface{}{
		"identity": req.Identity,
		"label":    req.Label,
		"kind":     string(stored.Kind),
	})
	return stored, nil
}

func (i *Ingestor) ingest(ctx context.Context, req flow.IngestRequest) (flow.Stored, error) {
	if req.Attachment.URL == "" {
		return flow.Stored{}, fmt.Errorf("attachment has no url")
	}

	res, err := i.fetch.Get(ctx, req.Attachment.URL)
	if err != nil {
		return flow.Stored{}, fmt.Errorf("fetch media: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return flow.Stored{}, fmt.Errorf("fetch media: unexpected status %s", res.Status)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, i.opts.MaxBytes+1))
	if err != nil {
		return flow.Stored{}, fmt.Errorf("read media: %w", err)
	}
	if int64(len(body)) > i.opts.MaxBytes {
		return flow.Stored{}, fmt.Errorf("media exceeds %d bytes", i.opts.MaxBytes)
	}

	contentType := req.Attachment.MediaType
	if contentType == "" {
		contentType = res.Header.Get("Content-Type")
	}
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	key := i.objectKey(req, contentType)
	_, err = i.upload.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(i.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return flow.Stored{}, fmt.Errorf("upload %s: %w", key, err)
	}

	return flow.Stored{
		URL:  i.opts.PublicBaseURL + "/" + key,
		Kind: flow.ClassifyMedia(contentType),
	}, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)

// objectKey is <folder>/<phone>/<label>_<unix millis><ext>.
func (i *Ingestor) objectKey(req flow.IngestRequest, contentType string) string {
	owner := unsafeKeyChars.ReplaceAllString(strings.TrimPrefix(req.Identity, "whatsapp:"), "")
	label := unsafeKeyChars.ReplaceAllString(req.Label, "_")
	if label == "" {
		label = "attachment"
	}
	name := fmt.Sprintf("%s_%d%s", label, i.now().UnixMilli(), extensionFor(contentType))
	return path.Join(i.opts.Folder, owner, name)
}

func extensionFor(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mt {
	case "image/jpeg":
		return ".jpg"
	case "application/pdf":
		return ".pdf"
	}
	if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
