package ingest

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"intake-workers/internal/common/errors"
	commonhttp "intake-workers/internal/common/http"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/intake/flow"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Uploader
// ==========================

type mockUploader struct {
	PutObjectFunc func(ctx context.Context, input *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	inputs        []*s3.PutObjectInput
	bodies        [][]byte
}

func (m *mockUploader) PutObject(ctx context.Context, input *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
	m.inputs = append(m.inputs, input)
	if input.Body != nil {
		b, _ := io.ReadAll(input.Body)
		m.bodies = append(m.bodies, b)
	}
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, input)
	}
	return &s3.PutObjectOutput{}, nil
}

// ==========================
// Test Helper Functions
// ==========================

func createTestMediaServer(t *testing.T, contentType string, body []byte) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func createTestIngestor(t *testing.T, up Uploader, opts Options) *Ingestor {
	fetch := commonhttp.NewClient(5 * time.Second).WithBasicAuth("AC123", "secret")
	if opts.Bucket == "" {
		opts.Bucket = "mkh-docs"
	}
	if opts.Folder == "" {
		opts.Folder = "debtors_documents"
	}
	ing := New(fetch, up, opts, logger.NewTestLogger(t))
	ing.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return ing
}

// ==========================
// Ingest Tests
// ==========================

func TestIngest_StoresPDF(t *testing.T) {
	srv := createTestMediaServer(t, "application/pdf", []byte("%PDF-1.4 test"))
	up := &mockUploader{}
	ing := createTestIngestor(t, up, Options{PublicBaseURL: "https://cdn.example.com/"})

	stored, err := ing.Ingest(context.Background(), flow.IngestRequest{
		Identity:   "whatsapp:+27821234567",
		Attachment: flow.Attachment{URL: srv.URL + "/media/1", MediaType: "application/pdf"},
		Label:      "POA_REQ-77",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/debtors_documents/27821234567/POA_REQ-77_1700000000000.pdf", stored.URL)
	assert.Equal(t, flow.MediaDocument, stored.Kind)

	require.Len(t, up.inputs, 1)
	assert.Equal(t, "mkh-docs", *up.inputs[0].Bucket)
	assert.Equal(t, "application/pdf", *up.inputs[0].ContentType)
	assert.Equal(t, []byte("%PDF-1.4 test"), up.bodies[0])
}

func TestIngest_UsesResponseContentTypeWhenUndeclared(t *testing.T) {
	srv := createTestMediaServer(t, "image/jpeg", []byte{0xff, 0xd8, 0xff})
	up := &mockUploader{}
	ing := createTestIngestor(t, up, Options{Region: "af-south-1"})

	stored, err := ing.Ingest(context.Background(), flow.IngestRequest{
		Identity:   "whatsapp:+27821234567",
		Attachment: flow.Attachment{URL: srv.URL + "/media/2"},
		Label:      "CAR_APP_1",
	})
	require.NoError(t, err)
	assert.Equal(t, flow.MediaPhoto, stored.Kind)
	assert.Equal(t, "https://mkh-docs.s3.af-south-1.amazonaws.com/debtors_documents/27821234567/CAR_APP_1_1700000000000.jpg", stored.URL)
}

func TestIngest_FetchFailure(t *testing.T) {
	srv := createTestMediaServer(t, "image/png", nil)
	up := &mockUploader{}
	ing := createTestIngestor(t, up, Options{})

	_, err := ing.Ingest(context.Background(), flow.IngestRequest{
		Identity:   "whatsapp:+1",
		Attachment: flow.Attachment{URL: srv.URL + "/missing"},
		Label:      "POR",
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAttachmentIngestFailed))
	assert.Empty(t, up.inputs, "nothing is uploaded when the fetch fails")
}

func TestIngest_UploadFailure(t *testing.T) {
	srv := createTestMediaServer(t, "application/pdf", []byte("x"))
	up := &mockUploader{
		PutObjectFunc: func(ctx context.Context, input *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			return nil, stderrors.New("access denied")
		},
	}
	ing := createTestIngestor(t, up, Options{})

	_, err := ing.Ingest(context.Background(), flow.IngestRequest{
		Identity:   "whatsapp:+1",
		Attachment: flow.Attachment{URL: srv.URL + "/m", MediaType: "application/pdf"},
		Label:      "POA",
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAttachmentIngestFailed))
}

func TestIngest_TooLarge(t *testing.T) {
	srv := createTestMediaServer(t, "application/pdf", make([]byte, 64))
	up := &mockUploader{}
	ing := createTestIngestor(t, up, Options{MaxBytes: 16})

	_, err := ing.Ingest(context.Background(), flow.IngestRequest{
		Identity:   "whatsapp:+1",
		Attachment: flow.Attachment{URL: srv.URL + "/big"},
		Label:      "POA",
	})
	require.Error(t, err)
	assert.Empty(t, up.inputs)
}

func TestIngest_MissingURL(t *testing.T) {
	ing := createTestIngestor(t, &mockUploader{}, Options{})
	_, err := ing.Ingest(context.Background(), flow.IngestRequest{Identity: "whatsapp:+1", Label: "POA"})
	assert.Error(t, err)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".pdf", extensionFor("application/pdf"))
	assert.Equal(t, ".jpg", extensionFor("image/jpeg"))
	assert.Equal(t, ".png", extensionFor("image/png"))
	assert.Equal(t, "", extensionFor("not a type"))
}
