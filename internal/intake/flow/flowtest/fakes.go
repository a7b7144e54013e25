// Package flowtest provides in-memory collaborators for engine and orchestrator tests.
package flowtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"intake-workers/internal/intake/flow"
	"intake-workers/internal/models"
)

var ErrIngest = errors.New("ingest failed")

// Ingestor returns deterministic URLs and can be told to fail.
type Ingestor struct {
	mu       sync.Mutex
	Fail     bool
	Requests []flow.IngestRequest
}

func (f *Ingestor) Ingest(_ context.Context, req flow.IngestRequest) (flow.Stored, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return flow.Stored{}, ErrIngest
	}
	f.Requests = append(f.Requests, req)
	return flow.Stored{
		URL:  fmt.Sprintf("https://cdn.test/%s/%d", req.Label, len(f.Requests)),
		Kind: flow.ClassifyMedia(req.Attachment.MediaType),
	}, nil
}

func (f *Ingestor) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// Lister serves canned requests, most recent first.
type Lister struct {
	Requests []models.ServiceRequest
	Err      error
}

func (l *Lister) Recent(_ context.Context, owner string, limit int) ([]models.ServiceRequest, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	var out []models.ServiceRequest
	for _, r := range l.Requests {
		if r.OwnerIdentity == owner && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

// Photo is an image attachment reference.
func Photo(url string) *flow.Attachment {
	return &flow.Attachment{URL: url, MediaType: "image/jpeg"}
}

// PDF is a document attachment reference.
func PDF(url string) *flow.Attachment {
	return &flow.Attachment{URL: url, MediaType: "application/pdf"}
}
