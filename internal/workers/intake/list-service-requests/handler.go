// internal/workers/intake/list-service-requests/handler.go
package listservicerequests

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/common/metrics"
	"intake-workers/internal/common/validation"
	"intake-workers/internal/intake/ledger"
	"intake-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "list-service-requests"
)

var schema = validation.MustCompileSchema(inputSchema)

// Reader is the Postgres side of the request ledger.
type Reader interface {
	Recent(ctx context.Context, ownerIdentity string, limit int) ([]models.ServiceRequest, error)
	ListByStatus(ctx context.Context, status models.RequestStatus, limit int) ([]models.ServiceRequest, error)
}

// Searcher is the Elasticsearch mirror of the ledger.
type Searcher interface {
	Search(ctx context.Context, q ledger.SearchQuery) (*ledger.SearchResult, error)
}

type Handler struct {
	config       *Config
	reader       Reader
	searcher     Searcher
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the handler. searcher may be nil when search is not configured.
func NewHandler(config *Config, reader Reader, searcher Searcher, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		reader:       reader,
		searcher:     searcher,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, errors.NewInvalidEventError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := schema.Validate(input)
	if err != nil {
		return nil, errors.NewInvalidEventError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInvalidEventError(strings.Join(result.GetErrorMessages(), "; "))
	}

	limit := input.Limit
	if limit <= 0 {
		limit = h.config.DefaultLimit
	}
	if limit > h.config.MaxLimit {
		limit = h.config.MaxLimit
	}

	switch input.Mode {
	case ModeRecent:
		if input.OwnerIdentity == "" {
			return nil, errors.NewInvalidEventError("ownerIdentity is required in recent mode")
		}
		rows, err := h.reader.Recent(ctx, input.OwnerIdentity, limit)
		if err != nil {
			return nil, err
		}
		return fromRows(rows), nil

	case ModeStatus:
		status := models.RequestStatus(input.Status)
		if status == "" {
			status = models.StatusPending
		}
		rows, err := h.reader.ListByStatus(ctx, status, limit)
		if err != nil {
			return nil, err
		}
		return fromRows(rows), nil

	case ModeSearch:
		if h.searcher == nil {
			return nil, errors.NewElasticsearchConnectionFailedError(fmt.Errorf("search is not configured"))
		}
		res, err := h.searcher.Search(ctx, ledger.SearchQuery{
			Text:        input.Text,
			ServiceType: input.ServiceType,
			Status:      input.Status,
			Phone:       input.Phone,
			From:        input.From,
			Size:        limit,
		})
		if err != nil {
			return nil, err
		}
		out := &Output{Requests: make([]RequestSummary, 0, len(res.Documents)), TotalHits: res.TotalHits, Took: res.Took}
		for _, d := range res.Documents {
			out.Requests = append(out.Requests, RequestSummary{
				ID:           d.ID,
				Owner:        d.OwnerIdentity,
				DisplayName:  d.DisplayName,
				Phone:        d.Phone,
				ServiceType:  d.ServiceType,
				Status:       d.Status,
				CreditorName: d.CreditorName,
				CreatedAt:    d.CreatedAt,
			})
		}
		return out, nil
	}

	return nil, errors.NewInvalidEventError(fmt.Sprintf("unknown mode %q", input.Mode))
}

func fromRows(rows []models.ServiceRequest) *Output {
	out := &Output{Requests: make([]RequestSummary, 0, len(rows)), TotalHits: int64(len(rows))}
	for _, r := range rows {
		out.Requests = append(out.Requests, summarize(r))
	}
	return out
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
