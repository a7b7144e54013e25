// internal/workers/intake/handle-inbound-message/handler.go
package handleinboundmessage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/common/metrics"
	"intake-workers/internal/common/validation"
	"intake-workers/internal/intake/orchestrator"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "handle-inbound-message"
)

var schema = validation.MustCompileSchema(inputSchema)

// Processor runs one conversational turn, e.g. *orchestrator.Orchestrator.
type Processor interface {
	Handle(ctx context.Context, ev orchestrator.Event) (*orchestrator.Reply, error)
}

type Handler struct {
	config       *Config
	processor    Processor
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, processor Processor, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		processor:    processor,
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

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	reply, err := h.processor.Handle(ctx, orchestrator.Event{
		EventID:       input.EventID,
		Identity:      input.Identity,
		Body:          input.Body,
		Selector:      input.Selector,
		AttachmentURL: input.AttachmentURL,
		MediaType:     input.MediaType,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Debug("turn handled", map[string]interface{}{
		"identity":  input.Identity,
		"state":     string(reply.State),
		"duplicate": reply.Duplicate,
	})

	return &Output{
		Text:       reply.Text,
		SideEffect: reply.SideEffect,
		State:      string(reply.State),
		RequestID:  reply.RequestID,
		Duplicate:  reply.Duplicate,
	}, nil
}

func validateInput(input *Input) error {
	result, err := schema.Validate(input)
	if err != nil {
		return errors.NewInvalidEventError(err.Error())
	}
	if !result.Valid {
		return errors.NewInvalidEventError(strings.Join(result.GetErrorMessages(), "; "))
	}

	if !validation.ValidatePhone(input.Identity) {
		return errors.NewInvalidEventError("identity must be a phone number")
	}
	if input.AttachmentURL != "" && !validation.ValidateURL(input.AttachmentURL) {
		return errors.NewInvalidEventError("attachmentUrl is not a valid URL")
	}
	if strings.TrimSpace(input.Body) == "" && strings.TrimSpace(input.Selector) == "" && input.AttachmentURL == "" {
		return errors.NewInvalidEventError("event carries no body, selector or attachment")
	}
	return nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
