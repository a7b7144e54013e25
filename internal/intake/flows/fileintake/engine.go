// Package fileintake lists a client's recent requests and records a free-text
// question for the admin team.
package fileintake

import (
	"context"
	"fmt"
	"strings"

	"intake-workers/internal/common/logger"
	"intake-workers/internal/intake/flow"
	"intake-workers/internal/intake/state"
	"intake-workers/internal/models"
)

const Name = "file-intake"

// ReasonNoFiles is the exit reason when the client has no requests on record.
const ReasonNoFiles = "no_files"

type Engine struct {
	lister flow.RequestLister
	limit  int
	log    logger.Logger
}

// New builds the engine; limit bounds how many recent requests are listed.
func New(lister flow.RequestLister, limit int, log logger.Logger) *Engine {
	if limit <= 0 {
		limit = 3
	}
	return &Engine{
		lister: lister,
		limit:  limit,
		log:    log.WithFields(map[string]interface{}{"engine": Name}),
	}
}

func (e *Engine) Name() string { return Name }

func (e *Engine) States() []state.State {
	return []state.State{state.AwaitingFileUpdateQuery}
}

func (e *Engine) ServiceTypes() []models.ServiceType {
	return []models.ServiceType{models.ServiceFileUpdate}
}

func (e *Engine) Begin(ctx context.Context, sess *models.Session, _ models.ServiceType) (flow.Directive, error) {
	recent, err := e.lister.Recent(ctx, sess.Identity, e.limit)
	if err != nil {
		return flow.Directive{}, fmt.Errorf("list recent requests: %w", err)
	}

	if len(recent) == 0 {
		return flow.Exit(
			"🔍 We couldn't find any active files linked to your profile.\n\nWould you like to start a new service? (Reply *0* for Menu)",
			ReasonNoFiles,
		), nil
	}

	sess.State = state.AwaitingFileUpdateQuery
	return flow.Reply(RenderFiles(recent) + "Do you have a specific question for the Admin regarding these files? Please type it below."), nil
}

func (e *Engine) Handle(_ context.Context, sess *models.Session, in flow.Input) (flow.Directive, error) {
	if sess.Pending == nil || sess.Pending.FileQuery == nil {
		return flow.MissingAccumulator(), nil
	}
	if sess.State != state.AwaitingFileUpdateQuery {
		return flow.Directive{}, fmt.Errorf("%s: state %s not handled", Name, sess.State)
	}

	if in.Text() == "" {
		return flow.Reply("Please type your question for the Admin."), nil
	}

	sess.Pending.FileQuery.Query = in.Text()
	sess.Pending.Touch(in.Now)
	return flow.Complete("✅ Thank you. Your message has been logged and assigned to an Admin. They will review your file and reply to you shortly."), nil
}

// RenderFiles lists requests most recent first with type, status and opening date.
func RenderFiles(requests []models.ServiceRequest) string {
	var b strings.Builder
	b.WriteString("📂 *Your Active Files:*\n\n")
	for i, r := range requests {
		status := r.Status
		if status == "" {
			status = models.StatusProcessing
		}
		fmt.Fprintf(&b, "%d. *%s*\n   Status: %s\n   Opened: %s\n\n",
			i+1, r.ServiceType.Label(), status, r.CreatedAt.Format("2006-01-02"))
	}
	return b.String()
}
