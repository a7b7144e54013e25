// Package carfinance collects a car application pack one attachment at a time.
package carfinance

import (
	"context"
	"fmt"
	"strings"

	"intake-workers/internal/common/logger"
	"intake-workers/internal/intake/flow"
	"intake-workers/internal/intake/state"
	"intake-workers/internal/models"
)

const Name = "car-finance"

// DocumentKind is recorded on every document of a completed application.
const DocumentKind = "Car Application Document"

type Options struct {
	MaxAttachments     int
	CompletionKeywords []string
}

type Engine struct {
	ingestor flow.Ingestor
	max      int
	done     map[string]bool
	log      logger.Logger
}

func New(ingestor flow.Ingestor, opts Options, log logger.Logger) *Engine {
	if opts.MaxAttachments <= 0 {
		opts.MaxAttachments = 5
	}
	if len(opts.CompletionKeywords) == 0 {
		opts.CompletionKeywords = []string{"done", "submit", "finish"}
	}
	done := make(map[string]bool, len(opts.CompletionKeywords))
	for _, k := range opts.CompletionKeywords {
		done[strings.ToUpper(strings.TrimSpace(k))] = true
	}
	return &Engine{
		ingestor: ingestor,
		max:      opts.MaxAttachments,
		done:     done,
		log:      log.WithFields(map[string]interface{}{"engine": Name}),
	}
}

func (e *Engine) Name() string { return Name }

func (e *Engine) States() []state.State {
	return []state.State{state.AwaitingCarDocuments}
}

func (e *Engine) ServiceTypes() []models.ServiceType {
	return []models.ServiceType{models.ServiceCarApplication}
}

func (e *Engine) Begin(_ context.Context, sess *models.Session, _ models.ServiceType) (flow.Directive, error) {
	sess.State = state.AwaitingCarDocuments
	return flow.Reply(fmt.Sprintf(
		"🚗 *Car Finance Application*\n\nPlease upload your documents one at a time as a photo or PDF: ID copy, latest payslips and 3 months bank statements.\n\nYou can send up to %d files. Reply *DONE* when you have sent everything.",
		e.max,
	)), nil
}

func (e *Engine) Handle(ctx context.Context, sess *models.Session, in flow.Input) (flow.Directive, error) {
	d, err := e.step(ctx, sess, in)
	return flow.Advance(sess, in.Now, d, err)
}

func (e *Engine) step(ctx context.Context, sess *models.Session, in flow.Input) (flow.Directive, error) {
	if sess.Pending == nil || sess.Pending.CarFinance == nil {
		return flow.MissingAccumulator(), nil
	}
	if sess.State != state.AwaitingCarDocuments {
		return flow.Directive{}, fmt.Errorf("%s: state %s not handled", Name, sess.State)
	}
	car := sess.Pending.CarFinance

	if !in.HasAttachment() {
		if !e.done[in.Choice()] {
			return flow.Reply("Please upload your next document as a *Photo* or *PDF*, or reply *DONE* to submit."), nil
		}
		if len(car.StagedURLs) == 0 {
			return flow.Reply("❌ You haven't uploaded any documents yet. Please upload at least one document before submitting."), nil
		}
		return e.complete(sess, in), nil
	}

	kind := flow.ClassifyMedia(in.Attachment.MediaType)
	if kind == flow.MediaOther {
		return flow.Reply("❌ Please upload your application documents as a *Photo* or *Document* (PDF preferred)."), nil
	}

	stored, err := e.ingestor.Ingest(ctx, flow.IngestRequest{
		Identity:   sess.Identity,
		Attachment: *in.Attachment,
		Label:      fmt.Sprintf("CAR_APP_%d", len(car.StagedURLs)+1),
	})
	if err != nil {
		e.log.Warn("Attachment ingest failed", map[string]interface{}{
			"identity": sess.Identity,
			"staged":   len(car.StagedURLs),
			"error":    err.Error(),
		})
		return flow.IngestRetry("document"), nil
	}

	car.StagedURLs = append(car.StagedURLs, stored.URL)
	if len(car.StagedURLs) >= e.max {
		return e.complete(sess, in), nil
	}

	return flow.Reply(fmt.Sprintf(
		"✅ Document %d of up to %d received. Send the next one, or reply *DONE* to submit.",
		len(car.StagedURLs), e.max,
	)), nil
}

func (e *Engine) complete(sess *models.Session, in flow.Input) flow.Directive {
	urls := sess.Pending.CarFinance.StagedURLs
	for _, u := range urls {
		sess.AddDocument(DocumentKind, u, in.Now)
	}
	return flow.Complete(fmt.Sprintf(
		"✅ *Application Received!*\n\nWe have received %d document(s). Our finance team will review your statements and payslips and contact you shortly regarding your car application.",
		len(urls),
	))
}
