// Package docrequest collects the creditor, request ID and signed POA/POR
// attachments for a paid-up letter.
package docrequest

import (
	"context"
	"fmt"

	"intake-workers/internal/common/logger"
	"intake-workers/internal/intake/flow"
	"intake-workers/internal/intake/state"
	"intake-workers/internal/models"
)

const Name = "document-request"

type Engine struct {
	ingestor flow.Ingestor
	log      logger.Logger
}

func New(ingestor flow.Ingestor, log logger.Logger) *Engine {
	return &Engine{
		ingestor: ingestor,
		log:      log.WithFields(map[string]interface{}{"engine": Name}),
	}
}

func (e *Engine) Name() string { return Name }

func (e *Engine) States() []state.State {
	return []state.State{
		state.AwaitingCreditorName,
		state.AwaitingRequestID,
		state.AwaitingPoaUpload,
		state.AwaitingPorUpload,
	}
}

func (e *Engine) ServiceTypes() []models.ServiceType {
	return []models.ServiceType{models.ServicePaidUpLetter}
}

func (e *Engine) Begin(_ context.Context, sess *models.Session, serviceType models.ServiceType) (flow.Directive, error) {
	sess.State = state.AwaitingCreditorName
	return flow.Reply(fmt.Sprintf(
		"📝 *%s Request*\n\nPlease enter the *name of the creditor* you need the letter from.",
		serviceType.Label(),
	)), nil
}

func (e *Engine) Handle(ctx context.Context, sess *models.Session, in flow.Input) (flow.Directive, error) {
	d, err := e.step(ctx, sess, in)
	return flow.Advance(sess, in.Now, d, err)
}

func (e *Engine) step(ctx context.Context, sess *models.Session, in flow.Input) (flow.Directive, error) {
	if sess.Pending == nil || sess.Pending.DocumentRequest == nil {
		return flow.MissingAccumulator(), nil
	}
	req := sess.Pending.DocumentRequest

	switch sess.State {
	case state.AwaitingCreditorName:
		if in.Text() == "" {
			return flow.Reply("Please type the *name of the creditor*."), nil
		}
		req.CreditorName = in.Text()
		sess.State = state.AwaitingRequestID
		return flow.Reply(fmt.Sprintf("Got it: *%s*.\n\nNow, please enter your *ID Number* for this request.", req.CreditorName)), nil

	case state.AwaitingRequestID:
		if in.Text() == "" {
			return flow.Reply("Please enter the *ID Number* for this request."), nil
		}
		req.RequestIDNumber = in.Text()
		sess.State = state.AwaitingPoaUpload
		return flow.AwaitAttachment(
			"Thank you. 📄 One moment while I prepare your *Power of Attorney* document...\n\nSign it and send back a photo or scan.",
			flow.RefPOA,
		), nil

	case state.AwaitingPoaUpload:
		if !in.HasAttachment() {
			return flow.Reply("❌ Please upload a *Photo* or scan of the signed POA (click '+' -> 'Gallery' or 'Camera')."), nil
		}
		stored, err := e.ingest(ctx, sess, in, "POA")
		if err != nil {
			return flow.IngestRetry("POA"), nil
		}
		req.PoaURL = stored.URL
		sess.AddDocument("POA - "+req.CreditorName, stored.URL, in.Now)
		sess.State = state.AwaitingPorUpload
		return flow.Reply("✅ POA Received. Now, please upload your *Proof of Residence*."), nil

	case state.AwaitingPorUpload:
		if !in.HasAttachment() {
			return flow.Reply("❌ Please upload your *Proof of Residence* as a *Photo* or scan."), nil
		}
		stored, err := e.ingest(ctx, sess, in, "POR")
		if err != nil {
			return flow.IngestRetry("Proof of Residence"), nil
		}
		req.PorURL = stored.URL
		sess.AddDocument("POR - "+req.CreditorName, stored.URL, in.Now)
		return flow.Complete(fmt.Sprintf(
			"Thank you, %s. We have received your documents. Our admin team will verify everything and reach out to you soon.",
			sess.DisplayName(),
		)), nil
	}

	return flow.Directive{}, fmt.Errorf("%s: state %s not handled", Name, sess.State)
}

func (e *Engine) ingest(ctx context.Context, sess *models.Session, in flow.Input, doc string) (flow.Stored, error) {
	stored, err := e.ingestor.Ingest(ctx, flow.IngestRequest{
		Identity:   sess.Identity,
		Attachment: *in.Attachment,
		Label:      doc + "_" + sess.Pending.DocumentRequest.RequestIDNumber,
	})
	if err != nil {
		e.log.Warn("Attachment ingest failed", map[string]interface{}{
			"identity": sess.Identity,
			"document": doc,
			"error":    err.Error(),
		})
	}
	return stored, err
}
