// Package negotiation runs settlement-style requests: creditor, payment
// arrangement, then signed POA and proof of residence. Each service type is
// bound to an explicit Plan.
package negotiation

import (
	"context"
	"fmt"
	"strings"

	"intake-workers/internal/common/logger"
	"intake-workers/internal/intake/flow"
	"intake-workers/internal/intake/state"
	"intake-workers/internal/models"
)

const Name = "negotiation"

type Engine struct {
	ingestor flow.Ingestor
	plans    map[models.ServiceType]*Plan
	log      logger.Logger
}

func New(ingestor flow.Ingestor, log logger.Logger) *Engine {
	e := &Engine{
		ingestor: ingestor,
		plans:    map[models.ServiceType]*Plan{},
		log:      log.WithFields(map[string]interface{}{"engine": Name}),
	}
	for i := range Plans {
		p := &Plans[i]
		for _, st := range p.ServiceTypes {
			e.plans[st] = p
		}
	}
	return e
}

func (e *Engine) Name() string { return Name }

func (e *Engine) States() []state.State {
	return []state.State{
		state.AwaitingNegotiationCreditor,
		state.AwaitingPaymentMethod,
		state.AwaitingNegotiationPoa,
		state.AwaitingNegotiationPor,
	}
}

func (e *Engine) ServiceTypes() []models.ServiceType {
	var out []models.ServiceType
	for _, p := range Plans {
		out = append(out, p.ServiceTypes...)
	}
	return out
}

// PlanFor returns the plan bound to serviceType.
func (e *Engine) PlanFor(serviceType models.ServiceType) (*Plan, bool) {
	p, ok := e.plans[serviceType]
	return p, ok
}

func (e *Engine) Begin(_ context.Context, sess *models.Session, serviceType models.ServiceType) (flow.Directive, error) {
	sess.State = state.AwaitingNegotiationCreditor
	return flow.Reply(fmt.Sprintf(
		"🤝 *%s*\n\nWhich *creditor* is this request for? Please type the creditor's name.",
		serviceType.Label(),
	)), nil
}

func (e *Engine) Handle(ctx context.Context, sess *models.Session, in flow.Input) (flow.Directive, error) {
	d, err := e.step(ctx, sess, in)
	return flow.Advance(sess, in.Now, d, err)
}

func (e *Engine) step(ctx context.Context, sess *models.Session, in flow.Input) (flow.Directive, error) {
	if sess.Pending == nil || sess.Pending.Negotiation == nil {
		return flow.MissingAccumulator(), nil
	}
	plan, ok := e.plans[sess.Pending.ServiceType]
	if !ok {
		return flow.Directive{}, fmt.Errorf("%s: no plan for service type %s", Name, sess.Pending.ServiceType)
	}

	n := sess.Pending.Negotiation
	service := sess.Pending.ServiceType.Label()

	switch sess.State {
	case state.AwaitingNegotiationCreditor:
		if in.Text() == "" {
			return flow.Reply("Please type the *name of the creditor*."), nil
		}
		n.CreditorName = in.Text()
		sess.State = state.AwaitingPaymentMethod
		return plan.PaymentPrompt(service, n.CreditorName), nil

	case state.AwaitingPaymentMethod:
		return plan.Payment(ctx, e, sess, in)

	case state.AwaitingNegotiationPoa:
		if !in.HasAttachment() {
			return flow.Reply("❌ Please upload the signed POA as a *Document* or photo."), nil
		}
		stored, err := e.ingest(ctx, sess, in, "POA")
		if err != nil {
			return flow.IngestRetry("POA"), nil
		}
		n.PoaURL = stored.URL
		sess.AddDocument(service+" POA", stored.URL, in.Now)
		sess.State = state.AwaitingNegotiationPor
		return flow.Reply("✅ *POA Received.*\n\nNow, please upload your *Proof of Residence* to finalize the request."), nil

	case state.AwaitingNegotiationPor:
		if !in.HasAttachment() {
			return flow.Reply("❌ Please upload your *Proof of Residence* as a Document or photo."), nil
		}
		stored, err := e.ingest(ctx, sess, in, "POR")
		if err != nil {
			return flow.IngestRetry("Proof of Residence"), nil
		}
		n.PorURL = stored.URL
		sess.AddDocument(service+" POR", stored.URL, in.Now)
		return flow.Complete(Summary(sess.Pending)), nil
	}

	return flow.Directive{}, fmt.Errorf("%s: state %s not handled", Name, sess.State)
}

// Summary renders the completion text from the accumulator alone.
func Summary(p *models.PendingRequest) string {
	n := p.Negotiation
	method := n.PaymentPreference
	if method == "" {
		method = preferenceNotGiven
	}

	var docs []string
	if n.PoaURL != "" {
		docs = append(docs, "Power of Attorney")
	}
	if n.PorURL != "" {
		docs = append(docs, "Proof of Residence")
	}
	if n.PopURL != "" {
		docs = append(docs, "Proof of Payment")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎉 *%s Request Submitted!*\n\n*Details Saved:*\n", p.ServiceType.Label())
	fmt.Fprintf(&b, "• Creditor: %s\n", n.CreditorName)
	fmt.Fprintf(&b, "• Payment Plan: %s\n", method)
	if len(docs) > 0 {
		fmt.Fprintf(&b, "• Documents: %s\n", strings.Join(docs, ", "))
	}
	b.WriteString("\nOur team will process your file and update you shortly!")
	return b.String()
}

func (e *Engine) ingest(ctx context.Context, sess *models.Session, in flow.Input, doc string) (flow.Stored, error) {
	stored, err := e.ingestor.Ingest(ctx, flow.IngestRequest{
		Identity:   sess.Identity,
		Attachment: *in.Attachment,
		Label:      doc + "_" + string(sess.Pending.ServiceType),
	})
	if err != nil {
		e.log.Warn("Attachment ingest failed", map[string]interface{}{
			"identity":    sess.Identity,
			"document":    doc,
			"serviceType": string(sess.Pending.ServiceType),
			"error":       err.Error(),
		})
	}
	return stored, err
}
