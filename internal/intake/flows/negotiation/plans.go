package negotiation

import (
	"context"
	"fmt"
	"strings"

	"intake-workers/internal/intake/flow"
	"intake-workers/internal/intake/state"
	"intake-workers/internal/models"
)

// paymentStep handles AWAITING_PAYMENT_METHOD for one plan.
type paymentStep func(ctx context.Context, e *Engine, sess *models.Session, in flow.Input) (flow.Directive, error)

// Plan is the explicit definition of one negotiation variant. The creditor
// step is shared; everything from the payment step on is the plan's own.
type Plan struct {
	Name         string
	ServiceTypes []models.ServiceType
	// PaymentPrompt is sent after the creditor has been captured.
	PaymentPrompt func(service, creditor string) flow.Directive
	Payment       paymentStep
}

// Plans lists every negotiation variant. A service type appears in exactly one plan.
var Plans = []Plan{
	{
		Name: "payment-plan",
		ServiceTypes: []models.ServiceType{
			models.ServiceSettlement,
			models.ServiceDefaultClearing,
			models.ServiceArrangement,
			models.ServiceJudgmentRemoval,
			models.ServiceDebtReviewRemoval,
		},
		PaymentPrompt: func(service, creditor string) flow.Directive {
			return flow.Reply(fmt.Sprintf(
				"Got it: *%s*.\n\nTo proceed with your *%s*, please confirm your payment plan:\n\n1️⃣ Monthly Installments\n2️⃣ Once-off Settlement\n3️⃣ Full Payment",
				creditor, service,
			)).With(flow.SendPaymentOptionsPrompt, "")
		},
		Payment: choosePaymentPlan,
	},
	{
		Name:         "proof-of-payment",
		ServiceTypes: []models.ServiceType{models.ServiceCreditReport},
		PaymentPrompt: func(service, creditor string) flow.Directive {
			return flow.Reply(fmt.Sprintf(
				"Got it: *%s*.\n\nThe *%s* consultation fee is *R350*. Please upload your *Proof of Payment* as a Document or Screenshot so we can verify it.",
				creditor, service,
			))
		},
		Payment: acceptProofOfPayment,
	},
}

// Payment preference labels.
const (
	PreferenceMonthly  = "Monthly Installments"
	PreferenceOnceOff  = "Once-off Settlement"
	PreferenceFull     = "Full Payment"
	PreferenceSettled  = "Paid (R350 consultation)"
	preferenceNotGiven = "Not Specified"
)

// PaymentPreference maps 1/2/3 or a keyword onto a label, else returns raw verbatim.
func PaymentPreference(choice, raw string) string {
	c := strings.ToUpper(strings.TrimSpace(choice))
	switch {
	case c == "1" || strings.Contains(c, "MONTHLY"):
		return PreferenceMonthly
	case c == "2" || strings.Contains(c, "ONCE"):
		return PreferenceOnceOff
	case c == "3" || strings.Contains(c, "FULL"):
		return PreferenceFull
	default:
		return strings.TrimSpace(raw)
	}
}

func choosePaymentPlan(_ context.Context, _ *Engine, sess *models.Session, in flow.Input) (flow.Directive, error) {
	n := sess.Pending.Negotiation
	method := PaymentPreference(in.Choice(), in.Text())
	if method == "" {
		return flow.Reply("Please reply *1*, *2* or *3* to choose your payment plan.").
			With(flow.SendPaymentOptionsPrompt, ""), nil
	}

	n.PaymentPreference = method
	sess.State = state.AwaitingNegotiationPoa
	return flow.AwaitAttachment(fmt.Sprintf(
		"Selected: *%s*.\n\n📄 One moment while I prepare the *Power of Attorney* for your *%s*...",
		method, sess.Pending.ServiceType.Label(),
	), flow.RefPOA), nil
}

func acceptProofOfPayment(ctx context.Context, e *Engine, sess *models.Session, in flow.Input) (flow.Directive, error) {
	n := sess.Pending.Negotiation
	if !in.HasAttachment() {
		return flow.Reply("⚠️ Please upload your *Proof of Payment* as a Document or Screenshot so we can verify your consultation."), nil
	}

	stored, err := e.ingest(ctx, sess, in, "POP")
	if err != nil {
		return flow.IngestRetry("Proof of Payment"), nil
	}

	n.PopURL = stored.URL
	n.PaymentPreference = PreferenceSettled
	sess.AddDocument("Credit Report POP", stored.URL, in.Now)

	return flow.Complete(fmt.Sprintf(
		"✅ *Proof of Payment Received!*\n\nThank you, %s. Our finance team is verifying the R350 payment.\n\nOnce confirmed, we will pull your credit report and email you to begin the analysis. 📊",
		sess.DisplayName(),
	)), nil
}
