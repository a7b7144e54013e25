// Package screening is the prescription eligibility decision tree. Any failed
// rule exits to the menu without producing a request.
package screening

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"intake-workers/internal/common/logger"
	"intake-workers/internal/intake/flow"
	"intake-workers/internal/intake/state"
	"intake-workers/internal/models"
)

const Name = "eligibility-screening"

// MinYearsSincePayment is the prescription period.
const MinYearsSincePayment = 3

const disqualifiedText = "⚠️ *Status: Not Eligible*\n\nBased on your answer, this debt has not prescribed. A debt only prescribes if 3 years have passed without payment, arrangements, or summons.\n\nReply *0* for the Main Menu."

// Exit reasons, also used as audit reasons.
const (
	ReasonYearsSincePayment  = "disqualified:years_since_payment"
	ReasonPaymentArrangement = "disqualified:payment_arrangement"
	ReasonAnyPayments        = "disqualified:any_payments"
	ReasonSummons            = "disqualified:summons"
)

type question struct {
	answerKey string
	reason    string
	next      state.State
	prompt    string
}

// questions is keyed by the state that asks them.
var questions = map[state.State]question{
	state.AwaitingPaymentArrangement: {
		answerKey: models.AnswerPaymentArrangement,
		reason:    ReasonPaymentArrangement,
		next:      state.AwaitingAnyPayments,
		prompt:    "Did you make *any payments* toward this account in the last 3 years?\n\nReply *YES* or *NO*.",
	},
	state.AwaitingAnyPayments: {
		answerKey: models.AnswerAnyPayments,
		reason:    ReasonAnyPayments,
		next:      state.AwaitingSummons,
		prompt:    "Have you ever received a *legal summons* for this specific debt?\n\nReply *YES* or *NO*.",
	},
	state.AwaitingSummons: {
		answerKey: models.AnswerSummons,
		reason:    ReasonSummons,
	},
}

var repeatPrompts = map[state.State]string{
	state.AwaitingPaymentArrangement: "In the past 3 years, did you make any *payment arrangements* with the creditor?\n\nReply *YES* or *NO*.",
	state.AwaitingAnyPayments:        questions[state.AwaitingPaymentArrangement].prompt,
	state.AwaitingSummons:            questions[state.AwaitingAnyPayments].prompt,
}

type Engine struct {
	log logger.Logger
}

func New(log logger.Logger) *Engine {
	return &Engine{log: log.WithFields(map[string]interface{}{"engine": Name})}
}

func (e *Engine) Name() string { return Name }

func (e *Engine) States() []state.State {
	return []state.State{
		state.AwaitingScreeningCreditor,
		state.AwaitingYearsSincePayment,
		state.AwaitingPaymentArrangement,
		state.AwaitingAnyPayments,
		state.AwaitingSummons,
	}
}

func (e *Engine) ServiceTypes() []models.ServiceType {
	return []models.ServiceType{models.ServicePrescription}
}

func (e *Engine) Begin(_ context.Context, sess *models.Session, _ models.ServiceType) (flow.Directive, error) {
	sess.State = state.AwaitingScreeningCreditor
	return flow.Reply("⚖️ *Prescription Check*\n\nA few quick questions to see if your debt has prescribed.\n\nWhich *creditor* is this debt with?"), nil
}

func (e *Engine) Handle(_ context.Context, sess *models.Session, in flow.Input) (flow.Directive, error) {
	if sess.Pending == nil || sess.Pending.Screening == nil {
		return flow.MissingAccumulator(), nil
	}
	s := sess.Pending.Screening
	if s.Answers == nil {
		s.Answers = map[string]bool{}
	}
	sess.Pending.Touch(in.Now)

	switch sess.State {
	case state.AwaitingScreeningCreditor:
		if in.Text() == "" {
			return flow.Reply("Please type the *name of the creditor*."), nil
		}
		s.CreditorName = in.Text()
		sess.State = state.AwaitingYearsSincePayment
		return flow.Reply(fmt.Sprintf(
			"Got it: *%s*.\n\nApproximately how many years has it been since your *last payment*? (e.g., 2, 4, 10)",
			s.CreditorName,
		)), nil

	case state.AwaitingYearsSincePayment:
		years, ok := LeadingInt(in.Text())
		if !ok || years < MinYearsSincePayment {
			if ok {
				s.YearsSinceLastPayment = years
			}
			return flow.Exit(disqualifiedText, ReasonYearsSincePayment), nil
		}
		s.YearsSinceLastPayment = years
		sess.State = state.AwaitingPaymentArrangement
		return flow.Reply(repeatPrompts[state.AwaitingPaymentArrangement]).With(flow.SendYesNoPrompt, ""), nil
	}

	q, ok := questions[sess.State]
	if !ok {
		return flow.Directive{}, fmt.Errorf("%s: state %s not handled", Name, sess.State)
	}

	yes, recognised := flow.YesNo(in.Choice())
	if !recognised {
		return flow.Reply("Please reply *YES* or *NO*.\n\n"+repeatPrompts[sess.State]).With(flow.SendYesNoPrompt, ""), nil
	}
	s.Answers[q.answerKey] = yes
	if yes {
		return flow.Exit(disqualifiedText, q.reason), nil
	}

	if q.next == "" {
		return flow.Complete(fmt.Sprintf(
			"Based on your answers, your debt with *%s* appears to have prescribed. Our team will get back to you shortly.",
			s.CreditorName,
		)), nil
	}

	sess.State = q.next
	return flow.Reply(q.prompt).With(flow.SendYesNoPrompt, ""), nil
}

// LeadingInt parses the leading run of digits, so "5 years" reads as 5.
func LeadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	n, digits := 0, 0
	for _, r := range s {
		if !unicode.IsDigit(r) || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		digits++
		if digits > 4 {
			return 0, false
		}
	}
	return n, digits > 0
}
