package flow

import (
	"fmt"
	"time"

	"intake-workers/internal/models"
)

// Effect tells the orchestrator what to do after emitting a directive's text.
type Effect int

const (
	// EffectNone keeps the session where the engine left it.
	EffectNone Effect = iota
	// EffectAwaitAttachmentSend pushes a document template the user must return signed.
	EffectAwaitAttachmentSend
	// EffectComplete snapshots the accumulator and finalizes a ServiceRequest.
	EffectComplete
	// EffectExit returns to the main menu without finalizing.
	EffectExit
)

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectAwaitAttachmentSend:
		return "await_attachment_send"
	case EffectComplete:
		return "complete"
	case EffectExit:
		return "exit"
	default:
		return fmt.Sprintf("effect(%d)", int(e))
	}
}

// SideEffectKind is the outbound action the notifier performs next to the text.
type SideEffectKind string

const (
	SendTemplateMenu         SideEffectKind = "SEND_TEMPLATE_MENU"
	SendDocumentTemplate     SideEffectKind = "SEND_DOCUMENT_TEMPLATE"
	SendYesNoPrompt          SideEffectKind = "SEND_YES_NO_PROMPT"
	SendPaymentOptionsPrompt SideEffectKind = "SEND_PAYMENT_OPTIONS_PROMPT"
	SendDocument             SideEffectKind = "SEND_DOCUMENT"
)

// Template and document references carried in SideEffect.Ref.
const (
	RefMainMenu     = "main_menu"
	RefServicesMenu = "services_menu"
	RefPOA          = "POA"
)

type SideEffect struct {
	Kind SideEffectKind `json:"kind"`
	Ref  string         `json:"ref,omitempty"`
}

// Directive is an engine's answer to one turn.
type Directive struct {
	Text       string
	Effect     Effect
	SideEffect *SideEffect
	// Reason explains an EffectExit, e.g. "disqualified:years_since_payment".
	Reason string
	// Retry marks a reply that left the accumulator as it was.
	Retry bool
}

// Advance records activity on the accumulator once a step has succeeded.
// A retry reply leaves LastActivity where it was.
func Advance(sess *models.Session, now time.Time, d Directive, err error) (Directive, error) {
	if err == nil && !d.Retry && sess.Pending != nil {
		sess.Pending.Touch(now)
	}
	return d, err
}

func Reply(text string) Directive {
	return Directive{Text: text, Effect: EffectNone}
}

// AwaitAttachment asks the notifier to send the document template ref.
func AwaitAttachment(text, ref string) Directive {
	return Directive{
		Text:       text,
		Effect:     EffectAwaitAttachmentSend,
		SideEffect: &SideEffect{Kind: SendDocumentTemplate, Ref: ref},
	}
}

func Complete(text string) Directive {
	return Directive{Text: text, Effect: EffectComplete}
}

func Exit(text, reason string) Directive {
	return Directive{Text: text, Effect: EffectExit, Reason: reason}
}

// With attaches a side effect to a directive.
func (d Directive) With(kind SideEffectKind, ref string) Directive {
	d.SideEffect = &SideEffect{Kind: kind, Ref: ref}
	return d
}
