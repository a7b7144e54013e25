package models

import "time"

// PendingRequest is the accumulator of an in-progress sub-flow. Exactly one
// variant pointer is set, matching ServiceType.Variant().
type PendingRequest struct {
	ServiceType  ServiceType `json:"serviceType"`
	StartedAt    time.Time   `json:"startedAt"`
	LastActivity time.Time   `json:"lastActivity"`

	DocumentRequest *DocumentRequestDetails `json:"documentRequest,omitempty"`
	Negotiation     *NegotiationDetails     `json:"negotiation,omitempty"`
	Screening       *ScreeningDetails       `json:"screening,omitempty"`
	FileQuery       *FileQueryDetails       `json:"fileQuery,omitempty"`
	CarFinance      *CarFinanceDetails      `json:"carFinance,omitempty"`
}

type DocumentRequestDetails struct {
	CreditorName    string `json:"creditorName,omitempty"`
	RequestIDNumber string `json:"requestIdNumber,omitempty"`
	PoaURL          string `json:"poaUrl,omitempty"`
	PorURL          string `json:"porUrl,omitempty"`
}

type NegotiationDetails struct {
	CreditorName      string `json:"creditorName,omitempty"`
	PaymentPreference string `json:"paymentPreference,omitempty"`
	PoaURL            string `json:"poaUrl,omitempty"`
	PorURL            string `json:"porUrl,omitempty"`
	PopURL            string `json:"popUrl,omitempty"`
}

// Screening answer keys.
const (
	AnswerPaymentArrangement = "paymentArrangement"
	AnswerAnyPayments        = "anyPayments"
	AnswerSummons            = "summons"
)

type ScreeningDetails struct {
	CreditorName          string          `json:"creditorName,omitempty"`
	YearsSinceLastPayment int             `json:"yearsSinceLastPayment,omitempty"`
	Answers               map[string]bool `json:"answers,omitempty"`
}

type FileQueryDetails struct {
	Query string `json:"query,omitempty"`
}

type CarFinanceDetails struct {
	StagedURLs []string `json:"stagedUrls,omitempty"`
}

// NewPendingRequest creates an accumulator with the variant serviceType needs.
func NewPendingRequest(serviceType ServiceType, now time.Time) *PendingRequest {
	p := &PendingRequest{
		ServiceType:  serviceType,
		StartedAt:    now,
		LastActivity: now,
	}
	switch serviceType.Variant() {
	case VariantDocumentRequest:
		p.DocumentRequest = &DocumentRequestDetails{}
	case VariantNegotiation:
		p.Negotiation = &NegotiationDetails{}
	case VariantScreening:
		p.Screening = &ScreeningDetails{Answers: map[string]bool{}}
	case VariantFileQuery:
		p.FileQuery = &FileQueryDetails{}
	case VariantCarFinance:
		p.CarFinance = &CarFinanceDetails{}
	}
	return p
}

// Touch records activity on the accumulator.
func (p *PendingRequest) Touch(now time.Time) {
	p.LastActivity = now
}

// CreditorName returns the creditor captured by whichever variant is active.
func (p *PendingRequest) CreditorName() string {
	switch {
	case p == nil:
		return ""
	case p.DocumentRequest != nil:
		return p.DocumentRequest.CreditorName
	case p.Negotiation != nil:
		return p.Negotiation.CreditorName
	case p.Screening != nil:
		return p.Screening.CreditorName
	default:
		return ""
	}
}

// Clone returns a deep copy; nil stays nil.
func (p *PendingRequest) Clone() *PendingRequest {
	if p == nil {
		return nil
	}
	out := *p
	if p.DocumentRequest != nil {
		v := *p.DocumentRequest
		out.DocumentRequest = &v
	}
	if p.Negotiation != nil {
		v := *p.Negotiation
		out.Negotiation = &v
	}
	if p.Screening != nil {
		v := *p.Screening
		if p.Screening.Answers != nil {
			v.Answers = make(map[string]bool, len(p.Screening.Answers))
			for k, a := range p.Screening.Answers {
				v.Answers[k] = a
			}
		}
		out.Screening = &v
	}
	if p.FileQuery != nil {
		v := *p.FileQuery
		out.FileQuery = &v
	}
	if p.CarFinance != nil {
		v := *p.CarFinance
		v.StagedURLs = append([]string(nil), p.CarFinance.StagedURLs...)
		out.CarFinance = &v
	}
	return &out
}
