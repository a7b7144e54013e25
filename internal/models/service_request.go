package models

import (
	"strings"
	"time"
)

// ServiceType is the product a finalized request belongs to.
type ServiceType string

const (
	ServicePaidUpLetter      ServiceType = "PAID_UP_LETTER"
	ServicePrescription      ServiceType = "PRESCRIPTION"
	ServiceCreditReport      ServiceType = "CREDIT_REPORT"
	ServiceSettlement        ServiceType = "SETTLEMENT"
	ServiceDefaultClearing   ServiceType = "DEFAULT_CLEARING"
	ServiceArrangement       ServiceType = "ARRANGEMENT"
	ServiceJudgmentRemoval   ServiceType = "JUDGMENT_REMOVAL"
	ServiceCarApplication    ServiceType = "CAR_APPLICATION"
	ServiceDebtReviewRemoval ServiceType = "DEBT_REVIEW_REMOVAL"
	ServiceFileUpdate        ServiceType = "FILE_UPDATE"
)

// ServiceTypes lists every service type in menu order.
var ServiceTypes = []ServiceType{
	ServicePaidUpLetter,
	ServicePrescription,
	ServiceCreditReport,
	ServiceSettlement,
	ServiceDefaultClearing,
	ServiceArrangement,
	ServiceJudgmentRemoval,
	ServiceDebtReviewRemoval,
	ServiceCarApplication,
	ServiceFileUpdate,
}

// Variant names the accumulator shape a service type collects.
type Variant string

const (
	VariantNone            Variant = ""
	VariantDocumentRequest Variant = "documentRequest"
	VariantNegotiation     Variant = "negotiation"
	VariantScreening       Variant = "screening"
	VariantFileQuery       Variant = "fileQuery"
	VariantCarFinance      Variant = "carFinance"
)

func (t ServiceType) Variant() Variant {
	switch t {
	case ServicePaidUpLetter:
		return VariantDocumentRequest
	case ServiceCreditReport, ServiceSettlement, ServiceDefaultClearing,
		ServiceArrangement, ServiceJudgmentRemoval, ServiceDebtReviewRemoval:
		return VariantNegotiation
	case ServicePrescription:
		return VariantScreening
	case ServiceFileUpdate:
		return VariantFileQuery
	case ServiceCarApplication:
		return VariantCarFinance
	default:
		return VariantNone
	}
}

func (t ServiceType) Valid() bool {
	return t.Variant() != VariantNone
}

// Label renders PAID_UP_LETTER as "Paid Up Letter".
func (t ServiceType) Label() string {
	words := strings.Split(strings.ToLower(string(t)), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// RequestStatus is mutated only by admin tooling after creation.
type RequestStatus string

const (
	StatusPending    RequestStatus = "PENDING"
	StatusProcessing RequestStatus = "PROCESSING"
	StatusCompleted  RequestStatus = "COMPLETED"
	StatusRejected   RequestStatus = "REJECTED"
)

// ServiceRequest is the immutable record written when a sub-flow completes.
type ServiceRequest struct {
	ID            string         `json:"id" db:"id"`
	OwnerIdentity string         `json:"ownerIdentity" db:"owner_identity"`
	DisplayName   string         `json:"displayName" db:"display_name"`
	Phone         string         `json:"phone" db:"phone"`
	ServiceType   ServiceType    `json:"serviceType" db:"service_type"`
	Status        RequestStatus  `json:"status" db:"status"`
	Details       PendingRequest `json:"details" db:"details"`
	SourceEventID string         `json:"sourceEventId,omitempty" db:"source_event_id"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
}
