// internal/workers/intake/list-service-requests/models.go
package listservicerequests

import (
	"time"

	"intake-workers/internal/models"
)

// Query modes.
const (
	ModeRecent = "recent"
	ModeStatus = "status"
	ModeSearch = "search"
)

type Input struct {
	Mode          string `json:"mode"`
	OwnerIdentity string `json:"ownerIdentity,omitempty"`
	Status        string `json:"status,omitempty"`
	Text          string `json:"text,omitempty"`
	ServiceType   string `json:"serviceType,omitempty"`
	Phone         string `json:"phone,omitempty"`
	From          int    `json:"from,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

// RequestSummary is the admin-facing view of one request.
type RequestSummary struct {
	ID           string    `json:"id"`
	Owner        string    `json:"ownerIdentity"`
	DisplayName  string    `json:"displayName"`
	Phone        string    `json:"phone"`
	ServiceType  string    `json:"serviceType"`
	Status       string    `json:"status"`
	CreditorName string    `json:"creditorName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Output struct {
	Requests  []RequestSummary `json:"requests"`
	TotalHits int64            `json:"totalHits"`
	Took      int64            `json:"took,omitempty"` // milliseconds, search mode only
}

func summarize(req models.ServiceRequest) RequestSummary {
	return RequestSummary{
		ID:           req.ID,
		Owner:        req.OwnerIdentity,
		DisplayName:  req.DisplayName,
		Phone:        req.Phone,
		ServiceType:  string(req.ServiceType),
		Status:       string(req.Status),
		CreditorName: req.Details.CreditorName(),
		CreatedAt:    req.CreatedAt,
	}
}

const inputSchema = `{
	"type": "object",
	"required": ["mode"],
	"properties": {
		"mode":          {"type": "string", "enum": ["recent", "status", "search"]},
		"ownerIdentity": {"type": "string", "maxLength": 64},
		"status":        {"type": "string", "enum": ["PENDING", "PROCESSING", "COMPLETED", "REJECTED"]},
		"text":          {"type": "string", "maxLength": 256},
		"serviceType":   {"type": "string", "maxLength": 64},
		"phone":         {"type": "string", "maxLength": 32},
		"from":          {"type": "integer", "minimum": 0},
		"limit":         {"type": "integer", "minimum": 0, "maximum": 100}
	}
}`
