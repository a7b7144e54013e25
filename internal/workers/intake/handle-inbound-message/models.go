// internal/workers/intake/handle-inbound-message/models.go
package handleinboundmessage

import "intake-workers/internal/intake/flow"

type Input struct {
	EventID       string `json:"eventId"`
	Identity      string `json:"identity"`
	Body          string `json:"body"`
	Selector      string `json:"selector,omitempty"`
	AttachmentURL string `json:"attachmentUrl,omitempty"`
	MediaType     string `json:"mediaType,omitempty"`
}

type Output struct {
	Text       string           `json:"text"`
	SideEffect *flow.SideEffect `json:"sideEffect,omitempty"`
	State      string           `json:"state"`
	RequestID  string           `json:"requestId,omitempty"`
	Duplicate  bool             `json:"duplicate"`
}

const inputSchema = `{
	"type": "object",
	"required": ["eventId", "identity"],
	"properties": {
		"eventId":       {"type": "string", "minLength": 1, "maxLength": 128},
		"identity":      {"type": "string", "minLength": 1, "maxLength": 64},
		"body":          {"type": "string", "maxLength": 4096},
		"selector":      {"type": "string", "maxLength": 64},
		"attachmentUrl": {"type": "string", "maxLength": 2048},
		"mediaType":     {"type": "string", "maxLength": 128}
	}
}`
