package models

import (
	"strings"
	"time"

	"intake-workers/internal/intake/state"
)

// AccountStatus is the lifecycle of a client account.
type AccountStatus string

const (
	AccountLead   AccountStatus = "Lead"
	AccountActive AccountStatus = "Active"
	AccountClosed AccountStatus = "Closed"
)

// Document is one historical attachment on a session. Entries are only ever appended.
type Document struct {
	Kind       string    `json:"kind" db:"kind"`
	URL        string    `json:"url" db:"url"`
	UploadedAt time.Time `json:"uploadedAt" db:"uploaded_at"`
}

// Session is the durable conversation record of one external identity.
type Session struct {
	Identity           string          `json:"identity" db:"identity"`
	LegalID            string          `json:"legalId,omitempty" db:"legal_id"`
	FullName           string          `json:"fullName,omitempty" db:"full_name"`
	Email              string          `json:"email,omitempty" db:"email"`
	AccountStatus      AccountStatus   `json:"accountStatus" db:"account_status"`
	State              state.State     `json:"state" db:"state"`
	Pending            *PendingRequest `json:"pending,omitempty" db:"pending"`
	Documents          []Document      `json:"documents" db:"documents"`
	OutstandingBalance float64         `json:"outstandingBalance" db:"outstanding_balance"`
	Version            int64           `json:"version" db:"version"`
	CreatedAt          time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time       `json:"updatedAt" db:"updated_at"`

	// LastEventID and LastReply describe the last event applied to this row.
	LastEventID string `json:"lastEventId,omitempty" db:"last_event_id"`
	LastReply   string `json:"lastReply,omitempty" db:"last_reply"`
}

// NewSession creates a first-contact session in the onboarding entry state.
func NewSession(identity string, now time.Time) *Session {
	return &Session{
		Identity:      identity,
		AccountStatus: AccountLead,
		State:         state.Initial,
		Documents:     []Document{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AddDocument appends to the document history.
func (s *Session) AddDocument(kind, url string, at time.Time) {
	s.Documents = append(s.Documents, Document{Kind: kind, URL: url, UploadedAt: at})
}

// StartPending replaces any accumulator with a fresh one for serviceType.
func (s *Session) StartPending(serviceType ServiceType, now time.Time) *PendingRequest {
	s.Pending = NewPendingRequest(serviceType, now)
	return s.Pending
}

// ResetToMenu drops the accumulator and parks the session on the main menu.
func (s *Session) ResetToMenu() {
	s.State = state.MainMenu
	s.Pending = nil
}

// MarkHandled stamps the event being applied, so the same save that moves the
// state also records which event moved it.
func (s *Session) MarkHandled(eventID, reply string) {
	s.LastEventID = eventID
	s.LastReply = reply
}

// Handled reports whether eventID is the event last applied to the session.
func (s *Session) Handled(eventID string) bool {
	return eventID != "" && s.LastEventID == eventID
}

// Phone returns the identity without a channel prefix such as "whatsapp:".
func (s *Session) Phone() string {
	if i := strings.Index(s.Identity, ":"); i >= 0 {
		return s.Identity[i+1:]
	}
	return s.Identity
}

// DisplayName is the name shown to admins and used in greetings.
func (s *Session) DisplayName() string {
	if s.FullName != "" {
		return s.FullName
	}
	return s.Phone()
}

// Clone deep-copies the session so a failed write can be retried from a clean copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Pending = s.Pending.Clone()
	out.Documents = append([]Document(nil), s.Documents...)
	return &out
}
