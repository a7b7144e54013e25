// Package notify delivers directive side effects to the messaging channel and
// alerts admins about new service requests.
package notify

import (
	"context"

	"intake-workers/internal/intake/flow"
	"intake-workers/internal/models"
)

// Notifier performs a directive's side effect for identity.
type Notifier interface {
	Send(ctx context.Context, identity string, se flow.SideEffect) error
}

// RequestAlerter is told about every newly recorded service request.
type RequestAlerter interface {
	RequestFinalized(ctx context.Context, req models.ServiceRequest) error
}

// Nop drops everything. Used when no channel bridge is configured.
type Nop struct{}

func (Nop) Send(context.Context, string, flow.SideEffect) error { return nil }

func (Nop) RequestFinalized(context.Context, models.ServiceRequest) error { return nil }
