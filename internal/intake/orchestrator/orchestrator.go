// Package orchestrator runs the top-level conversation state machine: first
// contact, global reset, onboarding, menus, delegation to sub-flow engines and
// finalization of completed requests.
package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"intake-workers/internal/common/database"
	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/common/metrics"
	"intake-workers/internal/intake/audit"
	"intake-workers/internal/intake/flow"
	"intake-workers/internal/intake/guard"
	"intake-workers/internal/intake/ledger"
	"intake-workers/internal/intake/notify"
	"intake-workers/internal/intake/state"
	"intake-workers/internal/intake/store"
	"intake-workers/internal/models"
)

// Event is one inbound message.
type Event struct {
	EventID       string
	Identity      string
	Body          string
	Selector      string
	AttachmentURL string
	MediaType     string
}

// Reply is the outbound directive for the channel plus bookkeeping for callers.
type Reply struct {
	Text       string           `json:"text"`
	SideEffect *flow.SideEffect `json:"sideEffect,omitempty"`
	State      state.State      `json:"state"`
	RequestID  string           `json:"requestId,omitempty"`
	Duplicate  bool             `json:"duplicate,omitempty"`
}

// Execer is the statement surface shared by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Sessions is the identity store.
type Sessions interface {
	Get(ctx context.Context, identity string) (*models.Session, error)
	FindByLegalID(ctx context.Context, legalID string) (*models.Session, error)
	Create(ctx context.Context, sess *models.Session) error
	Save(ctx context.Context, sess *models.Session) error
	SaveWith(ctx context.Context, ex store.Execer, sess *models.Session) error
}

// Ledger records finalized requests.
type Ledger interface {
	NewRecord(sess *models.Session, details *models.PendingRequest, sourceEventID string, now time.Time) models.ServiceRequest
	InsertTx(ctx context.Context, ex ledger.Execer, req models.ServiceRequest) (bool, error)
}

// Transactor runs fn as one unit of work.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ex Execer) error) error
}

// Indexer mirrors a recorded request into search.
type Indexer interface {
	Index(ctx context.Context, req models.ServiceRequest) error
}

type Locker interface {
	Acquire(ctx context.Context, identity string) (guard.Release, error)
}

type Deduper interface {
	Seen(ctx context.Context, identity, eventID string, out interface{}) (bool, error)
	Remember(ctx context.Context, identity, eventID string, reply interface{}) error
}

// EventRecorder receives per-event timings, e.g. *observability.Observability.
type EventRecorder interface {
	RecordEvent(ctx context.Context, state, outcome string, duration time.Duration)
}

// Dependencies wires the orchestrator. Sessions, Ledger, Tx and Registry are
// required; the rest fall back to no-ops.
type Dependencies struct {
	Sessions Sessions
	Ledger   Ledger
	Tx       Transactor
	Registry *flow.Registry

	Notifier notify.Notifier
	Alerts   notify.RequestAlerter
	Indexer  Indexer
	Audit    audit.Hook
	Locker   Locker
	Dedupe   Deduper
	Recorder EventRecorder
}

type Options struct {
	ResetKeywords []string
}

type Orchestrator struct {
	deps  Dependencies
	reset map[string]bool
	log   logger.Logger
	now   func() time.Time
}

func New(deps Dependencies, opts Options, log logger.Logger) (*Orchestrator, error) {
	if deps.Sessions == nil || deps.Ledger == nil || deps.Tx == nil || deps.Registry == nil {
		return nil, fmt.Errorf("orchestrator: sessions, ledger, tx and registry are required")
	}
	if err := deps.Registry.CheckExhaustive(); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Alerts == nil {
		deps.Alerts = notify.Nop{}
	}
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}

	reset := map[string]bool{}
	for _, k := range opts.ResetKeywords {
		reset[strings.ToLower(strings.TrimSpace(k))] = true
	}

	return &Orchestrator{
		deps:  deps,
		reset: reset,
		log:   log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Handle processes one inbound event under the identity's lock. A redelivered
// event ID returns the reply recorded the first time without re-applying it.
func (o *Orchestrator) Handle(ctx context.Context, ev Event) (*Reply, error) {
	start := time.Now()
	if strings.TrimSpace(ev.Identity) == "" {
		return nil, errors.NewInvalidEventError("identity is required")
	}

	if o.deps.Locker != nil {
		release, err := o.deps.Locker.Acquire(ctx, ev.Identity)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				o.log.Warn("Identity lock release failed", map[string]interface{}{
					"identity": ev.Identity,
					"error":    err,
				})
			}
		}()
	}

	if o.deps.Dedupe != nil {
		var cached Reply
		seen, err := o.deps.Dedupe.Seen(ctx, ev.Identity, ev.EventID, &cached)
		if err != nil {
			return nil, err
		}
		if seen {
			o.log.Info("Duplicate event replayed from cache", map[string]interface{}{
				"identity": ev.Identity,
				"eventId":  ev.EventID,
			})
			cached.Duplicate = true
			o.record(ctx, cached.State, outcomeDuplicate, start)
			return &cached, nil
		}
	}

	reply, outcome, err := o.dispatch(ctx, ev)
	if err != nil {
		metrics.IntakeEventsHandled.WithLabelValues("error").Inc()
		o.record(ctx, "", "error", start)
		return nil, err
	}

	if o.deps.Dedupe != nil {
		if err := o.deps.Dedupe.Remember(ctx, ev.Identity, ev.EventID, reply); err != nil {
			o.log.Warn("Failed to remember event reply", map[string]interface{}{
				"eventId": ev.EventID,
				"error":   err,
			})
		}
	}

	if reply.SideEffect != nil {
		if err := o.deps.Notifier.Send(ctx, ev.Identity, *reply.SideEffect); err != nil {
			o.log.Warn("Side effect delivery failed", map[string]interface{}{
				"identity": ev.Identity,
				"kind":     string(reply.SideEffect.Kind),
				"error":    err,
			})
		}
	}

	metrics.IntakeEventsHandled.WithLabelValues(outcome).Inc()
	o.record(ctx, reply.State, outcome, start)
	return reply, nil
}

func (o *Orchestrator) record(ctx context.Context, st state.State, outcome string, start time.Time) {
	if o.deps.Recorder != nil {
		o.deps.Recorder.RecordEvent(ctx, string(st), outcome, time.Since(start))
	}
}

// SQLTransactor runs units of work in Postgres transactions.
type SQLTransactor struct {
	DB *sql.DB
}

func (t SQLTransactor) WithTx(ctx context.Context, fn func(ex Execer) error) error {
	return database.WithTx(ctx, t.DB, func(tx *sql.Tx) error {
		return fn(tx)
	})
}
