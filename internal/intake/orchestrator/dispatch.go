package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/metrics"
	"intake-workers/internal/intake/audit"
	"intake-workers/internal/intake/flow"
	"intake-workers/internal/intake/state"
	"intake-workers/internal/intake/store"
	"intake-workers/internal/models"
)

const (
	welcomeText = "Welcome to *MKH Debtors & Solutions*. 🏢\n\n" +
		"I am your assistant. By continuing with this chat, you agree that you comply with our *Terms & Conditions*.\n\n" +
		"Please enter your *ID Number* to access your profile."
	unknownStateText = "Hello! Send 'Hi' to open the menu."
)

// Event outcomes used for metrics.
const (
	outcomeNewSession   = "new_session"
	outcomeReset        = "reset"
	outcomeMenu         = "menu"
	outcomeOnboarding   = "onboarding"
	outcomeRouted       = "routed"
	outcomeCompleted    = "completed"
	outcomeExited       = "exited"
	outcomeLedgerFailed = "ledger_failed"
	outcomeRecovered    = "recovered"
	outcomeDuplicate    = "duplicate"
)

// turn carries one event through dispatch.
type turn struct {
	ev   Event
	in   flow.Input
	sess *models.Session
	from state.State
}

func (o *Orchestrator) dispatch(ctx context.Context, ev Event) (*Reply, string, error) {
	now := o.now()
	in := flow.Input{Body: ev.Body, Selector: ev.Selector, Now: now}
	if ev.AttachmentURL != "" {
		in.Attachment = &flow.Attachment{URL: ev.AttachmentURL, MediaType: ev.MediaType}
	}

	sess, err := o.deps.Sessions.Get(ctx, ev.Identity)
	if stderrors.Is(err, store.ErrNotFound) {
		return o.firstContact(ctx, ev, now)
	}
	if err != nil {
		return nil, "", err
	}

	if sess.Handled(ev.EventID) {
		// Already applied; the dedupe cache missed it.
		o.log.Info("Duplicate event recognised from session row", map[string]interface{}{
			"identity": sess.Identity,
			"eventId":  ev.EventID,
		})
		return &Reply{Text: sess.LastReply, State: sess.State, Duplicate: true}, outcomeDuplicate, nil
	}

	t := &turn{ev: ev, in: in, sess: sess, from: sess.State}

	if !sess.State.Valid() {
		o.log.Error("Session in unknown state, resetting to main menu", map[string]interface{}{
			"identity": sess.Identity,
			"state":    string(sess.State),
		})
		sess.ResetToMenu()
		return o.persist(ctx, t, flow.Reply(unknownStateText).With(flow.SendTemplateMenu, flow.RefMainMenu), outcomeRecovered)
	}

	if !sess.State.IsOnboarding() && o.reset[strings.ToLower(in.Text())] {
		sess.ResetToMenu()
		return o.persist(ctx, t, mainMenu(sess), outcomeReset)
	}

	switch sess.State.Partition() {
	case state.PartitionMenu:
		return o.handleMenu(ctx, t)
	case state.PartitionOnboarding:
		return o.handleOnboarding(ctx, t)
	}

	eng, ok := o.deps.Registry.Owner(sess.State)
	if !ok {
		// Unreachable while the registry is exhaustive.
		o.log.Error("Routed state has no owner", map[string]interface{}{"state": string(sess.State)})
		sess.ResetToMenu()
		return o.persist(ctx, t, flow.Reply(unknownStateText).With(flow.SendTemplateMenu, flow.RefMainMenu), outcomeRecovered)
	}

	d, err := eng.Handle(ctx, sess, in)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", eng.Name(), err)
	}
	return o.apply(ctx, t, eng, d)
}

func (o *Orchestrator) firstContact(ctx context.Context, ev Event, now time.Time) (*Reply, string, error) {
	sess := models.NewSession(ev.Identity, now)
	sess.MarkHandled(ev.EventID, welcomeText)
	err := o.deps.Sessions.Create(ctx, sess)
	if stderrors.Is(err, store.ErrAlreadyExists) {
		// Created by a concurrent first message; process this one normally.
		return o.dispatch(ctx, ev)
	}
	if err != nil {
		return nil, "", err
	}

	o.log.Info("New session created", map[string]interface{}{"identity": ev.Identity})
	return &Reply{Text: welcomeText, State: sess.State}, outcomeNewSession, nil
}

// startService resets the accumulator for serviceType and hands the session to its engine.
func (o *Orchestrator) startService(ctx context.Context, t *turn, serviceType models.ServiceType) (*Reply, string, error) {
	eng, ok := o.deps.Registry.ForService(serviceType)
	if !ok {
		return nil, "", fmt.Errorf("no engine for service type %s", serviceType)
	}

	t.sess.StartPending(serviceType, t.in.Now)
	d, err := eng.Begin(ctx, t.sess, serviceType)
	if err != nil {
		return nil, "", fmt.Errorf("%s: begin %s: %w", eng.Name(), serviceType, err)
	}
	return o.apply(ctx, t, eng, d)
}

// apply enacts an engine directive and persists the session.
func (o *Orchestrator) apply(ctx context.Context, t *turn, eng flow.Engine, d flow.Directive) (*Reply, string, error) {
	switch d.Effect {
	case flow.EffectComplete:
		return o.finalize(ctx, t, d)

	case flow.EffectExit:
		return o.exit(ctx, t, d)

	default:
		if owner, ok := o.deps.Registry.Owner(t.sess.State); !ok || owner.Name() != eng.Name() {
			return nil, "", fmt.Errorf("%s left its states without completing (state %s)", eng.Name(), t.sess.State)
		}
		return o.persist(ctx, t, d, outcomeRouted)
	}
}

func (o *Orchestrator) exit(ctx context.Context, t *turn, d flow.Directive) (*Reply, string, error) {
	var exit audit.Exit
	if t.sess.Pending != nil {
		exit = audit.Exit{
			Identity:    t.sess.Identity,
			ServiceType: t.sess.Pending.ServiceType,
			Reason:      d.Reason,
			Pending:     t.sess.Pending.Clone(),
			At:          t.in.Now,
		}
	}

	t.sess.ResetToMenu()
	reply, outcome, err := o.persist(ctx, t, d, outcomeExited)
	if err != nil {
		return nil, "", err
	}

	if strings.HasPrefix(d.Reason, "disqualified:") {
		metrics.IntakeDisqualifications.WithLabelValues(string(exit.ServiceType)).Inc()
	}
	if d.Reason != "" && exit.Identity != "" {
		if err := o.deps.Audit.Record(ctx, exit); err != nil {
			o.log.Warn("Exit audit failed", map[string]interface{}{
				"identity": t.sess.Identity,
				"reason":   d.Reason,
				"error":    err,
			})
		}
	}
	return reply, outcome, nil
}

// finalize writes the ledger row and the reset session in one transaction.
func (o *Orchestrator) finalize(ctx context.Context, t *turn, d flow.Directive) (*Reply, string, error) {
	snapshot := t.sess.Pending.Clone()
	req := o.deps.Ledger.NewRecord(t.sess, snapshot, t.ev.EventID, t.in.Now)

	working := t.sess.Clone()
	working.ResetToMenu()
	working.MarkHandled(t.ev.EventID, d.Text)

	inserted := false
	err := o.deps.Tx.WithTx(ctx, func(ex Execer) error {
		ok, err := o.deps.Ledger.InsertTx(ctx, ex, req)
		if err != nil {
			return err
		}
		inserted = ok
		return o.deps.Sessions.SaveWith(ctx, ex, working)
	})

	if err != nil {
		if errors.HasCode(err, errors.ErrCodeSessionConflict) {
			return nil, "", err
		}

		metrics.IntakeFinalizations.WithLabelValues(string(req.ServiceType), "failed").Inc()
		o.log.Error("Finalization failed, returning session to main menu", map[string]interface{}{
			"identity":    t.sess.Identity,
			"serviceType": string(req.ServiceType),
			"error":       err,
		})

		t.sess.ResetToMenu()
		t.sess.MarkHandled(t.ev.EventID, flow.GenericErrorText)
		if err := o.deps.Sessions.Save(ctx, t.sess); err != nil {
			return nil, "", err
		}
		o.transition(t)
		return &Reply{Text: flow.GenericErrorText, State: t.sess.State}, outcomeLedgerFailed, nil
	}

	*t.sess = *working
	o.transition(t)

	result := "recorded"
	if !inserted {
		result = "duplicate"
	}
	metrics.IntakeFinalizations.WithLabelValues(string(req.ServiceType), result).Inc()
	o.log.Info("Service request finalized", map[string]interface{}{
		"identity":    t.sess.Identity,
		"requestId":   req.ID,
		"serviceType": string(req.ServiceType),
		"inserted":    inserted,
	})

	if inserted {
		o.afterCommit(ctx, req)
	}

	return &Reply{
		Text:       d.Text,
		SideEffect: d.SideEffect,
		State:      t.sess.State,
		RequestID:  req.ID,
	}, outcomeCompleted, nil
}

// afterCommit runs best-effort fan-out of a recorded request.
func (o *Orchestrator) afterCommit(ctx context.Context, req models.ServiceRequest) {
	if o.deps.Indexer != nil {
		if err := o.deps.Indexer.Index(ctx, req); err != nil {
			o.log.Warn("Request indexing failed", map[string]interface{}{"requestId": req.ID, "error": err})
		}
	}
	if err := o.deps.Alerts.RequestFinalized(ctx, req); err != nil {
		o.log.Warn("Admin alert failed", map[string]interface{}{"requestId": req.ID, "error": err})
	}
}

// persist saves the session and turns d into a reply.
func (o *Orchestrator) persist(ctx context.Context, t *turn, d flow.Directive, outcome string) (*Reply, string, error) {
	t.sess.MarkHandled(t.ev.EventID, d.Text)
	if err := o.deps.Sessions.Save(ctx, t.sess); err != nil {
		return nil, "", err
	}
	o.transition(t)
	return &Reply{Text: d.Text, SideEffect: d.SideEffect, State: t.sess.State}, outcome, nil
}

func (o *Orchestrator) transition(t *turn) {
	if t.from == t.sess.State {
		return
	}
	metrics.IntakeTransitions.WithLabelValues(string(t.from), string(t.sess.State)).Inc()
	o.log.Debug("State transition", map[string]interface{}{
		"identity": t.sess.Identity,
		"from":     string(t.from),
		"to":       string(t.sess.State),
	})
}
