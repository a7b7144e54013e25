package orchestrator

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"intake-workers/internal/common/config"
	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/intake/audit"
	"intake-workers/internal/intake/flow"
	"intake-workers/internal/intake/flow/flowtest"
	"intake-workers/internal/intake/flows"
	"intake-workers/internal/intake/ledger"
	"intake-workers/internal/intake/state"
	"intake-workers/internal/intake/store"
	"intake-workers/internal/models"

	"github.com/stretchr/testify/require"
)

// ==========================
// In-memory Collaborators
// ==========================

// memTx buffers writes until the transactor commits them.
type memTx struct {
	sessions []*models.Session
	requests []models.ServiceRequest
}

func (*memTx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, stderrors.New("memTx does not run SQL")
}

type memSessions struct {
	mu      sync.Mutex
	byID    map[string]*models.Session
	saveErr error
	saves   int
}

func newMemSessions() *memSessions {
	return &memSessions{byID: map[string]*models.Session{}}
}

func (m *memSessions) Get(_ context.Context, identity string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[identity]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memSessions) FindByLegalID(_ context.Context, legalID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.LegalID == legalID {
			return s.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memSessions) Create(_ context.Context, sess *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[sess.Identity]; ok {
		return store.ErrAlreadyExists
	}
	m.byID[sess.Identity] = sess.Clone()
	return nil
}

func (m *memSessions) Save(ctx context.Context, sess *models.Session) error {
	return m.SaveWith(ctx, nil, sess)
}

func (m *memSessions) SaveWith(_ context.Context, ex store.Execer, sess *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if !sess.State.Valid() {
		return errors.NewSessionSaveFailedError(sess.Identity, fmt.Errorf("unknown state %s", sess.State))
	}
	stored, ok := m.byID[sess.Identity]
	if !ok || stored.Version != sess.Version {
		return errors.NewSessionConflictError(sess.Identity, sess.Version)
	}

	sess.Version++
	if tx, ok := ex.(*memTx); ok {
		tx.sessions = append(tx.sessions, sess.Clone())
		return nil
	}
	m.byID[sess.Identity] = sess.Clone()
	m.saves++
	return nil
}

// put stores sess as if it had been loaded from the database.
func (m *memSessions) put(sess *models.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[sess.Identity] = sess.Clone()
}

type memLedger struct {
	*ledger.Ledger
	mu        sync.Mutex
	requests  []models.ServiceRequest
	insertErr error
}

func newMemLedger(t *testing.T) *memLedger {
	return &memLedger{Ledger: ledger.New(nil, logger.NewTestLogger(t))}
}

func (m *memLedger) InsertTx(_ context.Context, ex ledger.Execer, req models.ServiceRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	for _, r := range m.requests {
		if req.SourceEventID != "" && r.SourceEventID == req.SourceEventID {
			return false, nil
		}
	}
	if tx, ok := ex.(*memTx); ok {
		tx.requests = append(tx.requests, req)
		return true, nil
	}
	m.requests = append(m.requests, req)
	return true, nil
}

func (m *memLedger) Recent(_ context.Context, owner string, limit int) ([]models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ServiceRequest
	for _, r := range m.requests {
		if r.OwnerIdentity == owner {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLedger) all() []models.ServiceRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ServiceRequest(nil), m.requests...)
}

type memTransactor struct {
	sessions  *memSessions
	ledger    *memLedger
	commitErr error
}

func (m *memTransactor) WithTx(_ context.Context, fn func(ex Execer) error) error {
	tx := &memTx{}
	if err := fn(tx); err != nil {
		return err
	}
	if m.commitErr != nil {
		return m.commitErr
	}
	for _, s := range tx.sessions {
		m.sessions.put(s)
	}
	m.ledger.mu.Lock()
	m.ledger.requests = append(m.ledger.requests, tx.requests...)
	m.ledger.mu.Unlock()
	return nil
}

type recNotifier struct {
	mu   sync.Mutex
	sent []flow.SideEffect
	err  error
}

func (r *recNotifier) Send(_ context.Context, _ string, se flow.SideEffect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, se)
	return r.err
}

type recAlerts struct {
	requests []models.ServiceRequest
}

func (r *recAlerts) RequestFinalized(_ context.Context, req models.ServiceRequest) error {
	r.requests = append(r.requests, req)
	return nil
}

type recIndexer struct {
	requests []models.ServiceRequest
	err      error
}

func (r *recIndexer) Index(_ context.Context, req models.ServiceRequest) error {
	r.requests = append(r.requests, req)
	return r.err
}

type recAudit struct {
	exits []audit.Exit
}

func (r *recAudit) Record(_ context.Context, exit audit.Exit) error {
	r.exits = append(r.exits, exit)
	return nil
}

// ==========================
// Test Harness
// ==========================

const testIdentity = "whatsapp:+27821234567"

var testNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	t        *testing.T
	o        *Orchestrator
	sessions *memSessions
	ledger   *memLedger
	tx       *memTransactor
	ingest   *flowtest.Ingestor
	notifier *recNotifier
	alerts   *recAlerts
	indexer  *recIndexer
	audit    *recAudit
	events   int
}

func createTestIntakeConfig() config.IntakeConfig {
	return config.IntakeConfig{
		ResetKeywords:      []string{"hi", "hello", "hey", "menu", "start", "restart", "0"},
		CompletionKeywords: []string{"done", "submit", "finish"},
		CarMaxAttachments:  3,
		RecentRequestLimit: 3,
	}
}

func newHarness(t *testing.T, mutate ...func(*Dependencies)) *harness {
	h := &harness{
		t:        t,
		sessions: newMemSessions(),
		ledger:   newMemLedger(t),
		ingest:   &flowtest.Ingestor{},
		notifier: &recNotifier{},
		alerts:   &recAlerts{},
		indexer:  &recIndexer{},
		audit:    &recAudit{},
	}
	h.tx = &memTransactor{sessions: h.sessions, ledger: h.ledger}

	cfg := createTestIntakeConfig()
	log := logger.NewTestLogger(t)
	registry, err := flows.NewRegistry(cfg, flows.Dependencies{Ingestor: h.ingest, Requests: h.ledger}, log)
	require.NoError(t, err)

	deps := Dependencies{
		Sessions: h.sessions,
		Ledger:   h.ledger,
		Tx:       h.tx,
		Registry: registry,
		Notifier: h.notifier,
		Alerts:   h.alerts,
		Indexer:  h.indexer,
		Audit:    h.audit,
	}
	for _, m := range mutate {
		m(&deps)
	}

	h.o, err = New(deps, Options{ResetKeywords: cfg.ResetKeywords}, log)
	require.NoError(t, err)
	h.o.now = func() time.Time { return testNow }
	return h
}

func (h *harness) event(ev Event) *Reply {
	h.t.Helper()
	if ev.Identity == "" {
		ev.Identity = testIdentity
	}
	if ev.EventID == "" {
		h.events++
		ev.EventID = fmt.Sprintf("evt-%d", h.events)
	}
	reply, err := h.o.Handle(context.Background(), ev)
	require.NoError(h.t, err)
	return reply
}

func (h *harness) send(body string) *Reply {
	h.t.Helper()
	return h.event(Event{Body: body})
}

func (h *harness) choose(selector string) *Reply {
	h.t.Helper()
	return h.event(Event{Selector: selector})
}

func (h *harness) upload(url, mediaType string) *Reply {
	h.t.Helper()
	return h.event(Event{AttachmentURL: url, MediaType: mediaType})
}

func (h *harness) session() *models.Session {
	h.t.Helper()
	sess, err := h.sessions.Get(context.Background(), testIdentity)
	require.NoError(h.t, err)
	return sess
}

// seedActive stores an onboarded session parked on st.
func (h *harness) seedActive(st state.State) *models.Session {
	sess := models.NewSession(testIdentity, testNow.Add(-24*time.Hour))
	sess.LegalID = "9001015800087"
	sess.FullName = "Lerato Khumalo"
	sess.Email = "lerato@example.com"
	sess.AccountStatus = models.AccountActive
	sess.State = st
	h.sessions.put(sess)
	return sess
}
