// Package store persists sessions in Postgres with optimistic versioning.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/intake/state"
	"intake-workers/internal/models"
)

var (
	ErrNotFound      = stderrors.New("session not found")
	ErrAlreadyExists = stderrors.New("session already exists")
)

const sessionColumns = `identity, legal_id, full_name, email, account_status, state, pending,
	documents, outstanding_balance, version, created_at, updated_at, last_event_id, last_reply`

const (
	selectByIdentity = `SELECT ` + sessionColumns + ` FROM sessions WHERE identity = $1`
	selectByLegalID  = `SELECT ` + sessionColumns + ` FROM sessions WHERE legal_id = $1`

	insertSession = `INSERT INTO sessions (` + sessionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (identity) DO NOTHING`

	updateSession = `UPDATE sessions SET
		legal_id = $2, full_name = $3, email = $4, account_status = $5, state = $6,
		pending = $7, documents = $8, outstanding_balance = $9,
		version = version + 1, updated_at = $10, last_event_id = $12, last_reply = $13
	WHERE identity = $1 AND version = $11`
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type Store struct {
	db  *sql.DB
	log logger.Logger
	now func() time.Time
}

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:  db,
		log: log.WithFields(map[string]interface{}{"component": "session-store"}),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// DB exposes the pool for callers that open a finalization transaction.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Get loads the session for identity or returns ErrNotFound.
func (s *Store) Get(ctx context.Context, identity string) (*models.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, selectByIdentity, identity))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.NewSessionLoadFailedError(identity, err)
	}
	return sess, nil
}

// FindByLegalID returns the session bound to a legal ID, or ErrNotFound.
func (s *Store) FindByLegalID(ctx context.Context, legalID string) (*models.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, selectByLegalID, legalID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.NewSessionLoadFailedError(legalID, err)
	}
	return sess, nil
}

// Create inserts a first-contact session. A concurrent creator wins with ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, sess *models.Session) error {
	args, err := sessionArgs(sess)
	if err != nil {
		return errors.NewSessionSaveFailedError(sess.Identity, err)
	}

	res, err := s.db.ExecContext(ctx, insertSession,
		sess.Identity, args.legalID, sess.FullName, sess.Email, string(sess.AccountStatus),
		string(sess.State), args.pending, args.documents, sess.OutstandingBalance,
		sess.Version, sess.CreatedAt, sess.UpdatedAt, sess.LastEventID, sess.LastReply,
	)
	if err != nil {
		return errors.NewSessionSaveFailedError(sess.Identity, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// Save replaces the stored session if its version still matches, then bumps sess.Version.
func (s *Store) Save(ctx context.Context, sess *models.Session) error {
	return s.SaveWith(ctx, s.db, sess)
}

// SaveWith is Save on an explicit executor, typically a transaction.
func (s *Store) SaveWith(ctx context.Context, ex Execer, sess *models.Session) error {
	if !sess.State.Valid() {
		return errors.NewSessionSaveFailedError(sess.Identity, fmt.Errorf("refusing to persist unknown state %q", sess.State))
	}

	args, err := sessionArgs(sess)
	if err != nil {
		return errors.NewSessionSaveFailedError(sess.Identity, err)
	}

	now := s.now()
	res, err := ex.ExecContext(ctx, updateSession,
		sess.Identity, args.legalID, sess.FullName, sess.Email, string(sess.AccountStatus),
		string(sess.State), args.pending, args.documents, sess.OutstandingBalance,
		now, sess.Version, sess.LastEventID, sess.LastReply,
	)
	if err != nil {
		return errors.NewSessionSaveFailedError(sess.Identity, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewSessionSaveFailedError(sess.Identity, err)
	}
	if n == 0 {
		s.log.Warn("Session version conflict", map[string]interface{}{
			"identity": sess.Identity,
			"version":  sess.Version,
		})
		return errors.NewSessionConflictError(sess.Identity, sess.Version)
	}

	sess.Version++
	sess.UpdatedAt = now
	return nil
}

type encodedArgs struct {
	legalID   sql.NullString
	pending   interface{}
	documents []byte
}

func sessionArgs(sess *models.Session) (encodedArgs, error) {
	var out encodedArgs
	if sess.LegalID != "" {
		out.legalID = sql.NullString{String: sess.LegalID, Valid: true}
	}

	if sess.Pending != nil {
		b, err := json.Marshal(sess.Pending)
		if err != nil {
			return out, fmt.Errorf("encode pending: %w", err)
		}
		out.pending = b
	}

	docs := sess.Documents
	if docs == nil {
		docs = []models.Document{}
	}
	b, err := json.Marshal(docs)
	if err != nil {
		return out, fmt.Errorf("encode documents: %w", err)
	}
	out.documents = b
	return out, nil
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var (
		sess      models.Session
		legalID   sql.NullString
		status    string
		st        string
		pending   []byte
		documents []byte
	)

	err := row.Scan(
		&sess.Identity, &legalID, &sess.FullName, &sess.Email, &status, &st, &pending,
		&documents, &sess.OutstandingBalance, &sess.Version, &sess.CreatedAt, &sess.UpdatedAt,
		&sess.LastEventID, &sess.LastReply,
	)
	if err != nil {
		return nil, err
	}

	sess.LegalID = legalID.String
	sess.AccountStatus = models.AccountStatus(status)
	sess.State = state.State(st)

	if len(pending) > 0 && string(pending) != "null" {
		sess.Pending = &models.PendingRequest{}
		if err := json.Unmarshal(pending, sess.Pending); err != nil {
			return nil, fmt.Errorf("decode pending: %w", err)
		}
	}

	sess.Documents = []models.Document{}
	if len(documents) > 0 {
		if err := json.Unmarshal(documents, &sess.Documents); err != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}
	}

	return &sess, nil
}
