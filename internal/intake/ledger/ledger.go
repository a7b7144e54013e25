// Package ledger records finalized service requests. Rows are append-only from
// the intake core; status changes belong to admin tooling.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for an unknown request ID.
var ErrNotFound = stderrors.New("service request not found")

const requestColumns = `id, owner_identity, display_name, phone, service_type, status, details,
	source_event_id, created_at`

const (
	insertRequest = `INSERT INTO service_requests (` + requestColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (source_event_id) DO NOTHING`

	selectRecent = `SELECT ` + requestColumns + ` FROM service_requests
	WHERE owner_identity = $1
	ORDER BY created_at DESC
	LIMIT $2`

	selectByStatus = `SELECT ` + requestColumns + ` FROM service_requests
	WHERE status = $1
	ORDER BY created_at ASC
	LIMIT $2`

	selectByID = `SELECT ` + requestColumns + ` FROM service_requests WHERE id = $1`
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type Ledger struct {
	db    *sql.DB
	log   logger.Logger
	newID func() string
}

func New(db *sql.DB, log logger.Logger) *Ledger {
	return &Ledger{
		db:    db,
		log:   log.WithFields(map[string]interface{}{"component": "request-ledger"}),
		newID: func() string { return uuid.New().String() },
	}
}

// NewRecord builds the PENDING request for a completed sub-flow. details is the
// accumulator snapshot taken before the session was reset.
func (l *Ledger) NewRecord(sess *models.Session, details *models.PendingRequest, sourceEventID string, now time.Time) models.ServiceRequest {
	serviceType := models.ServiceFileUpdate
	var snap models.PendingRequest
	if details != nil {
		snap = *details.Clone()
		if snap.ServiceType.Valid() {
			serviceType = snap.ServiceType
		}
	}
	snap.ServiceType = serviceType

	return models.ServiceRequest{
		ID:            l.newID(),
		OwnerIdentity: sess.Identity,
		DisplayName:   sess.DisplayName(),
		Phone:         sess.Phone(),
		ServiceType:   serviceType,
		Status:        models.StatusPending,
		Details:       snap,
		SourceEventID: sourceEventID,
		CreatedAt:     now,
	}
}

// InsertTx appends req on ex. It reports false when a request for the same
// source event already exists, which makes redelivered events harmless.
func (l *Ledger) InsertTx(ctx context.Context, ex Execer, req models.ServiceRequest) (bool, error) {
	details, err := json.Marshal(req.Details)
	if err != nil {
		return false, errors.NewLedgerWriteFailedError(fmt.Errorf("encode details: %w", err))
	}

	var source sql.NullString
	if req.SourceEventID != "" {
		source = sql.NullString{String: req.SourceEventID, Valid: true}
	}

	res, err := ex.ExecContext(ctx, insertRequest,
		req.ID, req.OwnerIdentity, req.DisplayName, req.Phone, string(req.ServiceType),
		string(req.Status), details, source, req.CreatedAt,
	)
	if err != nil {
		return false, errors.NewLedgerWriteFailedError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewLedgerWriteFailedError(err)
	}
	if n == 0 {
		l.log.Info("Service request already recorded for event", map[string]interface{}{
			"sourceEventId": req.SourceEventID,
		})
		return false, nil
	}
	return true, nil
}

// Recent returns the owner's newest requests, newest first.
func (l *Ledger) Recent(ctx context.Context, ownerIdentity string, limit int) ([]models.ServiceRequest, error) {
	return l.query(ctx, selectRecent, ownerIdentity, limit)
}

// ListByStatus returns the oldest requests in status, for admin work queues.
func (l *Ledger) ListByStatus(ctx context.Context, status models.RequestStatus, limit int) ([]models.ServiceRequest, error) {
	return l.query(ctx, selectByStatus, string(status), limit)
}

func (l *Ledger) Get(ctx context.Context, id string) (*models.ServiceRequest, error) {
	rows, err := l.query(ctx, selectByID, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (l *Ledger) query(ctx context.Context, q string, args ...interface{}) ([]models.ServiceRequest, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.NewLedgerQueryFailedError(err)
	}
	defer rows.Close()

	var out []models.ServiceRequest
	for rows.Next() {
		var (
			req         models.ServiceRequest
			serviceType string
			status      string
			details     []byte
			source      sql.NullString
		)
		if err := rows.Scan(
			&req.ID, &req.OwnerIdentity, &req.DisplayName, &req.Phone, &serviceType, &status,
			&details, &source, &req.CreatedAt,
		); err != nil {
			return nil, errors.NewLedgerQueryFailedError(err)
		}

		req.ServiceType = models.ServiceType(serviceType)
		req.Status = models.RequestStatus(status)
		req.SourceEventID = source.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &req.Details); err != nil {
				return nil, errors.NewLedgerQueryFailedError(fmt.Errorf("decode details of %s: %w", req.ID, err))
			}
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewLedgerQueryFailedError(err)
	}
	return out, nil
}
