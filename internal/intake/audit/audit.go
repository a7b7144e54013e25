// Package audit records sub-flow exits that end without a service request.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/models"
)

const insertAudit = `INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
	VALUES ($1, $2, $3, $4, $5)`

// Exit describes one sub-flow that returned to the menu without finalizing.
type Exit struct {
	Identity    string                 `json:"identity"`
	ServiceType models.ServiceType     `json:"serviceType"`
	Reason      string                 `json:"reason"`
	Pending     *models.PendingRequest `json:"pending,omitempty"`
	At          time.Time              `json:"at"`
}

// Hook is the seam the orchestrator calls on every reasoned exit.
type Hook interface {
	Record(ctx context.Context, exit Exit) error
}

// Log writes exits to the audit_log table.
type Log struct {
	db  *sql.DB
	log logger.Logger
}

func NewLog(db *sql.DB, log logger.Logger) *Log {
	return &Log{db: db, log: log.WithFields(map[string]interface{}{"component": "audit"})}
}

func (l *Log) Record(ctx context.Context, exit Exit) error {
	details, err := json.Marshal(exit)
	if err != nil {
		return errors.NewAuditWriteFailedError(err)
	}

	_, err = l.db.ExecContext(ctx, insertAudit,
		"intake_exit",
		"session",
		exit.Identity,
		details,
		exit.At,
	)
	if err != nil {
		l.log.Warn("audit log insert failed", map[string]interface{}{
			"error":    err,
			"identity": exit.Identity,
			"reason":   exit.Reason,
		})
		return errors.NewAuditWriteFailedError(err)
	}
	return nil
}

// Nop discards exits; used when auditing is disabled.
type Nop struct{}

func (Nop) Record(context.Context, Exit) error { return nil }
