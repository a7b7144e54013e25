package ledger

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var (
	testNow            = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)
	requestColumnNames = []string{
		"id", "owner_identity", "display_name", "phone", "service_type", "status", "details",
		"source_event_id", "created_at",
	}
)

func createTestLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	l := New(db, logger.NewTestLogger(t))
	l.newID = func() string { return "req-1" }
	return l, mock, func() { db.Close() }
}

func createTestSession() *models.Session {
	sess := models.NewSession("whatsapp:+27825550000", testNow)
	sess.FullName = "Thabo Mokoena"
	sess.StartPending(models.ServiceSettlement, testNow)
	sess.Pending.Negotiation.CreditorName = "XYZ Credit"
	sess.Pending.Negotiation.PaymentPreference = "Monthly Installments"
	return sess
}

// ==========================
// NewRecord Tests
// ==========================

func TestNewRecord_SnapshotsAccumulator(t *testing.T) {
	l, _, done := createTestLedger(t)
	defer done()

	sess := createTestSession()
	req := l.NewRecord(sess, sess.Pending, "evt-1", testNow)

	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, models.ServiceSettlement, req.ServiceType)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.Equal(t, "Thabo Mokoena", req.DisplayName)
	assert.Equal(t, "+27825550000", req.Phone)
	require.NotNil(t, req.Details.Negotiation)
	assert.Equal(t, "XYZ Credit", req.Details.Negotiation.CreditorName)

	// Later mutations of the session must not leak into the record.
	sess.Pending.Negotiation.CreditorName = "changed"
	assert.Equal(t, "XYZ Credit", req.Details.Negotiation.CreditorName)
}

func TestNewRecord_MissingServiceTypeFallsBackToFileUpdate(t *testing.T) {
	l, _, done := createTestLedger(t)
	defer done()

	sess := createTestSession()
	req := l.NewRecord(sess, nil, "evt-2", testNow)
	assert.Equal(t, models.ServiceFileUpdate, req.ServiceType)
	assert.Equal(t, models.ServiceFileUpdate, req.Details.ServiceType)
}

// ==========================
// InsertTx Tests
// ==========================

func TestInsertTx_Inserted(t *testing.T) {
	l, mock, done := createTestLedger(t)
	defer done()

	sess := createTestSession()
	req := l.NewRecord(sess, sess.Pending, "evt-1", testNow)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO service_requests`).
		WithArgs("req-1", sess.Identity, "Thabo Mokoena", "+27825550000", "SETTLEMENT", "PENDING",
			sqlmock.AnyArg(), "evt-1", testNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := l.db.Begin()
	require.NoError(t, err)
	inserted, err := l.InsertTx(context.Background(), tx, req)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTx_DuplicateEvent(t *testing.T) {
	l, mock, done := createTestLedger(t)
	defer done()

	sess := createTestSession()
	mock.ExpectExec(`INSERT INTO service_requests`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := l.InsertTx(context.Background(), l.db, l.NewRecord(sess, sess.Pending, "evt-1", testNow))
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestInsertTx_DatabaseError(t *testing.T) {
	l, mock, done := createTestLedger(t)
	defer done()

	sess := createTestSession()
	mock.ExpectExec(`INSERT INTO service_requests`).
		WillReturnError(stderrors.New("relation does not exist"))

	_, err := l.InsertTx(context.Background(), l.db, l.NewRecord(sess, sess.Pending, "evt-1", testNow))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLedgerWriteFailed))
}

// ==========================
// Query Tests
// ==========================

func TestRecent(t *testing.T) {
	l, mock, done := createTestLedger(t)
	defer done()

	rows := sqlmock.NewRows(requestColumnNames).
		AddRow("req-2", "whatsapp:+1", "A", "+1", "CAR_APPLICATION", "PROCESSING",
			[]byte(`{"serviceType":"CAR_APPLICATION","carFinance":{"stagedUrls":["u1"]}}`), "evt-2", testNow).
		AddRow("req-1", "whatsapp:+1", "A", "+1", "PAID_UP_LETTER", "PENDING",
			[]byte(`{"serviceType":"PAID_UP_LETTER"}`), nil, testNow.Add(-time.Hour))

	mock.ExpectQuery(`SELECT (.+) FROM service_requests WHERE owner_identity = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("whatsapp:+1", 3).
		WillReturnRows(rows)

	got, err := l.Recent(context.Background(), "whatsapp:+1", 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.ServiceCarApplication, got[0].ServiceType)
	assert.Equal(t, models.StatusProcessing, got[0].Status)
	require.NotNil(t, got[0].Details.CarFinance)
	assert.Equal(t, []string{"u1"}, got[0].Details.CarFinance.StagedURLs)
	assert.Empty(t, got[1].SourceEventID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecent_QueryError(t *testing.T) {
	l, mock, done := createTestLedger(t)
	defer done()

	mock.ExpectQuery(`SELECT (.+) FROM service_requests`).
		WillReturnError(stderrors.New("timeout"))

	_, err := l.Recent(context.Background(), "whatsapp:+1", 3)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLedgerQueryFailed))
}

func TestListByStatus(t *testing.T) {
	l, mock, done := createTestLedger(t)
	defer done()

	mock.ExpectQuery(`SELECT (.+) FROM service_requests WHERE status = \$1`).
		WithArgs("PENDING", 10).
		WillReturnRows(sqlmock.NewRows(requestColumnNames).
			AddRow("req-1", "whatsapp:+1", "A", "+1", "PRESCRIPTION", "PENDING", []byte(`{}`), "evt-1", testNow))

	got, err := l.ListByStatus(context.Background(), models.StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.ServicePrescription, got[0].ServiceType)
}

func TestGet_NotFound(t *testing.T) {
	l, mock, done := createTestLedger(t)
	defer done()

	mock.ExpectQuery(`SELECT (.+) FROM service_requests WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(requestColumnNames))

	_, err := l.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
