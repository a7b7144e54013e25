package fileintake

import (
	"context"
	"errors"
	"testing"
	"time"

	"intake-workers/internal/common/logger"
	"intake-workers/internal/intake/flow"
	"intake-workers/internal/intake/flow/flowtest"
	"intake-workers/internal/intake/state"
	"intake-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const identity = "whatsapp:+27820000004"

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func createTestRequests() []models.ServiceRequest {
	var out []models.ServiceRequest
	for i, st := range []models.ServiceType{
		models.ServiceSettlement, models.ServicePaidUpLetter, models.ServicePrescription, models.ServiceCarApplication,
	} {
		out = append(out, models.ServiceRequest{
			ID:            "req-" + string(st),
			OwnerIdentity: identity,
			ServiceType:   st,
			Status:        models.StatusPending,
			CreatedAt:     testNow.AddDate(0, 0, -i),
		})
	}
	return out
}

func newSession() *models.Session {
	sess := models.NewSession(identity, testNow)
	sess.State = state.MainMenu
	sess.StartPending(models.ServiceFileUpdate, testNow)
	return sess
}

func TestFileIntake_ListsThreeMostRecent(t *testing.T) {
	e := New(&flowtest.Lister{Requests: createTestRequests()}, 3, logger.NewTestLogger(t))
	sess := newSession()

	d, err := e.Begin(context.Background(), sess, models.ServiceFileUpdate)
	require.NoError(t, err)
	assert.Equal(t, flow.EffectNone, d.Effect)
	assert.Equal(t, state.AwaitingFileUpdateQuery, sess.State)
	assert.Contains(t, d.Text, "1. *Settlement*")
	assert.Contains(t, d.Text, "3. *Prescription*")
	assert.NotContains(t, d.Text, "Car Application")
	assert.Contains(t, d.Text, "Opened: 2026-05-04")

	d, err = e.Handle(context.Background(), sess, flow.Input{Body: "When will my letter be ready?", Now: testNow})
	require.NoError(t, err)
	assert.Equal(t, flow.EffectComplete, d.Effect)
	assert.Equal(t, "When will my letter be ready?", sess.Pending.FileQuery.Query)
}

func TestFileIntake_NoFilesExits(t *testing.T) {
	e := New(&flowtest.Lister{}, 3, logger.NewTestLogger(t))
	sess := newSession()

	d, err := e.Begin(context.Background(), sess, models.ServiceFileUpdate)
	require.NoError(t, err)
	assert.Equal(t, flow.EffectExit, d.Effect)
	assert.Equal(t, ReasonNoFiles, d.Reason)
	assert.Equal(t, state.MainMenu, sess.State)
}

func TestFileIntake_ListerError(t *testing.T) {
	e := New(&flowtest.Lister{Err: errors.New("db down")}, 3, logger.NewTestLogger(t))
	_, err := e.Begin(context.Background(), newSession(), models.ServiceFileUpdate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestFileIntake_BlankQueryReprompts(t *testing.T) {
	e := New(&flowtest.Lister{Requests: createTestRequests()}, 3, logger.NewTestLogger(t))
	sess := newSession()
	_, err := e.Begin(context.Background(), sess, models.ServiceFileUpdate)
	require.NoError(t, err)

	d, err := e.Handle(context.Background(), sess, flow.Input{Body: "  ", Now: testNow})
	require.NoError(t, err)
	assert.Equal(t, flow.EffectNone, d.Effect)
	assert.Empty(t, sess.Pending.FileQuery.Query)
}
