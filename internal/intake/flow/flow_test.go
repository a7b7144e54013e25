package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"intake-workers/internal/intake/state"
	"intake-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

type stubEngine struct {
	name     string
	states   []state.State
	services []models.ServiceType
}

func (s *stubEngine) Name() string                       { return s.name }
func (s *stubEngine) States() []state.State              { return s.states }
func (s *stubEngine) ServiceTypes() []models.ServiceType { return s.services }
func (s *stubEngine) Begin(context.Context, *models.Session, models.ServiceType) (Directive, error) {
	return Reply("begin"), nil
}
func (s *stubEngine) Handle(context.Context, *models.Session, Input) (Directive, error) {
	return Reply("handle"), nil
}

// catchAll owns every routed state and service type.
func catchAll() *stubEngine {
	return &stubEngine{name: "all", states: state.Routed(), services: models.ServiceTypes}
}

// ==========================
// Registry Tests
// ==========================

func TestRegistry_Exhaustive(t *testing.T) {
	r, err := NewRegistry(catchAll())
	require.NoError(t, err)

	e, ok := r.Owner(state.AwaitingSummons)
	assert.True(t, ok)
	assert.Equal(t, "all", e.Name())

	_, ok = r.Owner(state.MainMenu)
	assert.False(t, ok)

	_, ok = r.ForService(models.ServiceCarApplication)
	assert.True(t, ok)
}

func TestRegistry_RejectsGap(t *testing.T) {
	partial := &stubEngine{
		name:     "partial",
		states:   []state.State{state.AwaitingCarDocuments},
		services: models.ServiceTypes,
	}
	_, err := NewRegistry(partial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state AWAITING_SUMMONS")
}

func TestRegistry_RejectsOverlap(t *testing.T) {
	dup := &stubEngine{name: "dup", states: []state.State{state.AwaitingSummons}}
	_, err := NewRegistry(catchAll(), dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owned by both")
}

func TestRegistry_RejectsGlobalState(t *testing.T) {
	bad := &stubEngine{name: "bad", states: []state.State{state.MainMenu}}
	_, err := NewRegistry(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-routed")
}

// ==========================
// Input and Text Tests
// ==========================

func TestYesNo(t *testing.T) {
	for _, in := range []string{"yes", "YEA", " yup ", "1"} {
		yes, ok := YesNo(in)
		assert.True(t, ok, in)
		assert.True(t, yes, in)
	}
	for _, in := range []string{"no", "Nah", "n", "2"} {
		yes, ok := YesNo(in)
		assert.True(t, ok, in)
		assert.False(t, yes, in)
	}
	_, ok := YesNo("maybe")
	assert.False(t, ok)
}

func TestInputChoicePrefersSelector(t *testing.T) {
	assert.Equal(t, "VIEW_STATUS", Input{Body: "2", Selector: "view_status"}.Choice())
	assert.Equal(t, "MONTHLY PLEASE", Input{Body: "  monthly please "}.Choice())
	assert.False(t, Input{Attachment: &Attachment{}}.HasAttachment())
}

func TestClassifyMedia(t *testing.T) {
	assert.Equal(t, MediaPhoto, ClassifyMedia("image/jpeg"))
	assert.Equal(t, MediaDocument, ClassifyMedia("application/pdf"))
	assert.Equal(t, MediaDocument, ClassifyMedia("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	assert.Equal(t, MediaDocument, ClassifyMedia("Application/PDF; charset=binary"))
	assert.Equal(t, MediaOther, ClassifyMedia("audio/ogg"))
	assert.Equal(t, MediaOther, ClassifyMedia(""))
}

func TestDirectiveConstructors(t *testing.T) {
	d := AwaitAttachment("sign this", RefPOA)
	assert.Equal(t, EffectAwaitAttachmentSend, d.Effect)
	require.NotNil(t, d.SideEffect)
	assert.Equal(t, SendDocumentTemplate, d.SideEffect.Kind)

	x := Exit("bye", "disqualified")
	assert.Equal(t, EffectExit, x.Effect)
	assert.Equal(t, "disqualified", x.Reason)

	y := Reply("q").With(SendYesNoPrompt, "")
	assert.Equal(t, SendYesNoPrompt, y.SideEffect.Kind)
	assert.Equal(t, "complete", EffectComplete.String())
}

func TestAdvanceSkipsRetry(t *testing.T) {
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	later := start.Add(time.Hour)
	sess := models.NewSession("whatsapp:+27820000009", start)
	sess.StartPending(models.ServicePaidUpLetter, start)

	d, err := Advance(sess, later, IngestRetry("POA"), nil)
	require.NoError(t, err)
	assert.True(t, d.Retry)
	assert.Equal(t, IngestRetryText("POA"), d.Text)
	assert.Equal(t, start, sess.Pending.LastActivity)

	_, err = Advance(sess, later, Reply("next"), errors.New("boom"))
	require.Error(t, err)
	assert.Equal(t, start, sess.Pending.LastActivity)

	_, err = Advance(sess, later, Reply("next"), nil)
	require.NoError(t, err)
	assert.Equal(t, later, sess.Pending.LastActivity)
}
