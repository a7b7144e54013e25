// internal/workers/intake/handle-inbound-message/handler_test.go
package handleinboundmessage

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/intake/flow"
	"intake-workers/internal/intake/orchestrator"
	"intake-workers/internal/intake/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type mockProcessor struct {
	HandleFunc func(ctx context.Context, ev orchestrator.Event) (*orchestrator.Reply, error)
	events     []orchestrator.Event
}

func (m *mockProcessor) Handle(ctx context.Context, ev orchestrator.Event) (*orchestrator.Reply, error) {
	m.events = append(m.events, ev)
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, ev)
	}
	return &orchestrator.Reply{Text: "ok", State: state.MainMenu}, nil
}

func createTestConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}

func createTestHandler(t *testing.T, processor Processor) *Handler {
	return NewHandler(createTestConfig(), processor, logger.NewTestLogger(t))
}

func createInput(body string) *Input {
	return &Input{
		EventID:  "SM123",
		Identity: "whatsapp:+27821234567",
		Body:     body,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	processor := &mockProcessor{
		HandleFunc: func(_ context.Context, ev orchestrator.Event) (*orchestrator.Reply, error) {
			return &orchestrator.Reply{
				Text:       "🛠️ *Our Services*",
				SideEffect: &flow.SideEffect{Kind: flow.SendTemplateMenu, Ref: flow.RefServicesMenu},
				State:      state.ServicesMenu,
			}, nil
		},
	}
	h := createTestHandler(t, processor)

	output, err := h.Execute(context.Background(), createInput("1"))

	require.NoError(t, err)
	assert.Equal(t, "🛠️ *Our Services*", output.Text)
	assert.Equal(t, "SERVICES_MENU", output.State)
	require.NotNil(t, output.SideEffect)
	assert.Equal(t, flow.RefServicesMenu, output.SideEffect.Ref)

	require.Len(t, processor.events, 1)
	assert.Equal(t, "SM123", processor.events[0].EventID)
	assert.Equal(t, "1", processor.events[0].Body)
}

func TestHandler_Execute_PassesAttachmentAndSelector(t *testing.T) {
	processor := &mockProcessor{}
	h := createTestHandler(t, processor)

	input := createInput("")
	input.Selector = "PAID_UP_LETTER"
	input.AttachmentURL = "https://api.twilio.com/2010-04-01/Accounts/AC1/Messages/MM1/Media/ME1"
	input.MediaType = "image/jpeg"

	_, err := h.Execute(context.Background(), input)

	require.NoError(t, err)
	require.Len(t, processor.events, 1)
	ev := processor.events[0]
	assert.Equal(t, "PAID_UP_LETTER", ev.Selector)
	assert.Equal(t, input.AttachmentURL, ev.AttachmentURL)
	assert.Equal(t, "image/jpeg", ev.MediaType)
}

func TestHandler_Execute_CompletedRequest(t *testing.T) {
	processor := &mockProcessor{
		HandleFunc: func(context.Context, orchestrator.Event) (*orchestrator.Reply, error) {
			return &orchestrator.Reply{Text: "Thank you", State: state.MainMenu, RequestID: "req-1", Duplicate: true}, nil
		},
	}
	h := createTestHandler(t, processor)

	output, err := h.Execute(context.Background(), createInput("done"))

	require.NoError(t, err)
	assert.Equal(t, "req-1", output.RequestID)
	assert.True(t, output.Duplicate)
	assert.Nil(t, output.SideEffect)
}

// ==========================
// Validation Tests
// ==========================

func TestHandler_Execute_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *Input)
	}{
		{name: "missing event id", mutate: func(in *Input) { in.EventID = "" }},
		{name: "missing identity", mutate: func(in *Input) { in.Identity = "" }},
		{name: "identity is not a phone", mutate: func(in *Input) { in.Identity = "someone@example.com" }},
		{name: "bad attachment url", mutate: func(in *Input) { in.AttachmentURL = "not a url" }},
		{name: "empty event", mutate: func(in *Input) { in.Body = "   " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &mockProcessor{}
			h := createTestHandler(t, processor)
			input := createInput("hi")
			tt.mutate(input)

			output, err := h.Execute(context.Background(), input)

			require.Error(t, err)
			assert.Nil(t, output)
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidEvent))
			assert.Empty(t, processor.events)
		})
	}
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_ProcessorError(t *testing.T) {
	processor := &mockProcessor{
		HandleFunc: func(context.Context, orchestrator.Event) (*orchestrator.Reply, error) {
			return nil, errors.NewIdentityLockTimeoutError("whatsapp:+27821234567")
		},
	}
	h := createTestHandler(t, processor)

	_, err := h.Execute(context.Background(), createInput("hi"))

	require.Error(t, err)
	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodeIdentityLockTimeout, stdErr.Code)
	assert.Equal(t, 2, errors.ConvertToBPMNError(stdErr).Retries)
}

func TestHandler_Execute_ForeignErrorIsInternal(t *testing.T) {
	processor := &mockProcessor{
		HandleFunc: func(context.Context, orchestrator.Event) (*orchestrator.Reply, error) {
			return nil, stderrors.New("boom")
		},
	}
	h := createTestHandler(t, processor)

	_, err := h.Execute(context.Background(), createInput("hi"))

	require.Error(t, err)
	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodeInternal, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}
