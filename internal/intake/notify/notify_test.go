package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/intake/flow"
	"intake-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock AWS Clients
// ==========================

type mockPublisher struct {
	PublishFunc func(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
	inputs      []*sns.PublishInput
}

func (m *mockPublisher) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	m.inputs = append(m.inputs, input)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, input)
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

type mockEmailSender struct {
	SendEmailFunc func(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
	inputs        []*ses.SendEmailInput
}

func (m *mockEmailSender) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	m.inputs = append(m.inputs, input)
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, input)
	}
	return &ses.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func decodeMessage(t *testing.T, input *sns.PublishInput) ChannelMessage {
	var msg ChannelMessage
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(input.Message)), &msg))
	return msg
}

// ==========================
// SNSNotifier Tests
// ==========================

func TestSNSNotifier_ResolvesTemplates(t *testing.T) {
	tests := []struct {
		name       string
		se         flow.SideEffect
		templateID string
		mediaURL   string
	}{
		{"main menu", flow.SideEffect{Kind: flow.SendTemplateMenu, Ref: flow.RefMainMenu}, "HX-main", ""},
		{"services menu", flow.SideEffect{Kind: flow.SendTemplateMenu, Ref: flow.RefServicesMenu}, "HX-services", ""},
		{"poa template", flow.SideEffect{Kind: flow.SendDocumentTemplate, Ref: flow.RefPOA}, "HX-poa", ""},
		{"yes no", flow.SideEffect{Kind: flow.SendYesNoPrompt}, "HX-yesno", ""},
		{"payment options", flow.SideEffect{Kind: flow.SendPaymentOptionsPrompt}, "HX-pay", ""},
		{"document delivery", flow.SideEffect{Kind: flow.SendDocument, Ref: "https://cdn/doc.pdf"}, "", "https://cdn/doc.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			n := NewSNSNotifier(pub, "arn:aws:sns:af-south-1:1:channel", map[string]string{
				"main_menu":       "HX-main",
				"services_menu":   "HX-services",
				"POA":             "HX-poa",
				"yes_no":          "HX-yesno",
				"payment_options": "HX-pay",
			}, logger.NewTestLogger(t))

			require.NoError(t, n.Send(context.Background(), "whatsapp:+1", tt.se))
			require.Len(t, pub.inputs, 1)

			assert.Equal(t, "arn:aws:sns:af-south-1:1:channel", aws.ToString(pub.inputs[0].TopicArn))
			assert.Equal(t, string(tt.se.Kind), aws.ToString(pub.inputs[0].MessageAttributes["kind"].StringValue))

			msg := decodeMessage(t, pub.inputs[0])
			assert.Equal(t, "whatsapp:+1", msg.Identity)
			assert.Equal(t, tt.templateID, msg.TemplateID)
			assert.Equal(t, tt.mediaURL, msg.MediaURL)
		})
	}
}

func TestSNSNotifier_PublishError(t *testing.T) {
	pub := &mockPublisher{
		PublishFunc: func(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
			return nil, stderrors.New("throttled")
		},
	}
	n := NewSNSNotifier(pub, "arn", nil, logger.NewTestLogger(t))

	err := n.Send(context.Background(), "whatsapp:+1", flow.SideEffect{Kind: flow.SendYesNoPrompt})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotificationSendFailed))
}

// ==========================
// AdminAlerts Tests
// ==========================

func createTestRequest() models.ServiceRequest {
	details := models.NewPendingRequest(models.ServiceSettlement, time.Now())
	details.Negotiation.CreditorName = "XYZ Credit"
	details.Negotiation.PaymentPreference = "Once-off Settlement"
	details.Negotiation.PoaURL = "https://cdn/poa.pdf"
	return models.ServiceRequest{
		ID:          "req-5",
		DisplayName: "Sipho Dube",
		Phone:       "+27831234567",
		ServiceType: models.ServiceSettlement,
		Status:      models.StatusPending,
		Details:     *details,
		CreatedAt:   time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC),
	}
}

func TestNewAdminAlerts_Validation(t *testing.T) {
	log := logger.NewTestLogger(t)

	_, err := NewAdminAlerts(&mockEmailSender{}, "not-an-email", []string{"ops@mkh.co.za"}, log)
	assert.Error(t, err)

	_, err = NewAdminAlerts(&mockEmailSender{}, "noreply@mkh.co.za", nil, log)
	assert.Error(t, err)

	_, err = NewAdminAlerts(&mockEmailSender{}, "noreply@mkh.co.za", []string{"ops@mkh.co.za"}, log)
	assert.NoError(t, err)
}

func TestAdminAlerts_RequestFinalized(t *testing.T) {
	sender := &mockEmailSender{}
	a, err := NewAdminAlerts(sender, "noreply@mkh.co.za", []string{"ops@mkh.co.za"}, logger.NewTestLogger(t))
	require.NoError(t, err)

	require.NoError(t, a.RequestFinalized(context.Background(), createTestRequest()))
	require.Len(t, sender.inputs, 1)

	in := sender.inputs[0]
	assert.Equal(t, "noreply@mkh.co.za", aws.ToString(in.Source))
	assert.Equal(t, []string{"ops@mkh.co.za"}, in.Destination.ToAddresses)
	assert.Equal(t, "New Settlement request from Sipho Dube", aws.ToString(in.Message.Subject.Data))

	body := aws.ToString(in.Message.Body.Text.Data)
	assert.Contains(t, body, "Creditor: XYZ Credit")
	assert.Contains(t, body, "Payment: Once-off Settlement")
	assert.Contains(t, body, "POA: https://cdn/poa.pdf")
	assert.NotContains(t, body, "POR:")
}

func TestAdminAlerts_SendError(t *testing.T) {
	sender := &mockEmailSender{
		SendEmailFunc: func(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
			return nil, stderrors.New("message rejected")
		},
	}
	a, err := NewAdminAlerts(sender, "noreply@mkh.co.za", []string{"ops@mkh.co.za"}, logger.NewTestLogger(t))
	require.NoError(t, err)

	err = a.RequestFinalized(context.Background(), createTestRequest())
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotificationSendFailed))
}

func TestRenderRequest_CarFinance(t *testing.T) {
	details := models.NewPendingRequest(models.ServiceCarApplication, time.Now())
	details.CarFinance.StagedURLs = []string{"u1", "u2"}
	out := RenderRequest(models.ServiceRequest{ServiceType: models.ServiceCarApplication, Details: *details})

	assert.Contains(t, out, "Service: Car Application")
	assert.Contains(t, out, "Document 1: u1")
	assert.Contains(t, out, "Document 2: u2")
}
