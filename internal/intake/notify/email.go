package notify

import (
	"context"
	"fmt"
	"strings"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/common/validation"
	"intake-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailSender is satisfied by *aws.SESClient.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// AdminAlerts emails the back office when a request is recorded.
type AdminAlerts struct {
	sender EmailSender
	from   string
	to     []string
	log    logger.Logger
}

func NewAdminAlerts(sender EmailSender, from string, to []string, log logger.Logger) (*AdminAlerts, error) {
	if !validation.ValidateEmail(from) {
		return nil, fmt.Errorf("invalid sender address %q", from)
	}
	if len(to) == 0 {
		return nil, fmt.Errorf("at least one admin recipient is required")
	}
	for _, addr := range to {
		if !validation.ValidateEmail(addr) {
			return nil, fmt.Errorf("invalid admin address %q", addr)
		}
	}

	return &AdminAlerts{
		sender: sender,
		from:   from,
		to:     to,
		log:    log.WithFields(map[string]interface{}{"component": "admin-alerts"}),
	}, nil
}

func (a *AdminAlerts) RequestFinalized(ctx context.Context, req models.ServiceRequest) error {
	subject := fmt.Sprintf("New %s request from %s", req.ServiceType.Label(), req.DisplayName)

	out, err := a.sender.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(a.from),
		Destination: &sestypes.Destination{ToAddresses: a.to},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(RenderRequest(req)), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("email", err)
	}

	a.log.Info("Admin alert sent", map[string]interface{}{
		"requestId": req.ID,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}

// RenderRequest is the plain-text summary of a request for back-office readers.
func RenderRequest(req models.ServiceRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", req.ID)
	fmt.Fprintf(&b, "Service: %s\n", req.ServiceType.Label())
	fmt.Fprintf(&b, "Client: %s (%s)\n", req.DisplayName, req.Phone)
	fmt.Fprintf(&b, "Status: %s\n", req.Status)
	fmt.Fprintf(&b, "Created: %s\n", req.CreatedAt.Format("2006-01-02 15:04"))

	d := req.Details
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}

	switch {
	case d.DocumentRequest != nil:
		line("Creditor", d.DocumentRequest.CreditorName)
		line("Reference", d.DocumentRequest.RequestIDNumber)
		line("POA", d.DocumentRequest.PoaURL)
		line("POR", d.DocumentRequest.PorURL)
	case d.Negotiation != nil:
		line("Creditor", d.Negotiation.CreditorName)
		line("Payment", d.Negotiation.PaymentPreference)
		line("POA", d.Negotiation.PoaURL)
		line("POR", d.Negotiation.PorURL)
		line("Proof of payment", d.Negotiation.PopURL)
	case d.Screening != nil:
		line("Creditor", d.Screening.CreditorName)
		fmt.Fprintf(&b, "Years since last payment: %d\n", d.Screening.YearsSinceLastPayment)
	case d.FileQuery != nil:
		line("Query", d.FileQuery.Query)
	case d.CarFinance != nil:
		for i, u := range d.CarFinance.StagedURLs {
			line(fmt.Sprintf("Document %d", i+1), u)
		}
	}
	return b.String()
}
