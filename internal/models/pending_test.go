package models

import (
	"testing"
	"time"

	"intake-workers/internal/intake/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPendingRequestSetsOneVariant(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		serviceType ServiceType
		check       func(t *testing.T, p *PendingRequest)
	}{
		{ServicePaidUpLetter, func(t *testing.T, p *PendingRequest) { assert.NotNil(t, p.DocumentRequest) }},
		{ServiceCreditReport, func(t *testing.T, p *PendingRequest) { assert.NotNil(t, p.Negotiation) }},
		{ServiceJudgmentRemoval, func(t *testing.T, p *PendingRequest) { assert.NotNil(t, p.Negotiation) }},
		{ServicePrescription, func(t *testing.T, p *PendingRequest) { require.NotNil(t, p.Screening); assert.NotNil(t, p.Screening.Answers) }},
		{ServiceFileUpdate, func(t *testing.T, p *PendingRequest) { assert.NotNil(t, p.FileQuery) }},
		{ServiceCarApplication, func(t *testing.T, p *PendingRequest) { assert.NotNil(t, p.CarFinance) }},
	}

	for _, tt := range tests {
		t.Run(string(tt.serviceType), func(t *testing.T) {
			p := NewPendingRequest(tt.serviceType, now)
			assert.Equal(t, tt.serviceType, p.ServiceType)
			assert.Equal(t, now, p.StartedAt)
			tt.check(t, p)

			set := 0
			for _, v := range []bool{
				p.DocumentRequest != nil, p.Negotiation != nil, p.Screening != nil,
				p.FileQuery != nil, p.CarFinance != nil,
			} {
				if v {
					set++
				}
			}
			assert.Equal(t, 1, set)
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := NewPendingRequest(ServicePrescription, time.Now())
	p.Screening.CreditorName = "ABC Bank"
	p.Screening.Answers[AnswerSummons] = false

	c := p.Clone()
	p.Screening.CreditorName = "changed"
	p.Screening.Answers[AnswerSummons] = true

	assert.Equal(t, "ABC Bank", c.Screening.CreditorName)
	assert.False(t, c.Screening.Answers[AnswerSummons])

	car := NewPendingRequest(ServiceCarApplication, time.Now())
	car.CarFinance.StagedURLs = []string{"a"}
	carCopy := car.Clone()
	car.CarFinance.StagedURLs[0] = "b"
	assert.Equal(t, []string{"a"}, carCopy.CarFinance.StagedURLs)
}

func TestCloneNil(t *testing.T) {
	var p *PendingRequest
	assert.Nil(t, p.Clone())
	assert.Equal(t, "", p.CreditorName())
}

func TestSessionLifecycle(t *testing.T) {
	now := time.Now()
	s := NewSession("whatsapp:+27820000000", now)
	assert.Equal(t, state.AwaitingID, s.State)
	assert.Equal(t, AccountLead, s.AccountStatus)
	assert.Equal(t, "+27820000000", s.Phone())
	assert.Equal(t, "+27820000000", s.DisplayName())

	s.StartPending(ServicePaidUpLetter, now)
	s.Pending.DocumentRequest.CreditorName = "ABC Bank"
	assert.Equal(t, "ABC Bank", s.Pending.CreditorName())

	s.ResetToMenu()
	assert.Equal(t, state.MainMenu, s.State)
	assert.Nil(t, s.Pending)
}

func TestServiceTypeLabel(t *testing.T) {
	assert.Equal(t, "Paid Up Letter", ServicePaidUpLetter.Label())
	assert.Equal(t, "Debt Review Removal", ServiceDebtReviewRemoval.Label())
	assert.False(t, ServiceType("ADMIN_SUPPORT_QUERY").Valid())
}
