package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func amount(v float64) *float64 { return &v }

func validPolicy() *Policy {
	return &Policy{
		ID:        "travel-mid",
		Name:      "Travel mid range",
		AppliesTo: string(SubjectTypeTravel),
		MinAmount: 1000,
		MaxAmount: amount(5000),
		Active:    true,
		Steps: []PolicyStep{
			{Level: 1, Name: "Manager", ApproverType: ApproverTypeManager},
			{Level: 2, Name: "Travel desk", ApproverType: ApproverTypeRole, Role: "travel_desk"},
		},
	}
}

func TestPolicy_ContainsAmountIsInclusive(t *testing.T) {
	p := validPolicy()

	assert.False(t, p.ContainsAmount(999.99))
	assert.True(t, p.ContainsAmount(1000))
	assert.True(t, p.ContainsAmount(5000))
	assert.False(t, p.ContainsAmount(5000.01))

	p.MaxAmount = nil
	assert.True(t, p.ContainsAmount(1e9))
}

func TestPolicy_AmountRange(t *testing.T) {
	p := validPolicy()
	assert.Equal(t, "[1000.00, 5000.00]", p.AmountRange())

	p.MaxAmount = nil
	assert.Equal(t, "[1000.00, +inf)", p.AmountRange())
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Policy)
	}{
		{"missing name", func(p *Policy) { p.Name = "" }},
		{"unknown scope", func(p *Policy) { p.AppliesTo = "meals" }},
		{"negative minimum", func(p *Policy) { p.MinAmount = -1 }},
		{"maximum below minimum", func(p *Policy) { p.MaxAmount = amount(10) }},
		{"zero level", func(p *Policy) { p.Steps[0].Level = 0 }},
		{"repeated level", func(p *Policy) { p.Steps[1].Level = 1 }},
		{"unknown approver type", func(p *Policy) { p.Steps[0].ApproverType = "ceo" }},
		{"specific user without id", func(p *Policy) { p.Steps[0].ApproverType = ApproverTypeSpecificUser }},
		{"role without role", func(p *Policy) { p.Steps[1].Role = "" }},
		{"negative timeout", func(p *Policy) { p.Steps[0].TimeoutHours = -1 }},
	}

	assert.NoError(t, validPolicy().Validate())

	scopeAll := validPolicy()
	scopeAll.AppliesTo = PolicyScopeAll
	scopeAll.Steps = nil
	assert.NoError(t, scopeAll.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPolicy()
			tt.mutate(p)
			err := p.Validate()
			assert.True(t, errors.Is(err, ErrInvalidArgument), "got %v", err)
		})
	}
}
