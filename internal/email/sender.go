package email

import (
	"context"
	"fmt"

	"salescrm_backend/platform/config"
)

// OpportunityStageEmail describes a pipeline move for an assigned user.
type OpportunityStageEmail struct {
	RecipientName   string
	OpportunityName string
	FromStage       string
	ToStage         string
	OpportunityURL  string
}

type Sender interface {
	SendOpportunityStageEmail(ctx context.Context, toEmail string, data OpportunityStageEmail) error
}

type NoopSender struct{}

func (NoopSender) SendOpportunityStageEmail(ctx context.Context, toEmail string, data OpportunityStageEmail) error {
	return nil
}

// NewSender returns an SMTP sender, or a no-op sender when email is disabled.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	if cfg.GetSMTPHost() == "" {
		return nil, fmt.Errorf("SMTP_HOST is required when email is enabled")
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}
