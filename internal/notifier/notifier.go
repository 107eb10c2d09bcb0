package notifier

import (
	"errors"
	"fmt"

	"github.com/ibeckermayer/hotwatch/internal/config"
	"github.com/ibeckermayer/hotwatch/internal/notifier/providers"
	"github.com/ibeckermayer/hotwatch/internal/report"
)

// ErrDisabled is returned by NewFromConfig when email is turned off
var ErrDisabled = errors.New("email notifications disabled")

// Notifier handles sending report notifications
type Notifier struct {
	sender Sender
	to     string
}

// Sender defines the interface for email sending
type Sender interface {
	Send(to, subject, body string, attachments ...string) error
}

// New creates a new notifier with the given sender
func New(sender Sender, to string) *Notifier {
	return &Notifier{sender: sender, to: to}
}

// NewFromConfig creates a notifier based on configuration
func NewFromConfig(cfg config.EmailConfig) (*Notifier, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.SMTPHost == "" || cfg.ToAddr == "" || cfg.FromAddr == "" {
		return nil, fmt.Errorf("email enabled but smtp_host, from_address or to_address is missing")
	}

	sender := providers.NewSMTPSender(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUser,
		cfg.SMTPPass,
		cfg.FromAddr,
	)
	return New(sender, cfg.ToAddr), nil
}

// SendReport mails a report with its markdown file attached
func (n *Notifier) SendReport(r *report.Report) error {
	return n.sender.Send(n.to, r.Subject, r.Body, r.FilePath)
}
