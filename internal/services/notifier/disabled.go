package notifier

import (
	"context"
	"errors"

	config "github.com/NordCoder/CropSense/internal/config/web"
	"github.com/NordCoder/CropSense/internal/domain/notification"
	"go.uber.org/zap"
)

var ErrChannelDisabled = errors.New("notification channel not configured")

type disabledEmail struct{}

func (disabledEmail) Send(context.Context, string, string, string) error { return ErrChannelDisabled }

type disabledSMS struct{}

func (disabledSMS) Send(context.Context, string, string) error { return ErrChannelDisabled }

func DisabledEmail() notification.EmailSender { return disabledEmail{} }

func DisabledSMS() notification.SMSSender { return disabledSMS{} }

// NewEmailSender picks the SMTP mailer when credentials are configured.
func NewEmailSender(cfg config.SMTP, log *zap.Logger) notification.EmailSender {
	if !cfg.Enabled() {
		if log != nil {
			log.Warn("smtp credentials missing, email channel disabled")
		}
		return DisabledEmail()
	}
	return NewMailer(cfg).WithLogger(log)
}

// NewSMSSender picks the Twilio client when the account is configured.
func NewSMSSender(cfg config.SMS, log *zap.Logger) notification.SMSSender {
	if !cfg.Enabled() {
		if log != nil {
			log.Warn("twilio credentials missing, sms channel disabled")
		}
		return DisabledSMS()
	}
	return NewTwilioSMS(cfg).WithLogger(log)
}
