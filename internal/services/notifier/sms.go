package notifier

import (
	"context"
	"time"

	config "github.com/NordCoder/CropSense/internal/config/web"
	"github.com/NordCoder/CropSense/internal/domain/notification"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSMS submits one text message per Send through the Twilio REST API.
type TwilioSMS struct {
	from string
	api  messageCreator
	log  *zap.Logger
}

var _ notification.SMSSender = (*TwilioSMS)(nil)

func NewTwilioSMS(cfg config.SMS) *TwilioSMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioSMS{
		from: cfg.FromNumber,
		api:  client.Api,
		log:  zap.L().With(zap.String("component", "notifier.sms")),
	}
}

func (s *TwilioSMS) WithLogger(l *zap.Logger) *TwilioSMS {
	if l == nil {
		return s
	}
	cp := *s
	cp.log = l.With(zap.String("component", "notifier.sms"))
	return &cp
}

func (s *TwilioSMS) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	start := time.Now()
	msg, err := s.api.CreateMessage(params)
	if err != nil {
		s.log.Error("sms submit failed", zap.String("to", to), zap.Error(err))
		return err
	}

	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	s.log.Info("sms sent", zap.String("to", to), zap.String("sid", sid), zap.Duration("elapsed", time.Since(start)))
	return nil
}
