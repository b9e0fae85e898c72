package channels

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"time"

	gomail "github.com/wneessen/go-mail"

	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/config"
	"fastlead_backend/platform/logger"
)

// EmailAdapter delivers over SMTP via go-mail.
type EmailAdapter struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	log       *logger.Logger
}

func NewEmailAdapter(cfg config.EmailConfig, log *logger.Logger) *EmailAdapter {
	return &EmailAdapter{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		log:       log,
	}
}

func (a *EmailAdapter) Channel() domain.Channel { return domain.ChannelEmail }

func (a *EmailAdapter) Validate(lead domain.Lead) error {
	if _, err := mail.ParseAddress(lead.Email); err != nil {
		return apperr.Validation("email channel requires a valid email address")
	}
	return nil
}

func (a *EmailAdapter) Send(ctx context.Context, req Request) (Result, error) {
	if err := a.Validate(req.Lead); err != nil {
		return Result{}, err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(a.fromName, a.fromEmail); err != nil {
		return Result{}, apperr.PermanentProvider("smtp from address rejected", err)
	}
	if err := msg.To(req.Lead.Email); err != nil {
		return Result{}, apperr.PermanentProvider("smtp recipient rejected", err)
	}
	msg.Subject(a.fromName)
	msg.SetBodyString(gomail.TypeTextPlain, req.Message)
	msg.SetMessageID()

	client, err := gomail.NewClient(a.host,
		gomail.WithPort(a.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(a.username),
		gomail.WithPassword(a.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return Result{}, apperr.PermanentProvider("smtp client configuration invalid", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return Result{}, classifySMTPError(err)
	}

	a.log.Info("email sent", "to", req.Lead.Email)
	return Result{Provider: "smtp", ProviderMessageID: msg.GetMessageID()}, nil
}

// classifySMTPError distinguishes connection-class failures, which retry,
// from server rejections, which do not unless the server marked them
// temporary (4xx SMTP codes).
func classifySMTPError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.TransientProvider("smtp connection failed", err)
	}

	var sendErr *gomail.SendError
	if errors.As(err, &sendErr) && sendErr.IsTemp() {
		return apperr.TransientProvider("smtp temporary failure", err)
	}

	return apperr.PermanentProvider(fmt.Sprintf("smtp delivery rejected: %v", err), err)
}
