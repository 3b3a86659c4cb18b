package emailsvc

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"

	"github.com/trezcool/edusource/core"
)

type smtpService struct {
	dialer          *gomail.Dialer
	frontendBaseURL string
	from            string
	subjPrefix      string
	logger          core.Logger
}

var _ core.EmailService = (*smtpService)(nil)

func NewSMTPService(conf *core.Config, logger core.Logger) core.EmailService {
	from := conf.DefaultFromEmail()
	return &smtpService{
		dialer:          gomail.NewDialer(conf.SMTP.Host, conf.SMTP.Port, conf.SMTP.User, conf.SMTP.Password),
		frontendBaseURL: conf.FrontendBaseURL,
		from:            from.String(),
		subjPrefix:      "[" + conf.AppName + "] ",
		logger:          logger,
	}
}

func (svc smtpService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(svc.frontendBaseURL); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
				return
			}
			if !msg.HasRecipients() || !msg.HasContent() {
				return
			}
			if err := svc.dialer.DialAndSend(svc.prepare(*msg)); err != nil {
				svc.logger.Error(fmt.Sprintf("sending email: %v", err), errors.WithStack(err))
			}
		}()
	}
}

func (svc smtpService) prepare(msg core.EmailMessage) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", svc.from)
	m.SetHeader("Subject", svc.subjPrefix+msg.Subject)

	setAddresses := func(field string, addrs []string) {
		if len(addrs) > 0 {
			m.SetHeader(field, addrs...)
		}
	}
	setAddresses("To", formatAddresses(m, msg.To))
	setAddresses("Cc", formatAddresses(m, msg.Cc))
	setAddresses("Bcc", formatAddresses(m, msg.Bcc))

	m.SetBody("text/plain", msg.TextContent)
	if msg.HTMLContent != "" {
		m.AddAlternative("text/html", msg.HTMLContent)
	}
	return m
}
