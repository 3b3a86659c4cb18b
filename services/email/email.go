// Package emailsvc provides the core.EmailService implementations.
package emailsvc

import (
	"net/mail"

	"gopkg.in/gomail.v2"

	"github.com/trezcool/edusource/core"
)

// New picks the email backend: Sendgrid when an API key is set, else SMTP when a host is set, else the console.
func New(conf *core.Config, logger core.Logger) core.EmailService {
	switch {
	case conf.TestMode:
		return NewConsoleServiceMock(conf, logger)
	case conf.SendgridApiKey != "":
		return NewSendgridService(conf, logger)
	case conf.SMTP.Host != "":
		return NewSMTPService(conf, logger)
	default:
		return NewConsoleService(conf, logger)
	}
}

func formatAddresses(m *gomail.Message, addrs []mail.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, m.FormatAddress(a.Address, a.Name))
	}
	return out
}
