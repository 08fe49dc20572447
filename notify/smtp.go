package notify

import (
	"context"

	"gopkg.in/gomail.v2"
)

// SMTPSender sends HTML email through an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, user, pass, from string) *SMTPSender {
	if from == "" {
		from = user
	}
	return &SMTPSender{dialer: gomail.NewDialer(host, port, user, pass), from: from}
}

// Send renders n and delivers it. gomail has no context support, so ctx is
// only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, n Notification) error {
	m, err := s.message(n)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.dialer.DialAndSend(m)
}

func (s *SMTPSender) message(n Notification) (*gomail.Message, error) {
	subject, body, err := Render(n)
	if err != nil {
		return nil, err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", n.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m, nil
}
