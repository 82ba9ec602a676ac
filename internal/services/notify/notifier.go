package notify

import (
	"fmt"
	"net/smtp"

	"github.com/sirupsen/logrus"
)

// Sender delivers a notification or fails. Callers log a failure and move
// on; delivery is never on the critical path of a request.
type Sender interface {
	Send(recipient, subject, body string) error
}

type SMTPSender struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

func NewSMTPSender(host, port, user, pass, from string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, User: user, Pass: pass, From: from}
}

func (s *SMTPSender) Send(recipient, subject, body string) error {
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.From, recipient, subject, body))

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	return smtp.SendMail(s.Host+":"+s.Port, auth, s.From, []string{recipient}, msg)
}

// LogSender stands in when no SMTP host is configured.
type LogSender struct{}

func (LogSender) Send(recipient, subject, body string) error {
	logrus.WithFields(logrus.Fields{
		"recipient": recipient,
		"subject":   subject,
	}).Info("notification (no SMTP configured)")
	return nil
}
