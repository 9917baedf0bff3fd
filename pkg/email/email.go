package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Sender delivers plain text mail over SMTP.
type Sender struct {
	Host     string
	Port     string
	From     string
	Password string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSender returns nil when host is empty so callers can skip mail entirely.
func NewSender(host, port, from, password string) *Sender {
	if host == "" {
		return nil
	}
	return &Sender{Host: host, Port: port, From: from, Password: password, send: smtp.SendMail}
}

// BuildMessage renders the headers and body of a plain text message.
func BuildMessage(to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n" + body + "\r\n")
	return []byte(b.String())
}

// SendEmail sends a plain text email.
func (s *Sender) SendEmail(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.From, s.Password, s.Host)
	address := s.Host + ":" + s.Port

	if err := s.send(address, auth, s.From, []string{to}, BuildMessage(to, subject, body)); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}
	return nil
}
