package utils

import (
	"fmt"
	"net/smtp"
	"os"
)

// SendMail delivers an HTML email through the SMTP relay configured via
// SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASSWORD, SMTP_FROM.
func SendMail(to, subject, html string) (bool, error) {
	host := os.Getenv("SMTP_HOST")
	port := os.Getenv("SMTP_PORT")
	user := os.Getenv("SMTP_USER")
	password := os.Getenv("SMTP_PASSWORD")
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = user
	}
	if host == "" || port == "" {
		return false, fmt.Errorf("SMTP_HOST and SMTP_PORT are required")
	}

	msg := []byte("From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" + html)

	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, password, host)
	}

	if err := smtp.SendMail(host+":"+port, auth, from, []string{to}, msg); err != nil {
		return false, err
	}
	return true, nil
}
