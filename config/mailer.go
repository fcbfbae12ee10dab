package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"

	mail "github.com/go-mail/mail/v2"
)

var (
	smtpHost      string
	smtpPort      int
	smtpUser      string
	smtpPass      string
	smtpFrom      string // e.g. "eThesis <no-reply@your.org>"
	skipTLSVerify bool
)

func init() {
	ReloadMailerConfig()
}

// ReloadMailerConfig re-reads SMTP_* after the .env file has been loaded.
func ReloadMailerConfig() {
	smtpHost = os.Getenv("SMTP_HOST")
	smtpPort, _ = strconv.Atoi(os.Getenv("SMTP_PORT"))
	if smtpPort == 0 {
		smtpPort = 587
	}
	smtpUser = os.Getenv("SMTP_USER")
	smtpPass = os.Getenv("SMTP_PASS")
	smtpFrom = os.Getenv("SMTP_FROM")
	skipTLSVerify = os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1"
}

// MailerConfigured reports whether SendMail has enough settings to dial out.
func MailerConfigured() bool {
	return smtpHost != "" && smtpFrom != ""
}

func SendMail(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if !MailerConfigured() {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	m := mail.NewMessage()
	m.SetHeader("From", smtpFrom)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	d := mail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass)

	// STARTTLS is mandatory on 587.
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         smtpHost,
		InsecureSkipVerify: skipTLSVerify, // dev only
	}

	return d.DialAndSend(m)
}
