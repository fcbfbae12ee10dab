package services

import (
	"fmt"
	"html/template"
	"log"
	"strings"

	"ethesis-api/config"
	"ethesis-api/models"
)

var sendMailFunc = config.SendMail

// Notifier tells people about chapter activity. Delivery failures are logged, never returned.
type Notifier interface {
	ChapterSubmitted(title *models.ThesisTitle, chapter *models.Thesis)
	ChapterReviewed(title *models.ThesisTitle, chapter *models.Thesis)
}

type MailNotifier struct {
	// async sends from a goroutine; tests turn it off
	async bool
}

func NewMailNotifier() *MailNotifier {
	return &MailNotifier{async: true}
}

// ChapterSubmitted mails the adviser after an upload or file replacement.
func (n *MailNotifier) ChapterSubmitted(title *models.ThesisTitle, chapter *models.Thesis) {
	if title == nil || chapter == nil || title.Adviser == nil || title.Adviser.Email == "" {
		return
	}
	owner := "A student"
	if title.Leader != nil && title.Leader.Name != "" {
		owner = title.Leader.Name
	}
	subject := fmt.Sprintf("New chapter submitted: %s", chapter.Chapter)
	message := fmt.Sprintf("%s submitted \"%s\" for the thesis \"%s\".\nIt is waiting for your review.",
		owner, chapter.Chapter, title.Title)
	n.send(title.Adviser.Email, subject, buildFormalEmailHTML(subject, title.Adviser.Name, message))
}

// ChapterReviewed mails the title owner after the adviser changes a chapter's status.
func (n *MailNotifier) ChapterReviewed(title *models.ThesisTitle, chapter *models.Thesis) {
	if title == nil || chapter == nil || title.Leader == nil || title.Leader.Email == "" {
		return
	}
	status := models.ResolveStatus(chapter.Status)
	subject := fmt.Sprintf("Chapter %s: %s", status, chapter.Chapter)
	message := fmt.Sprintf("Your chapter \"%s\" of \"%s\" is now %s.", chapter.Chapter, title.Title, status)
	if chapter.Remarks != nil && strings.TrimSpace(*chapter.Remarks) != "" {
		message += "\nRemarks: " + strings.TrimSpace(*chapter.Remarks)
	}
	n.send(title.Leader.Email, subject, buildFormalEmailHTML(subject, title.Leader.Name, message))
}

func (n *MailNotifier) send(to, subject, html string) {
	if n.async {
		go sendMailSafe([]string{to}, subject, html)
		return
	}
	sendMailSafe([]string{to}, subject, html)
}

func sendMailSafe(to []string, subject, html string) {
	if err := sendMailFunc(to, subject, html); err != nil {
		log.Printf("notification email send failed (subject=%q to=%v): %v", subject, to, err)
	}
}

func buildFormalEmailHTML(subject, recipientName, message string) string {
	name := strings.TrimSpace(recipientName)
	if name == "" {
		name = "colleague"
	}

	escapedSubject := template.HTMLEscapeString(subject)
	escapedGreeting := template.HTMLEscapeString(fmt.Sprintf("Dear %s,", name))
	escapedMessage := template.HTMLEscapeString(strings.TrimSpace(message))
	escapedMessage = strings.ReplaceAll(strings.ReplaceAll(escapedMessage, "\r\n", "\n"), "\r", "\n")
	escapedMessage = strings.ReplaceAll(escapedMessage, "\n", "<br />")

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body style="margin:0;padding:0;background-color:#f9fafb;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 20px;">
  <div style="background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px;">
    <p style="margin:0 0 16px 0;font-size:16px;line-height:1.7;color:#111827;">%s</p>
    <p style="margin:0;font-size:16px;line-height:1.7;color:#111827;word-break:break-word;">%s</p>
  </div>
</div>
</body>
</html>`, escapedSubject, escapedGreeting, escapedMessage)
}
