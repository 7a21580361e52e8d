// Package mailer delivers best-effort notifications. Delivery failures are
// the caller's to log and swallow; a failed mail never fails the operation
// that triggered it.
package mailer

import (
	"fmt"

	"github.com/appcraft/showcase-service/src/internal/model"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

// Notifier is the side channel invoked after externally significant state
// transitions.
type Notifier interface {
	SubmissionReceived(s model.Submission) error
	SubmissionApproved(s model.Submission, owner model.User) error
}

type Mailer struct {
	dialer          *gomail.Dialer
	from            string
	reviewers       string
	frontendBaseURL string
	log             *zap.Logger
}

func NewMailer(host string, port int, username, password, from, reviewers, frontendBaseURL string, logger *zap.Logger) *Mailer {
	return &Mailer{
		dialer:          gomail.NewDialer(host, port, username, password),
		from:            from,
		reviewers:       reviewers,
		frontendBaseURL: frontendBaseURL,
		log:             logger,
	}
}

func (m *Mailer) SubmissionReceived(s model.Submission) error {
	to := m.reviewers
	if to == "" {
		to = m.from
	}

	body := fmt.Sprintf(
		"A new implementation has been submitted:\n\n%s\n\nReview it here: %s/implementations/review\n",
		s.RepositoryURL, m.frontendBaseURL)

	return m.send(to, "New submission to review", body)
}

func (m *Mailer) SubmissionApproved(s model.Submission, owner model.User) error {
	body := fmt.Sprintf(
		"Good news! Your submission has been approved and is now listed:\n\n%s\n\nSee it here: %s\n",
		s.RepositoryURL, m.frontendBaseURL)

	return m.send(owner.Email, "Your submission has been approved", body)
}

func (m *Mailer) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("mailer: sending %q to %s: %w", subject, to, err)
	}

	m.log.Info("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// NopNotifier is used when no SMTP host is configured.
type NopNotifier struct {
	Log *zap.Logger
}

func (n NopNotifier) SubmissionReceived(s model.Submission) error {
	n.Log.Debug("mail disabled, skipping submission notification", zap.String("submission_id", s.ID))
	return nil
}

func (n NopNotifier) SubmissionApproved(s model.Submission, owner model.User) error {
	n.Log.Debug("mail disabled, skipping approval notification", zap.String("submission_id", s.ID))
	return nil
}
