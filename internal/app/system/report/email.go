// internal/app/system/report/email.go
package report

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stockboard/stockboard/internal/app/system/htmlsanitize"
	"github.com/stockboard/stockboard/internal/app/system/mailer"
)

const timeLayout = "2006-01-02 15:04 MST"

// Emailer sends the daily report by email.
type Emailer struct {
	gen     *Generator
	mail    *mailer.Mailer
	appName string
	to      []string
	log     *zap.Logger
}

// NewEmailer creates a report Emailer.
func NewEmailer(gen *Generator, mail *mailer.Mailer, appName string, to []string, logger *zap.Logger) *Emailer {
	return &Emailer{
		gen:     gen,
		mail:    mail,
		appName: appName,
		to:      to,
		log:     logger,
	}
}

// SendDaily generates the report ending now and emails it to every
// configured recipient. Individual send failures are logged; the first
// one is returned after all recipients are attempted.
func (e *Emailer) SendDaily(ctx context.Context, now time.Time) error {
	rep, err := e.gen.Generate(ctx, now)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	data := emailData(rep, e.appName)
	textBody, htmlBody := mailer.DailyReportEmail(data)
	subject := fmt.Sprintf("%s Daily Activity Report - %s", e.appName, data.ReportDate)

	var firstErr error
	for _, to := range e.to {
		err := e.mail.Send(mailer.Email{
			To:       to,
			Subject:  subject,
			TextBody: textBody,
			HTMLBody: htmlBody,
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		e.log.Info("daily report sent",
			zap.Int("recipients", len(e.to)),
			zap.Int("branches", len(rep.Branches)),
			zap.Int("users", rep.TotalUsers))
	}
	return firstErr
}

// emailData converts a report into the email template shape. Branch
// and user names came from clients, so they are sanitized before being
// placed into the template data.
func emailData(rep *Report, appName string) mailer.DailyReportEmailData {
	data := mailer.DailyReportEmailData{
		AppName:         appName,
		ReportDate:      rep.WindowEnd.UTC().Format("2006-01-02"),
		WindowStart:     rep.WindowStart.UTC().Format(timeLayout),
		WindowEnd:       rep.WindowEnd.UTC().Format(timeLayout),
		TotalUsers:      rep.TotalUsers,
		TotalSessions:   rep.TotalSessions,
		TotalActiveTime: FormatDuration(rep.ActiveTimeMs),
		PredictionCount: rep.PredictionCount,
		ExportCount:     rep.ExportCount,
	}
	for _, b := range rep.Branches {
		data.Branches = append(data.Branches, mailer.ReportBranchRow{
			Branch:      htmlsanitize.Sanitize(b.Branch),
			Users:       b.Users,
			ActiveTime:  FormatDuration(b.ActiveTimeMs),
			Exports:     b.Exports,
			Downloads:   b.Downloads,
			Predictions: b.Predictions,
			Views:       b.Views,
			LastAction:  b.LastAction,
			LastSeen:    b.LastActivity.UTC().Format(timeLayout),
		})
	}
	for _, u := range rep.TopUsers {
		data.TopUsers = append(data.TopUsers, mailer.ReportUserRow{
			Username:   htmlsanitize.Sanitize(u.Username),
			ActiveTime: FormatDuration(u.ActiveTimeMs),
			IdleTime:   FormatDuration(u.IdleTimeMs),
			LastSeen:   u.LastActivity.UTC().Format(timeLayout),
		})
	}
	for _, a := range rep.Actions {
		data.Actions = append(data.Actions, mailer.ReportActionRow{
			Action: a.ActionType,
			Count:  a.Count,
		})
	}
	for _, e := range rep.Errors {
		data.Errors = append(data.Errors, mailer.ReportErrorRow{
			Time:    e.Timestamp.UTC().Format(timeLayout),
			Source:  e.Source,
			Message: htmlsanitize.Sanitize(e.Message),
		})
	}
	return data
}
