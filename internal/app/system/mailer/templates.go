// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"html/template"
)

// ReportBranchRow is one branch line in the daily report email.
type ReportBranchRow struct {
	Branch      string
	Users       int
	ActiveTime  string // formatted, e.g. "4h 12m"
	Exports     int64
	Downloads   int64
	Predictions int64
	Views       int64
	LastAction  string
	LastSeen    string // formatted timestamp
}

// ReportUserRow is one user line in the daily report email.
type ReportUserRow struct {
	Username   string
	ActiveTime string
	IdleTime   string
	LastSeen   string
}

// ReportActionRow is one action-type tally in the daily report email.
type ReportActionRow struct {
	Action string
	Count  int64
}

// ReportErrorRow is one error line in the daily report email.
type ReportErrorRow struct {
	Time    string
	Source  string
	Message string
}

// DailyReportEmailData contains the data for the daily activity report
// email. All user-supplied strings must be sanitized before being
// placed here.
type DailyReportEmailData struct {
	AppName     string
	ReportDate  string // e.g. "2026-08-31"
	WindowStart string
	WindowEnd   string

	TotalUsers      int
	TotalSessions   int64
	TotalActiveTime string
	PredictionCount int64
	ExportCount     int64

	Branches []ReportBranchRow
	TopUsers []ReportUserRow
	Actions  []ReportActionRow
	Errors   []ReportErrorRow
}

// DailyReportEmail generates both plain text and HTML versions of the
// daily activity report email.
func DailyReportEmail(data DailyReportEmailData) (textBody, htmlBody string) {
	// Plain text version
	textBody = data.AppName + " daily activity report for " + data.ReportDate + "\n" +
		"Window: " + data.WindowStart + " to " + data.WindowEnd + "\n\n" +
		"Active users: " + itoa(data.TotalUsers) + "\n" +
		"Sessions: " + itoa64(data.TotalSessions) + "\n" +
		"Total active time: " + data.TotalActiveTime + "\n" +
		"Predictions generated: " + itoa64(data.PredictionCount) + "\n" +
		"Exports: " + itoa64(data.ExportCount) + "\n\n"

	if len(data.Branches) > 0 {
		textBody += "Branches:\n"
		for _, b := range data.Branches {
			textBody += "  " + b.Branch + ": " + itoa(b.Users) + " users, " +
				b.ActiveTime + " active, " +
				itoa64(b.Exports) + " exports, " + itoa64(b.Downloads) + " downloads, " +
				itoa64(b.Predictions) + " predictions, " + itoa64(b.Views) + " views"
			if b.LastAction != "" {
				textBody += ", last action " + b.LastAction
			}
			textBody += ", last seen " + b.LastSeen + "\n"
		}
		textBody += "\n"
	}
	if len(data.TopUsers) > 0 {
		textBody += "Most recently active users:\n"
		for _, u := range data.TopUsers {
			textBody += "  " + u.Username + ": " + u.ActiveTime + " active, " +
				u.IdleTime + " idle, last seen " + u.LastSeen + "\n"
		}
		textBody += "\n"
	}
	if len(data.Actions) > 0 {
		textBody += "Actions:\n"
		for _, a := range data.Actions {
			textBody += "  " + a.Action + ": " + itoa64(a.Count) + "\n"
		}
		textBody += "\n"
	}
	if len(data.Errors) > 0 {
		textBody += "Errors:\n"
		for _, e := range data.Errors {
			textBody += "  [" + e.Time + "] " + e.Source + ": " + e.Message + "\n"
		}
	} else {
		textBody += "No errors recorded.\n"
	}

	// HTML version
	var buf bytes.Buffer
	dailyReportHTMLTmpl.Execute(&buf, data)
	htmlBody = buf.String()

	return textBody, htmlBody
}

func itoa(i int) string { return itoa64(int64(i)) }

func itoa64(i int64) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}

var dailyReportHTMLTmpl = template.Must(template.New("daily_report").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Daily Activity Report</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f4f4f5;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f4f4f5;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 640px; background-color: #ffffff; border-radius: 8px; box-shadow: 0 1px 3px rgba(0,0,0,0.1);">
          <!-- Header -->
          <tr>
            <td style="padding: 32px 32px 24px 32px; text-align: center; border-bottom: 1px solid #e4e4e7;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #18181b;">{{.AppName}}</h1>
              <p style="margin: 8px 0 0 0; font-size: 14px; color: #71717a;">Daily Activity Report &middot; {{.ReportDate}}</p>
              <p style="margin: 4px 0 0 0; font-size: 12px; color: #a1a1aa;">{{.WindowStart}} &ndash; {{.WindowEnd}}</p>
            </td>
          </tr>
          <!-- Totals -->
          <tr>
            <td style="padding: 24px 32px;">
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center" style="padding: 12px; background-color: #f4f4f5; border-radius: 6px;">
                    <p style="margin: 0; font-size: 22px; font-weight: 700; color: #18181b;">{{.TotalUsers}}</p>
                    <p style="margin: 4px 0 0 0; font-size: 12px; color: #71717a;">Active users</p>
                  </td>
                  <td style="width: 12px;"></td>
                  <td align="center" style="padding: 12px; background-color: #f4f4f5; border-radius: 6px;">
                    <p style="margin: 0; font-size: 22px; font-weight: 700; color: #18181b;">{{.TotalSessions}}</p>
                    <p style="margin: 4px 0 0 0; font-size: 12px; color: #71717a;">Sessions</p>
                  </td>
                  <td style="width: 12px;"></td>
                  <td align="center" style="padding: 12px; background-color: #f4f4f5; border-radius: 6px;">
                    <p style="margin: 0; font-size: 22px; font-weight: 700; color: #18181b;">{{.TotalActiveTime}}</p>
                    <p style="margin: 4px 0 0 0; font-size: 12px; color: #71717a;">Active time</p>
                  </td>
                  <td style="width: 12px;"></td>
                  <td align="center" style="padding: 12px; background-color: #f4f4f5; border-radius: 6px;">
                    <p style="margin: 0; font-size: 22px; font-weight: 700; color: #18181b;">{{.PredictionCount}}</p>
                    <p style="margin: 4px 0 0 0; font-size: 12px; color: #71717a;">Predictions</p>
                  </td>
                </tr>
              </table>
            </td>
          </tr>
          {{if .Branches}}
          <!-- Branches -->
          <tr>
            <td style="padding: 0 32px 24px 32px;">
              <h2 style="margin: 0 0 12px 0; font-size: 16px; font-weight: 600; color: #18181b;">Branch Activity</h2>
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="border: 1px solid #e4e4e7; border-radius: 6px;">
                <tr style="background-color: #fafafa;">
                  <td style="padding: 8px 12px; font-size: 12px; font-weight: 600; color: #71717a;">Branch</td>
                  <td style="padding: 8px 12px; font-size: 12px; font-weight: 600; color: #71717a;" align="right">Users</td>
                  <td style="padding: 8px 12px; font-size: 12px; font-weight: 600; color: #71717a;" align="right">Active</td>
                  <td style="padding: 8px 12px; font-size: 12px; font-weight: 600; color: #71717a;" align="right">Exp</td>
                  <td style="padding: 8px 12px; font-size: 12px; font-weight: 600; color: #71717a;" align="right">Dl</td>
                  <td style="padding: 8px 12px; font-size: 12px; font-weight: 600; color: #71717a;" align="right">Pred</td>
                  <td style="padding: 8px 12px; font-size: 12px; font-weight: 600; color: #71717a;" align="right">Views</td>
                  <td style="padding: 8px 12px; font-size: 12px; font-weight: 600; color: #71717a;">Last Action</td>
                  <td style="padding: 8px 12px; font-size: 12px; font-weight: 600; color: #71717a;" align="right">Last Seen</td>
                </tr>
                {{range .Branches}}
                <tr>
                  <td style="padding: 8px 12px; font-size: 14px; color: #18181b; border-top: 1px solid #f4f4f5;">{{.Branch}}</td>
                  <td style="padding: 8px 12px; font-size: 14px; color: #52525b; border-top: 1px solid #f4f4f5;" align="right">{{.Users}}</td>
                  <td style="padding: 8px 12px; font-size: 14px; color: #52525b; border-top: 1px solid #f4f4f5;" align="right">{{.ActiveTime}}</td>
                  <td style="padding: 8px 12px; font-size: 14px; color: #52525b; border-top: 1px solid #f4f4f5;" align="right">{{.Exports}}</td>
                  <td style="padding: 8px 12px; font-size: 14px; color: #52525b; border-top: 1px solid #f4f4f5;" align="right">{{.Downloads}}</td>
                  <td style="padding: 8px 12px; font-size: 14px; color: #52525b; border-top: 1px solid #f4f4f5;" align="right">{{.Predictions}}</td>
                  <td style="padding: 8px 12px; font-size: 14px; color: #52525b; border-top: 1px solid #f4f4f5;" align="right">{{.Views}}</td>
                  <td style="padding: 8px 12px; font-size: 14px; color: #52525b; border-top: 1px solid #f4f4f5;">{{.LastAction}}</td>
                  <td style="padding: 8px 12px; font-size: 14px; color: #52525b; border-top: 1px solid #f4f4f5;" align="right">{{.LastSeen}}</td>
                </tr>
                {{end}}
              </table>
            </td>
          </tr>
          {{end}}
          {{if .TopUsers}}
          <!-- Top users -->
          <tr>
            <td style="padding: 0 32px 24px 32px;">
              <h2 style="margin: 0 0 12px 0; font-size: 16px; font-weight: 600; color: #18181b;">Most Recently Active Users</h2>
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="border: 1px solid #e4e4e7; border-radius: 6px;">
                <tr style="background-color: #fafafa;">
                  <td style="padding: 8px 12px; font-size: 12px; font-weight: 600; color: #71717a;">User</td>
                  <td style="padding: 8px 12px; font-size: 12px; font-weight: 600; color: #71717a;" align="right">Active</td>
                  <td style="padding: 8px 12px; font-size: 12px; font-weight: 600; color: #71717a;" align="right">Idle</td>
                  <td style="padding: 8px 12px; font-size: 12px; font-weight: 600; color: #71717a;" align="right">Last Seen</td>
                </tr>
                {{range .TopUsers}}
                <tr>
                  <td style="padding: 8px 12px; font-size: 14px; color: #18181b; border-top: 1px solid #f4f4f5;">{{.Username}}</td>
                  <td style="padding: 8px 12px; font-size: 14px; color: #52525b; border-top: 1px solid #f4f4f5;" align="right">{{.ActiveTime}}</td>
                  <td style="padding: 8px 12px; font-size: 14px; color: #52525b; border-top: 1px solid #f4f4f5;" align="right">{{.IdleTime}}</td>
                  <td style="padding: 8px 12px; font-size: 14px; color: #52525b; border-top: 1px solid #f4f4f5;" align="right">{{.LastSeen}}</td>
                </tr>
                {{end}}
              </table>
            </td>
          </tr>
          {{end}}
          {{if .Actions}}
          <!-- Actions -->
          <tr>
            <td style="padding: 0 32px 24px 32px;">
              <h2 style="margin: 0 0 12px 0; font-size: 16px; font-weight: 600; color: #18181b;">Actions</h2>
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="border: 1px solid #e4e4e7; border-radius: 6px;">
                {{range .Actions}}
                <tr>
                  <td style="padding: 8px 12px; font-size: 14px; color: #18181b; border-top: 1px solid #f4f4f5;">{{.Action}}</td>
                  <td style="padding: 8px 12px; font-size: 14px; color: #52525b; border-top: 1px solid #f4f4f5;" align="right">{{.Count}}</td>
                </tr>
                {{end}}
              </table>
            </td>
          </tr>
          {{end}}
          <!-- Errors -->
          <tr>
            <td style="padding: 0 32px 24px 32px;">
              <h2 style="margin: 0 0 12px 0; font-size: 16px; font-weight: 600; color: #18181b;">Errors</h2>
              {{if .Errors}}
              {{range .Errors}}
              <div style="padding: 12px; margin-bottom: 8px; background-color: #fef2f2; border-radius: 6px; border-left: 4px solid #ef4444;">
                <p style="margin: 0 0 4px 0; font-size: 12px; font-weight: 600; color: #991b1b;">[{{.Time}}] {{.Source}}</p>
                <p style="margin: 0; font-size: 13px; line-height: 1.5; color: #7f1d1d;">{{.Message}}</p>
              </div>
              {{end}}
              {{else}}
              <p style="margin: 0; font-size: 14px; color: #52525b;">No errors recorded.</p>
              {{end}}
            </td>
          </tr>
          <!-- Footer -->
          <tr>
            <td style="padding: 24px 32px; background-color: #fafafa; border-top: 1px solid #e4e4e7; border-radius: 0 0 8px 8px;">
              <p style="margin: 0; font-size: 12px; color: #a1a1aa; text-align: center;">
                This is an automated report from {{.AppName}}.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`))
