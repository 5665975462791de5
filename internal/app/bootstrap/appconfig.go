// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig handles
// framework-level settings (ports, TLS, log level, CORS, body limits);
// AppConfig is everything specific to StockBoard.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: stockboard-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Maximum session cookie lifetime (default: 24h)

	// CSRF protection configuration
	CSRFKey string // Secret key for CSRF token signing (32 bytes, must be strong in production)

	// Admin key for the reporting and maintenance endpoints
	// (activity-report, activity-archive, activity-recompute).
	AdminKey string

	// Dashboard accounts, seeded at startup. Format is one entry per
	// semicolon: username|bcrypt_hash|display name|branch|role
	Accounts string

	// Prediction model service
	MLAPIBaseURL string // Base URL of the prediction service
	MLAPIKey     string // Bearer token for the prediction service

	// Email/SMTP configuration for the daily report
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// Daily activity report
	ReportCron       string // cron spec for the daily report (default: 0 8 * * *)
	ReportRecipients string // comma-separated recipient addresses; empty disables the emailed report

	// Activity data lifecycle
	ArchiveRetentionDays   int           // Days daily records stay live before archiving (default: 90)
	ActionRetentionDays    int           // Days action events are kept (default: 90)
	InactiveSessionTimeout time.Duration // Inactivity before an open session is force-closed (default: 10m)
}
