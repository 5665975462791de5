// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "STOCKBOARD"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: STOCKBOARD_MONGO_URI, STOCKBOARD_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "stockboard", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "stockboard-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie max age (e.g., 24h, 720h, 30m)"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	{Name: "admin_key", Default: "", Desc: "Admin key for report and maintenance endpoints (empty disables them)"},

	{Name: "accounts", Default: "", Desc: "Seeded dashboard accounts: username|bcrypt_hash|name|branch|role entries separated by ';'"},

	// Prediction model service
	{Name: "ml_api_base_url", Default: "http://localhost:9000", Desc: "Base URL of the prediction model service"},
	{Name: "ml_api_key", Default: "", Desc: "Bearer token for the prediction model service"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@example.com", Desc: "From email address"},
	{Name: "mail_from_name", Default: "StockBoard", Desc: "From display name"},

	// Daily activity report
	{Name: "report_cron", Default: "0 8 * * *", Desc: "Cron spec for the daily activity report"},
	{Name: "report_recipients", Default: "", Desc: "Comma-separated report recipients (empty disables the emailed report)"},

	// Activity data lifecycle
	{Name: "archive_retention_days", Default: 90, Desc: "Days daily session records stay live before archiving"},
	{Name: "action_retention_days", Default: 90, Desc: "Days action events are kept"},
	{Name: "inactive_session_timeout", Default: "10m", Desc: "Inactivity before an open session is force-closed"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, STOCKBOARD_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 24*time.Hour),

		CSRFKey: appValues.String("csrf_key"),

		AdminKey: appValues.String("admin_key"),
		Accounts: appValues.String("accounts"),

		MLAPIBaseURL: appValues.String("ml_api_base_url"),
		MLAPIKey:     appValues.String("ml_api_key"),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		ReportCron:       appValues.String("report_cron"),
		ReportRecipients: appValues.String("report_recipients"),

		ArchiveRetentionDays:   appValues.Int("archive_retention_days"),
		ActionRetentionDays:    appValues.Int("action_retention_days"),
		InactiveSessionTimeout: appValues.Duration("inactive_session_timeout", 10*time.Minute),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.ArchiveRetentionDays <= 0 {
		return fmt.Errorf("archive_retention_days must be positive, got %d", appCfg.ArchiveRetentionDays)
	}

	if _, err := parseAccounts(appCfg.Accounts); err != nil {
		logger.Error("invalid accounts configuration", zap.Error(err))
		return err
	}

	return nil
}
