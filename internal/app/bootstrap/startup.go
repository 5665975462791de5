// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/stockboard/stockboard/internal/app/store/actions"
	"github.com/stockboard/stockboard/internal/app/store/archive"
	"github.com/stockboard/stockboard/internal/app/store/dailysessions"
	"github.com/stockboard/stockboard/internal/app/store/errorlog"
	"github.com/stockboard/stockboard/internal/app/store/predictions"
	"github.com/stockboard/stockboard/internal/app/store/rawsessions"
	"github.com/stockboard/stockboard/internal/app/system/indexes"
	"github.com/stockboard/stockboard/internal/app/system/report"
	"github.com/stockboard/stockboard/internal/app/system/tasks"
	"github.com/stockboard/stockboard/internal/app/system/timeouts"
)

// Startup runs once after DB connections and schema/index setup are
// complete, but before the HTTP handler is built and requests are
// served. It starts the background maintenance jobs and schedules the
// daily report email.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	daily := dailysessions.New(db)
	raw := rawsessions.New(db, indexes.RawSessionTTL)
	acts := actions.New(db)
	arch := archive.New(db)
	preds := predictions.New(db)
	errs := errorlog.New(db)

	startTaskRunner(appCfg, daily, raw, acts, arch, logger)

	recipients := splitRecipients(appCfg.ReportRecipients)
	if len(recipients) == 0 {
		logger.Info("daily report email disabled: no recipients configured")
		return nil
	}

	gen := report.NewGenerator(daily, raw, acts, preds, errs, logger)
	emailer := report.NewEmailer(gen, deps.Mailer, appCfg.MailFromName, recipients, logger)
	return startReportCron(appCfg.ReportCron, emailer, logger)
}

// taskRunner and reportCron are package-level so Shutdown can stop them.
var (
	taskRunner *tasks.Runner
	reportCron *cron.Cron
)

// startTaskRunner initializes and starts the background task runner.
func startTaskRunner(appCfg AppConfig, daily *dailysessions.Store, raw *rawsessions.Store, acts *actions.Store, arch *archive.Store, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	taskRunner.Register(tasks.InactiveSessionCleanupJob(raw, logger, appCfg.InactiveSessionTimeout))
	taskRunner.Register(tasks.ActionPruneJob(acts, logger, time.Duration(appCfg.ActionRetentionDays)*24*time.Hour))
	taskRunner.Register(tasks.ArchiveJob(daily, arch, logger, appCfg.ArchiveRetentionDays))

	taskRunner.Start()
}

// startReportCron schedules the daily report email.
func startReportCron(spec string, emailer *report.Emailer, logger *zap.Logger) error {
	reportCron = cron.New()
	_, err := reportCron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Batch())
		defer cancel()
		if err := emailer.SendDaily(ctx, time.Now()); err != nil {
			logger.Error("daily report email failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Error("invalid report cron spec", zap.String("spec", spec), zap.Error(err))
		return err
	}
	reportCron.Start()
	logger.Info("daily report scheduled", zap.String("cron", spec))
	return nil
}

// splitRecipients parses a comma-separated address list.
func splitRecipients(raw string) []string {
	var out []string
	for _, addr := range strings.Split(raw, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
