// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	activityapifeature "github.com/stockboard/stockboard/internal/app/features/activityapi"
	authapifeature "github.com/stockboard/stockboard/internal/app/features/authapi"
	healthfeature "github.com/stockboard/stockboard/internal/app/features/health"
	predictionsapifeature "github.com/stockboard/stockboard/internal/app/features/predictionsapi"
	"github.com/stockboard/stockboard/internal/app/store/actions"
	"github.com/stockboard/stockboard/internal/app/store/archive"
	"github.com/stockboard/stockboard/internal/app/store/dailysessions"
	"github.com/stockboard/stockboard/internal/app/store/errorlog"
	"github.com/stockboard/stockboard/internal/app/store/predictions"
	"github.com/stockboard/stockboard/internal/app/store/rawsessions"
	"github.com/stockboard/stockboard/internal/app/store/userstats"
	"github.com/stockboard/stockboard/internal/app/system/auth"
	"github.com/stockboard/stockboard/internal/app/system/errlog"
	"github.com/stockboard/stockboard/internal/app/system/indexes"
	"github.com/stockboard/stockboard/internal/app/system/mlapi"
	"github.com/stockboard/stockboard/internal/app/system/report"
)

// BuildHandler constructs the root HTTP handler (router) for this
// WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and any Startup hooks have completed.
//
// Route surface:
//   - /api/* - the dashboard JSON API. The activity tracking endpoints
//     are unauthenticated (the client drops failures silently), the
//     report and maintenance endpoints take the admin key, and the
//     prediction endpoints use session auth.
//   - /health, /ready, /livez - probes for load balancers
//
// CSRF protection is session-cookie oriented, so /api/* is exempt: the
// tracking endpoints carry no session and the session-authenticated
// JSON endpoints are called from scripts, following the same exemption
// the heartbeat API used.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Seeded accounts double as the UserFetcher so disabled accounts
	// take effect on the next request.
	accounts, err := parseAccounts(appCfg.Accounts)
	if err != nil {
		return nil, err
	}
	registry := auth.NewRegistry(accounts)
	sessionMgr.SetUserFetcher(registry)
	logger.Info("account registry loaded", zap.Int("accounts", len(accounts)))

	db := deps.MongoDatabase
	dailyStore := dailysessions.New(db)
	statsStore := userstats.New(db)
	rawStore := rawsessions.New(db, indexes.RawSessionTTL)
	actionStore := actions.New(db)
	archiveStore := archive.New(db)
	predictionStore := predictions.New(db)
	errorStore := errorlog.New(db)

	errLog := errlog.New(errorStore, logger)
	reportGen := report.NewGenerator(dailyStore, rawStore, actionStore, predictionStore, errorStore, logger)
	mlClient := mlapi.New(appCfg.MLAPIBaseURL, appCfg.MLAPIKey, 0, logger)

	r := chi.NewRouter()

	// Global middleware. The recoverer sits first so a panic anywhere
	// below still produces the JSON error envelope.
	r.Use(errLog.Recoverer())
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))
	r.Use(sessionMgr.LoadSessionUser)

	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("stockboard_csrf"),
		csrf.FieldName("csrf_token"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			http.Error(w, "CSRF token invalid or missing", http.StatusForbidden)
		})),
	}
	if !secure {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	csrfProtect := csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...)

	csrfMiddleware := func(next http.Handler) http.Handler {
		csrfHandler := csrfProtect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.HasPrefix(req.URL.Path, "/api/") {
				next.ServeHTTP(w, req)
				return
			}
			csrfHandler.ServeHTTP(w, req)
		})
	}
	r.Use(csrfMiddleware)

	// Dashboard JSON API
	activityHandler := activityapifeature.New(dailyStore, statsStore, rawStore, actionStore, archiveStore, reportGen, errLog, logger)
	authHandler := authapifeature.New(registry, sessionMgr, logger)
	predictionsHandler := predictionsapifeature.New(mlClient, predictionStore, errLog, logger)

	r.Route("/api", func(api chi.Router) {
		activityapifeature.MountRoutes(api, activityHandler, appCfg.AdminKey, logger)
		authapifeature.MountRoutes(api, authHandler)
		predictionsapifeature.MountRoutes(api, predictionsHandler, sessionMgr)
	})

	// Health check endpoints for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	return r, nil
}
