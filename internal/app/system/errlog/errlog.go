// internal/app/system/errlog/errlog.go

// Package errlog records server-side errors both to structured logs and
// to the error_log collection, where the daily report picks them up.
package errlog

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/stockboard/stockboard/internal/app/store/errorlog"
	"github.com/stockboard/stockboard/internal/app/system/jsonutil"
	"github.com/stockboard/stockboard/internal/app/system/timeouts"
)

// Logger writes errors to zap and the error log store.
type Logger struct {
	store  *errorlog.Store
	zapLog *zap.Logger
}

// New creates an error Logger. The store may be nil, in which case
// errors only reach zap.
func New(store *errorlog.Store, zapLog *zap.Logger) *Logger {
	return &Logger{store: store, zapLog: zapLog}
}

// Record logs an error from the named component. Persistence is best
// effort: a store failure must never mask the original error, so it is
// only logged.
func (l *Logger) Record(ctx context.Context, source string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}

	all := append([]zap.Field{zap.String("source", source), zap.Error(err)}, fields...)
	l.zapLog.Error("server error", all...)

	if l.store == nil {
		return
	}
	entry := errorlog.Entry{
		Source:    source,
		Message:   err.Error(),
		Timestamp: time.Now(),
	}
	for _, f := range fields {
		switch f.Key {
		case "user_id":
			entry.UserID = f.String
		case "path":
			entry.Path = f.String
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Short())
	defer cancel()
	if serr := l.store.Insert(ctx, entry); serr != nil {
		l.zapLog.Warn("error log persist failed", zap.Error(serr))
	}
}

// Recoverer returns middleware that converts a handler panic into the
// standard JSON error envelope with a 500 status. The panic value and
// stack are recorded, so crashes surface in the report's system health
// section instead of killing the process.
func (l *Logger) Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				l.Record(r.Context(), "panic", fmt.Errorf("%v", rec),
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.ByteString("stack", debug.Stack()))
				jsonutil.InternalError(w, "internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
