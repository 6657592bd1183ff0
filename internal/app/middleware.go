package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/alfozan/insights/internal/auth"
	"github.com/alfozan/insights/internal/observability"
	"github.com/alfozan/insights/internal/platform/httpx"
	"github.com/alfozan/insights/internal/rbac"
	"github.com/alfozan/insights/internal/session"
	"github.com/alfozan/insights/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Table          *rbac.Table
	Metrics        *observability.Metrics
	LoginSessions  auth.SessionChecker
}

// MiddlewareStack returns the chain every route runs behind, in order.
// Metrics sit outside Recoverer so panics count as 500s.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	logger := cfg.logger()
	production := cfg.Config != nil && cfg.Config.IsProduction()
	headers := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		STSSeconds:            31536000,
		IsDevelopment:         !production,
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	chain := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.RequestLogger(&slogFormatter{logger: logger}),
	}
	if cfg.Metrics != nil {
		chain = append(chain, cfg.Metrics.Middleware)
	}
	return append(chain,
		middleware.Recoverer,
		headers.Handler,
		httprate.Limit(60, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		middleware.Timeout(timeout),
	)
}

// SessionStack returns the chain for routes that need a device session and a
// restored auth context. It runs after MiddlewareStack, so rate limiting
// happens before the redis round trip.
func SessionStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	logger := cfg.logger()
	return []func(http.Handler) http.Handler{
		DeviceSessions(cfg.SessionManager, logger),
		AuthContext(logger, cfg.Table, cfg.LoginSessions),
		middleware.Compress(5),
	}
}

func (cfg MiddlewareConfig) logger() *slog.Logger {
	if cfg.Logger == nil {
		return slog.Default()
	}
	return cfg.Logger
}

// DeviceSessions loads the cookie-bound session and commits it just before
// the response header goes out, or after the handler if it wrote nothing.
func DeviceSessions(manager *shared.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := manager.Load(ctx, r)
			if err != nil {
				logger.Error("load device session", slog.Any("error", err))
				httpx.Fail(w, http.StatusServiceUnavailable, "Session store unavailable")
				return
			}
			ctx = shared.ContextWithSession(ctx, sess)
			cw := &committingWriter{ResponseWriter: w, commit: func() {
				if err := manager.Commit(ctx, w, sess); err != nil {
					logger.Error("commit device session", slog.Any("error", err))
				}
			}}
			next.ServeHTTP(cw, r.WithContext(ctx))
			cw.flushCommit()
		})
	}
}

// committingWriter runs commit once, before the first header write, since
// cookies cannot be set afterwards.
type committingWriter struct {
	http.ResponseWriter
	commit func()
	done   bool
}

func (w *committingWriter) flushCommit() {
	if !w.done {
		w.done = true
		w.commit()
	}
}

func (w *committingWriter) WriteHeader(code int) {
	w.flushCommit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *committingWriter) Write(b []byte) (int, error) {
	w.flushCommit()
	return w.ResponseWriter.Write(b)
}

// AuthContext provides every request with an auth context bound to the
// device session. The identity slot is restored before the handler runs.
// When sessions is set, a restored identity whose directory login session
// has been removed, for example by deactivation, is logged out.
func AuthContext(logger *slog.Logger, table *rbac.Table, sessions auth.SessionChecker) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess := shared.SessionFromContext(ctx)
			slot := session.NewDeviceSlot(sess, session.SlotName)
			ac := auth.NewContext(session.NewStore(slot, logger), table, logger)
			defer ac.Close()
			if snap := ac.Restore(ctx); snap.Authenticated() && sessions != nil && sess != nil {
				if id := sess.Get(auth.LoginSessionKey); id != "" {
					active, err := sessions.SessionActive(ctx, id)
					if err != nil {
						logger.Error("check login session", slog.Any("error", err))
						httpx.Fail(w, http.StatusServiceUnavailable, "Session store unavailable")
						return
					}
					if !active {
						logger.Info("login session revoked", slog.String("user_id", snap.Identity.ID))
						if err := ac.Logout(ctx); err != nil {
							logger.Warn("clear session", slog.Any("error", err))
						}
						sess.Delete(auth.LoginSessionKey)
						sess.SetUser("")
					}
				}
			}
			next.ServeHTTP(w, r.WithContext(auth.WithContext(ctx, ac)))
		})
	}
}

type slogFormatter struct {
	logger *slog.Logger
}

func (f *slogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &slogEntry{logger: f.logger.With(
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote", r.RemoteAddr),
	)}
}

type slogEntry struct {
	logger *slog.Logger
}

func (e *slogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	e.logger.Info("request",
		slog.Int("status", status),
		slog.Int("bytes", bytes),
		slog.Duration("elapsed", elapsed))
}

func (e *slogEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error("panic", slog.Any("panic", v), slog.String("stack", string(stack)))
}
