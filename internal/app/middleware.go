package app

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"

	"github.com/sahel-erp/sahel-erp/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger *slog.Logger
	Config *Config
}

// MiddlewareStack installs the common middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	stack := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		secureMiddleware.Handler,
		actorMiddleware,
	}
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		stack = append(stack, middleware.Timeout(cfg.Config.AppRequestTimeout))
	}
	return stack
}

// actorMiddleware reads the authenticated user id injected by the edge proxy.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-Actor-ID"); raw != "" {
			if actorID, err := strconv.ParseInt(raw, 10, 64); err == nil {
				r = r.WithContext(shared.ContextWithActor(r.Context(), actorID))
			}
		}
		next.ServeHTTP(w, r)
	})
}
