// Package server provides the HTTP server for primal-site, built on
// Echo v4. It serves the public pages, the public content and contact
// JSON endpoints, and the admin console API under /admin/api.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/primal-host/primal-site/internal/auth"
	"github.com/primal-host/primal-site/internal/config"
	"github.com/primal-host/primal-site/internal/contact"
	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/editor"
	"github.com/primal-host/primal-site/internal/events"
	"github.com/primal-host/primal-site/internal/media"
	"github.com/primal-host/primal-site/internal/render"
	"github.com/primal-host/primal-site/internal/resolver"
	"github.com/primal-host/primal-site/internal/settings"
	"github.com/primal-host/primal-site/internal/store"
	"go.uber.org/zap"
)

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components the server routes to. DB may be nil when the
// site runs on the in-memory store.
type Deps struct {
	Store     store.Store
	Registry  *content.Registry
	Resolver  *resolver.Resolver
	Editors   *editor.Set
	Settings  *settings.Settings
	Contact   *contact.Sink
	Inbox     *contact.Inbox
	Media     *media.Library
	Events    *events.Manager
	JWT       *auth.JWTManager
	Pages     *render.Pages
	Templates *render.Templates
	DB        Pinger
	Log       *zap.Logger
}

// Server wraps the Echo instance and application dependencies.
type Server struct {
	echo *echo.Echo
	cfg  *config.Config
	Deps
	log *zap.Logger
}

// New creates a configured Echo server with all routes registered.
func New(cfg *config.Config, d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true // We log the listen address ourselves.
	e.Renderer = d.Templates

	s := &Server{echo: e, cfg: cfg, Deps: d, log: d.Log.Named("http")}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				s.log.Error("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			s.log.Info("request", fields...)
			return nil
		},
	}))

	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// authContext holds the authenticated caller's identity.
type authContext struct {
	Subject string
	IsAdmin bool
}

const authContextKey = "auth"

// getAuth retrieves the auth context set by middleware.
func getAuth(c echo.Context) *authContext {
	if ac, ok := c.Get(authContextKey).(*authContext); ok {
		return ac
	}
	return nil
}

// requireAuth is middleware that validates a Bearer token as either the
// admin key or a session access token.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		return s.authenticate(c, extractBearer(c), next)
	}
}

// requireStreamAuth is requireAuth for the websocket handshake, which
// browsers cannot attach headers to. The token may come from the
// access_token query parameter instead.
func (s *Server) requireStreamAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractBearer(c)
		if token == "" {
			token = c.QueryParam("access_token")
		}
		return s.authenticate(c, token, next)
	}
}

func (s *Server) authenticate(c echo.Context, token string, next echo.HandlerFunc) error {
	if token == "" {
		return jsonError(c, http.StatusUnauthorized, "AuthRequired", "Authorization header with Bearer token is required")
	}

	if s.cfg.AdminKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminKey)) == 1 {
		c.Set(authContextKey, &authContext{Subject: auth.AdminSubject, IsAdmin: true})
		return next(c)
	}

	sub, err := s.JWT.ValidateAccessToken(token)
	if err != nil {
		return jsonError(c, http.StatusUnauthorized, "InvalidToken", "Invalid or expired access token")
	}

	c.Set(authContextKey, &authContext{Subject: sub})
	return next(c)
}

// requireRefresh is middleware that validates a Bearer token as a
// session refresh token.
func (s *Server) requireRefresh(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractBearer(c)
		if token == "" {
			return jsonError(c, http.StatusUnauthorized, "AuthRequired", "Authorization header with Bearer token is required")
		}

		sub, err := s.JWT.ValidateRefreshToken(token)
		if err != nil {
			return jsonError(c, http.StatusUnauthorized, "InvalidToken", "Invalid or expired refresh token")
		}

		c.Set(authContextKey, &authContext{Subject: sub})
		return next(c)
	}
}

// extractBearer extracts the Bearer token from the Authorization header.
func extractBearer(c echo.Context) string {
	h := c.Request().Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

// jsonError writes the error body every API handler uses.
func jsonError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, map[string]string{
		"error":   code,
		"message": message,
	})
}

// Start begins listening for HTTP requests. It blocks until the context
// is cancelled, then performs a graceful shutdown allowing in-flight
// requests to complete.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.cfg.ListenAddr))
		if err := s.echo.Start(s.cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("shutting down HTTP server")
		if s.Events != nil {
			s.Events.Shutdown()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}
