package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/primal-host/primal-site/internal/contact"
	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/media"
	"github.com/primal-host/primal-site/internal/render"
	"go.uber.org/zap"
)

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	// --- Public site (no auth) ---
	s.echo.GET("/", s.handleHome)
	s.echo.GET("/about", s.handleAbout)
	s.echo.POST("/contact", s.handleContactForm)
	s.echo.GET("/media/:id", s.handleMedia)
	s.echo.GET("/_health", s.handleHealth)

	// --- Public JSON ---
	s.echo.GET("/api/content/:type", s.handleContent)
	s.echo.POST("/api/contact", s.handleContactAPI)

	// --- Admin session ---
	s.echo.POST("/admin/api/session", s.handleLogin)
	s.echo.POST("/admin/api/session/refresh", s.handleRefresh, s.requireRefresh)

	// --- Admin change stream (websocket) ---
	s.echo.GET("/admin/api/events", s.handleEvents, s.requireStreamAuth)

	// --- Admin console API (auth required) ---
	admin := s.echo.Group("/admin/api", s.requireAuth)
	admin.GET("/menu", s.handleMenu)
	admin.GET("/dashboard", s.handleDashboard)

	admin.GET("/content/:type", s.handleList)
	admin.POST("/content/:type", s.handleCreate)
	admin.PUT("/content/:type", s.handleSave)
	admin.POST("/content/:type/reorder", s.handleReorder)
	admin.PATCH("/content/:type/:id", s.handleUpdate)
	admin.POST("/content/:type/:id/toggle", s.handleToggle)
	admin.DELETE("/content/:type/:id", s.handleDelete)

	admin.GET("/settings", s.handleListSettings)
	admin.PUT("/settings/:key", s.handleSetVisible)

	admin.GET("/submissions", s.handleListSubmissions)
	admin.POST("/submissions/:id/read", s.handleMarkRead)
	admin.DELETE("/submissions/:id", s.handleDeleteSubmission)

	admin.GET("/media", s.handleListMedia)
	admin.POST("/media", s.handleUpload)
	admin.PATCH("/media/:id", s.handleDescribeMedia)
	admin.DELETE("/media/:id", s.handleDeleteMedia)

	admin.GET("/changes", s.handleChanges)
}

// handleHealth reports whether the server and its store are alive.
func (s *Server) handleHealth(c echo.Context) error {
	body := map[string]string{"version": "0.1.0", "store": "memory"}
	if s.DB != nil {
		body["store"] = "ok"
		if err := s.DB.Ping(c.Request().Context()); err != nil {
			body["store"] = "unreachable"
		}
	}
	return c.JSON(http.StatusOK, body)
}

func (s *Server) handleHome(c echo.Context) error {
	home := s.Pages.Home(c.Request().Context(), contact.NewForm().Snapshot())
	return c.Render(http.StatusOK, render.PageHome, home)
}

func (s *Server) handleAbout(c echo.Context) error {
	return c.Render(http.StatusOK, render.PageAbout, s.Pages.About(c.Request().Context()))
}

// handleContent returns the resolved collection for a public type. The
// response is never an error for a known type; a store failure shows up
// as source "defaults".
func (s *Server) handleContent(c echo.Context) error {
	key := c.Param("type")
	t, ok := s.Registry.Get(key)
	if !ok || !t.Public {
		return jsonError(c, http.StatusNotFound, "UnknownType", "No content type: "+key)
	}
	ctx := c.Request().Context()
	if key == content.TypeSectionHeadings {
		// Headings resolve per section key, so stored and default rows mix.
		byKey := s.Resolver.Headings(ctx)
		items := make([]content.Item, 0, len(byKey))
		for _, it := range byKey {
			items = append(items, it)
		}
		content.Sort(t, items)
		return c.JSON(http.StatusOK, map[string]any{"type": key, "items": items})
	}
	items, source := s.Resolver.ResolveSource(ctx, key)
	return c.JSON(http.StatusOK, map[string]any{"type": key, "source": source, "items": items})
}

// handleContactForm serves the no-script contact form. The page is
// rendered with the outcome; a successful submit shows the thank-you
// state, which refreshes back to the cleared form.
func (s *Server) handleContactForm(c echo.Context) error {
	var sub contact.Submission
	if err := c.Bind(&sub); err != nil {
		return jsonError(c, http.StatusBadRequest, "InvalidRequest", "Invalid form body")
	}
	_, err := s.Contact.Submit(c.Request().Context(), sub)
	snap := contact.Outcome(sub, err)
	home := s.Pages.Home(c.Request().Context(), snap)
	return c.Render(contactStatus(err), render.PageHome, home)
}

// handleContactAPI accepts a JSON submission and returns the form state.
func (s *Server) handleContactAPI(c echo.Context) error {
	var sub contact.Submission
	if err := c.Bind(&sub); err != nil {
		return jsonError(c, http.StatusBadRequest, "InvalidRequest", "Invalid JSON body")
	}
	_, err := s.Contact.Submit(c.Request().Context(), sub)
	return c.JSON(contactStatus(err), contact.Outcome(sub, err))
}

func contactStatus(err error) int {
	var verr *contact.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

// handleMedia streams an uploaded file.
func (s *Server) handleMedia(c echo.Context) error {
	it, data, err := s.Media.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, media.ErrNotFound) {
		return jsonError(c, http.StatusNotFound, "MediaNotFound", "Media not found")
	}
	if err != nil {
		s.log.Error("read media", zap.String("id", c.Param("id")), zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "InternalError", "Failed to read media")
	}
	h := c.Response().Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", "default-src 'none'; sandbox")
	h.Set("Cache-Control", "public, max-age=31536000, immutable")
	h.Set("ETag", strconv.Quote(it.ID))
	if match := c.Request().Header.Get("If-None-Match"); match == strconv.Quote(it.ID) {
		return c.NoContent(http.StatusNotModified)
	}
	if !media.Servable(it.MimeType) {
		h.Set("Content-Disposition", "attachment")
		return c.Blob(http.StatusOK, echo.MIMEOctetStream, data)
	}
	return c.Blob(http.StatusOK, it.MimeType, data)
}
