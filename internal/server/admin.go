package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
	"github.com/primal-host/primal-site/internal/auth"
	"github.com/primal-host/primal-site/internal/editor"
	"github.com/primal-host/primal-site/internal/settings"
	"github.com/primal-host/primal-site/internal/store"
	"go.uber.org/zap"
)

// --- Session ---

type loginRequest struct {
	Password string `json:"password"`
}

// handleLogin exchanges the admin password for a session token pair.
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "InvalidRequest", "Invalid JSON body")
	}
	if err := auth.CheckPassword(s.cfg.AdminPasswordHash, req.Password); err != nil {
		s.log.Info("admin login rejected", zap.String("remote_ip", c.RealIP()))
		return jsonError(c, http.StatusUnauthorized, "AuthenticationRequired", "Invalid password")
	}
	pair, err := s.JWT.CreateTokenPair(auth.AdminSubject)
	if err != nil {
		s.log.Error("create session", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "InternalError", "Failed to create session")
	}
	return c.JSON(http.StatusOK, pair)
}

// handleRefresh issues a new token pair for a valid refresh token.
func (s *Server) handleRefresh(c echo.Context) error {
	pair, err := s.JWT.CreateTokenPair(getAuth(c).Subject)
	if err != nil {
		s.log.Error("refresh session", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "InternalError", "Failed to refresh session")
	}
	return c.JSON(http.StatusOK, pair)
}

// --- Console ---

func (s *Server) handleMenu(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"menu": s.Editors.Menu()})
}

type dashboardEntry struct {
	Type   string `json:"type"`
	Label  string `json:"label"`
	Total  int    `json:"total"`
	Active int    `json:"active"`
}

// handleDashboard summarizes every collection and the inbox. A type whose
// read fails is reported with total -1 rather than failing the page.
func (s *Server) handleDashboard(c echo.Context) error {
	ctx := c.Request().Context()
	var entries []dashboardEntry
	for _, m := range s.Editors.Menu() {
		t := s.Registry.MustGet(m.Key)
		entry := dashboardEntry{Type: t.Key, Label: t.Label}
		rows, err := s.Store.Select(ctx, t, store.Query{})
		if err != nil {
			s.log.Warn("dashboard count", zap.String("type", t.Key), zap.Error(err))
			entry.Total = -1
		} else {
			entry.Total = len(rows)
			for _, r := range rows {
				if r.IsActive {
					entry.Active++
				}
			}
		}
		entries = append(entries, entry)
	}

	unread, err := s.Inbox.UnreadCount(ctx)
	if err != nil {
		s.log.Warn("dashboard unread count", zap.Error(err))
		unread = -1
	}
	return c.JSON(http.StatusOK, map[string]any{
		"subject":     getAuth(c).Subject,
		"collections": entries,
		"unread":      unread,
	})
}

// --- Content editors ---

type fieldsRequest struct {
	Fields    map[string]any `json:"fields"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

// editorFor resolves the :type param to its editor.
func (s *Server) editorFor(c echo.Context) (*editor.Editor, bool) {
	return s.Editors.Get(c.Param("type"))
}

func unknownType(c echo.Context) error {
	return jsonError(c, http.StatusNotFound, "UnknownType", "No editor for content type: "+c.Param("type"))
}

func (s *Server) handleList(c echo.Context) error {
	ed, ok := s.editorFor(c)
	if !ok {
		return unknownType(c)
	}
	v, err := ed.List(c.Request().Context())
	return viewResponse(c, v, err)
}

func (s *Server) handleCreate(c echo.Context) error {
	ed, ok := s.editorFor(c)
	if !ok {
		return unknownType(c)
	}
	var req fieldsRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "InvalidRequest", "Invalid JSON body")
	}
	v, err := ed.Create(c.Request().Context(), req.Fields)
	if err == nil {
		return c.JSON(http.StatusCreated, v)
	}
	return viewResponse(c, v, err)
}

// handleSave writes a singleton, creating its row on first save.
func (s *Server) handleSave(c echo.Context) error {
	ed, ok := s.editorFor(c)
	if !ok {
		return unknownType(c)
	}
	var req fieldsRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "InvalidRequest", "Invalid JSON body")
	}
	v, err := ed.Save(c.Request().Context(), req.Fields, req.UpdatedAt)
	return viewResponse(c, v, err)
}

func (s *Server) handleUpdate(c echo.Context) error {
	ed, ok := s.editorFor(c)
	if !ok {
		return unknownType(c)
	}
	var req fieldsRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "InvalidRequest", "Invalid JSON body")
	}
	v, err := ed.Update(c.Request().Context(), c.Param("id"), req.Fields, req.UpdatedAt)
	return viewResponse(c, v, err)
}

func (s *Server) handleToggle(c echo.Context) error {
	ed, ok := s.editorFor(c)
	if !ok {
		return unknownType(c)
	}
	v, err := ed.ToggleActive(c.Request().Context(), c.Param("id"))
	return viewResponse(c, v, err)
}

// handleDelete returns a confirmation prompt unless ?confirm=true.
func (s *Server) handleDelete(c echo.Context) error {
	ed, ok := s.editorFor(c)
	if !ok {
		return unknownType(c)
	}
	v, err := ed.Delete(c.Request().Context(), c.Param("id"), confirmed(c))
	return viewResponse(c, v, err)
}

func (s *Server) handleReorder(c echo.Context) error {
	ed, ok := s.editorFor(c)
	if !ok {
		return unknownType(c)
	}
	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "InvalidRequest", "Invalid JSON body")
	}
	v, err := ed.Reorder(c.Request().Context(), req.IDs)
	return viewResponse(c, v, err)
}

// --- Section settings ---

type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

func (s *Server) handleListSettings(c echo.Context) error {
	list, err := s.Settings.List(c.Request().Context())
	if err != nil {
		s.log.Info("list settings", zap.Error(err))
		return jsonError(c, http.StatusServiceUnavailable, "StoreError", "Failed to load section settings")
	}
	return c.JSON(http.StatusOK, map[string]any{"settings": list})
}

func (s *Server) handleSetVisible(c echo.Context) error {
	var req visibilityRequest
	if err := c.Bind(&req); err != nil || req.Visible == nil {
		return jsonError(c, http.StatusBadRequest, "InvalidRequest", "visible is required")
	}
	key := c.Param("key")
	if !knownSection(key) {
		return jsonError(c, http.StatusNotFound, "UnknownSection", "No section setting: "+key)
	}
	set, err := s.Settings.SetVisible(c.Request().Context(), key, *req.Visible)
	if err != nil {
		s.log.Info("set visibility", zap.String("section", key), zap.Error(err))
		return jsonError(c, http.StatusServiceUnavailable, "StoreError", "Failed to update section setting")
	}
	return c.JSON(http.StatusOK, set)
}

func knownSection(key string) bool {
	for _, k := range settings.Known {
		if k == key {
			return true
		}
	}
	return false
}

// --- Submissions ---

type readRequest struct {
	Read bool `json:"read"`
}

func (s *Server) handleListSubmissions(c echo.Context) error {
	v, err := s.Inbox.List(c.Request().Context())
	return viewResponse(c, v, err)
}

func (s *Server) handleMarkRead(c echo.Context) error {
	var req readRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "InvalidRequest", "Invalid JSON body")
	}
	v, err := s.Inbox.MarkRead(c.Request().Context(), c.Param("id"), req.Read)
	return viewResponse(c, v, err)
}

func (s *Server) handleDeleteSubmission(c echo.Context) error {
	v, err := s.Inbox.Delete(c.Request().Context(), c.Param("id"), confirmed(c))
	return viewResponse(c, v, err)
}

// --- Helpers ---

func confirmed(c echo.Context) bool {
	ok, _ := strconv.ParseBool(c.QueryParam("confirm"))
	return ok
}

// viewResponse writes an editor View. Failed operations keep the View,
// banner and open form included, under the standard error body.
func viewResponse(c echo.Context, v editor.View, err error) error {
	if err == nil {
		return c.JSON(http.StatusOK, v)
	}
	status, code := editorStatus(err)
	msg := err.Error()
	if v.Notice != nil {
		msg = v.Notice.Text
	}
	return c.JSON(status, map[string]any{
		"error":   code,
		"message": msg,
		"view":    v,
	})
}

func editorStatus(err error) (int, string) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity, "ValidationFailed"
	case errors.Is(err, editor.ErrNotAllowed):
		return http.StatusForbidden, "NotAllowed"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, store.ErrDuplicateKey):
		return http.StatusConflict, "DuplicateKey"
	case errors.Is(err, store.ErrNotFound), errors.Is(err, editor.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	}
	return http.StatusServiceUnavailable, "StoreError"
}
