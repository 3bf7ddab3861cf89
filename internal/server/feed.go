package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/primal-host/primal-site/internal/editor"
	"github.com/primal-host/primal-site/internal/events"
	"go.uber.org/zap"
)

var _ editor.ChangeSink = (*events.Manager)(nil)

const (
	feedWriteWait    = 10 * time.Second
	feedPingInterval = 30 * time.Second
	changesMaxLimit  = 1000
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// parseSince reads the optional ?since= cursor.
func parseSince(c echo.Context) (*int64, bool) {
	raw := c.QueryParam("since")
	if raw == "" {
		return nil, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return nil, false
	}
	return &n, true
}

// handleEvents streams content changes over a websocket. With ?since=N
// the changes after N are replayed first, so a console that reconnects
// misses nothing.
func (s *Server) handleEvents(c echo.Context) error {
	since, ok := parseSince(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "InvalidRequest", "since must be a non-negative integer")
	}
	ctx := c.Request().Context()
	sub, err := s.Events.Subscribe(ctx, since)
	if err != nil {
		return jsonError(c, http.StatusServiceUnavailable, "Unavailable", "Change feed is shutting down")
	}
	defer sub.Cancel()

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.log.Info("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	// The console never sends anything; reading surfaces its close frame.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(feedPingInterval)
	defer ping.Stop()

	for {
		select {
		case frame := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug("feed write failed", zap.Error(err))
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait)); err != nil {
				return nil
			}
		case <-sub.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "reconnect with since cursor")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(feedWriteWait))
			return nil
		case <-gone:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// handleChanges returns persisted changes after ?since= as JSON.
func (s *Server) handleChanges(c echo.Context) error {
	since, ok := parseSince(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "InvalidRequest", "since must be a non-negative integer")
	}
	cursor := int64(0)
	if since != nil {
		cursor = *since
	}
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return jsonError(c, http.StatusBadRequest, "InvalidRequest", "limit must be a positive integer")
		}
		limit = min(n, changesMaxLimit)
	}

	changes, err := s.Events.Changes(c.Request().Context(), cursor, limit)
	if err != nil {
		s.log.Info("read changes", zap.Error(err))
		return jsonError(c, http.StatusServiceUnavailable, "StoreError", "Failed to read changes")
	}
	resp := map[string]any{"changes": changes, "cursor": cursor}
	if len(changes) > 0 {
		resp["cursor"] = changes[len(changes)-1].Seq
	}
	return c.JSON(http.StatusOK, resp)
}
