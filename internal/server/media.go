package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/primal-host/primal-site/internal/media"
	"go.uber.org/zap"
)

// mediaType is the change feed type key for the media library.
const mediaType = "media"

func (s *Server) handleListMedia(c echo.Context) error {
	items, err := s.Media.List(c.Request().Context())
	if err != nil {
		s.log.Info("list media", zap.Error(err))
		return jsonError(c, http.StatusServiceUnavailable, "StoreError", "Failed to list media")
	}
	return c.JSON(http.StatusOK, map[string]any{"media": items})
}

// handleUpload accepts a multipart "file" field. The stored item, with
// the URL to put into image_url or video_url fields, is returned.
func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "InvalidRequest", "Multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "InvalidRequest", "Could not read upload")
	}
	defer f.Close()

	it, err := s.Media.Upload(c.Request().Context(), fh.Filename, f)
	switch {
	case errors.Is(err, media.ErrTooLarge):
		return jsonError(c, http.StatusRequestEntityTooLarge, "BlobTooLarge", "File must be 5 MB or smaller")
	case errors.Is(err, media.ErrUnsupported):
		return jsonError(c, http.StatusUnsupportedMediaType, "UnsupportedType", "Only image and video files can be uploaded")
	case err != nil:
		s.log.Error("upload media", zap.String("filename", fh.Filename), zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "InternalError", "Failed to store upload")
	}
	s.recordMedia(c, "create", it.ID)
	return c.JSON(http.StatusOK, it)
}

type describeRequest struct {
	AltText string `json:"altText"`
}

func (s *Server) handleDescribeMedia(c echo.Context) error {
	var req describeRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "InvalidRequest", "Invalid JSON body")
	}
	it, err := s.Media.Describe(c.Request().Context(), c.Param("id"), req.AltText)
	if errors.Is(err, media.ErrNotFound) {
		return jsonError(c, http.StatusNotFound, "MediaNotFound", "Media not found")
	}
	if err != nil {
		s.log.Info("describe media", zap.Error(err))
		return jsonError(c, http.StatusServiceUnavailable, "StoreError", "Failed to update media")
	}
	s.recordMedia(c, "update", it.ID)
	return c.JSON(http.StatusOK, it)
}

func (s *Server) handleDeleteMedia(c echo.Context) error {
	id := c.Param("id")
	if !confirmed(c) {
		return c.JSON(http.StatusOK, map[string]any{
			"confirm": map[string]string{"id": id, "prompt": "Are you sure you want to delete this file?"},
		})
	}
	err := s.Media.Delete(c.Request().Context(), id)
	if errors.Is(err, media.ErrNotFound) {
		return jsonError(c, http.StatusNotFound, "MediaNotFound", "Media not found")
	}
	if err != nil {
		s.log.Info("delete media", zap.Error(err))
		return jsonError(c, http.StatusServiceUnavailable, "StoreError", "Failed to delete media")
	}
	s.recordMedia(c, "delete", id)
	return c.JSON(http.StatusOK, map[string]string{"message": "Media deleted"})
}

func (s *Server) recordMedia(c echo.Context, action, id string) {
	if s.Events != nil {
		s.Events.Record(c.Request().Context(), mediaType, action, id)
	}
}
