package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/andresuchdata/gcs-media-sync/internal/config"
	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/andresuchdata/gcs-media-sync/internal/rewrite"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// MediaSyncer is the part of the sync engine exposed over HTTP.
type MediaSyncer interface {
	SyncOne(ctx context.Context, itemID int64, force bool, timeout time.Duration) (domain.SyncOutcome, error)
	RemoteStatus(ctx context.Context, itemID int64) ([]domain.RemoteObjectStatus, error)
	DeleteRemoteByID(ctx context.Context, itemID int64) (domain.DeletionReport, error)
	HandleUpload(ctx context.Context, itemID int64) domain.SyncOutcome
	Config() config.SyncConfig
}

type URLResolver interface {
	Resolve(ctx context.Context, localURL string, itemID int64) (string, error)
	ResolveSrcset(ctx context.Context, sources []rewrite.SrcsetSource, itemID int64) []rewrite.SrcsetSource
	Invalidate(itemID int64)
}

type MediaHandler struct {
	syncer   MediaSyncer
	resolver URLResolver
	timeout  time.Duration
}

// NewMediaHandler builds the media routes handler. timeout is the
// per-item sync timeout, zero for none.
func NewMediaHandler(syncer MediaSyncer, resolver URLResolver, timeout time.Duration) *MediaHandler {
	return &MediaHandler{syncer: syncer, resolver: resolver, timeout: timeout}
}

type srcsetRequest struct {
	Sources []rewrite.SrcsetSource `json:"sources" binding:"required"`
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media id"})
		return 0, false
	}
	return id, true
}

// errorResponse maps the error taxonomy onto HTTP status codes.
func errorResponse(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConfiguration):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrStore):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// ResolveURL handles GET /media/:id/url?src=
func (h *MediaHandler) ResolveURL(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	src := c.Query("src")
	if src == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "src is required"})
		return
	}

	resolved, err := h.resolver.Resolve(c.Request.Context(), src, id)
	if err != nil && !errors.Is(err, domain.ErrItemNotFound) {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": resolved})
}

// ResolveSrcset handles POST /media/:id/srcset
func (h *MediaHandler) ResolveSrcset(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req srcsetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": h.resolver.ResolveSrcset(c.Request.Context(), req.Sources, id)})
}

// Sync handles POST /media/:id/sync?force=
func (h *MediaHandler) Sync(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))

	out, err := h.syncer.SyncOne(c.Request.Context(), id, force, h.timeout)
	if err != nil {
		errorResponse(c, err)
		return
	}
	h.resolver.Invalidate(id)

	status := http.StatusOK
	if out.Status == domain.StatusError {
		status = http.StatusBadGateway
		if errors.Is(out.Err, domain.ErrNotFound) {
			status = http.StatusUnprocessableEntity
		}
	}
	c.JSON(status, out)
}

// Uploaded handles POST /media/:id/uploaded, sent by the host once an item
// and its variants are on disk.
func (h *MediaHandler) Uploaded(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	out := h.syncer.HandleUpload(c.Request.Context(), id)
	h.resolver.Invalidate(id)
	c.JSON(http.StatusAccepted, out)
}

// RemoteStatus handles GET /media/:id/remote
func (h *MediaHandler) RemoteStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	statuses, err := h.syncer.RemoteStatus(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"item_id":    id,
		"objects":    statuses,
		"keep_local": rewrite.KeepLocalOnHostDelete(h.syncer.Config()),
	})
}

// DeleteRemote handles DELETE /media/:id/remote
func (h *MediaHandler) DeleteRemote(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	report, err := h.syncer.DeleteRemoteByID(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}
	h.resolver.Invalidate(id)
	c.JSON(http.StatusOK, report)
}
