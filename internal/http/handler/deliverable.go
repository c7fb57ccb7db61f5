package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pulseworks.app/conductor/internal/engine"
	"pulseworks.app/conductor/internal/http/dto"
	"pulseworks.app/conductor/internal/service"
)

type DeliverableHandler struct {
	deliverables service.DeliverableService
}

func NewDeliverableHandler(deliverables service.DeliverableService) *DeliverableHandler {
	return &DeliverableHandler{deliverables: deliverables}
}

func (h *DeliverableHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateDeliverableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.deliverables.Create(ctx, currentUserID(c), service.CreateDeliverableInput{
		Title:    req.Title,
		Type:     req.Type,
		Schedule: req.Schedule,
	})
	if err != nil {
		h.respondError(c, err, "failed to create deliverable")
		return
	}

	c.JSON(http.StatusCreated, dto.ToDeliverableResponse(d))
}

func (h *DeliverableHandler) List(c *gin.Context) {
	ds, err := h.deliverables.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err, "failed to list deliverables")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliverables": dto.ToDeliverableResponses(ds)})
}

func (h *DeliverableHandler) Get(c *gin.Context) {
	deliverableID, ok := pathID(c, "id")
	if !ok {
		return
	}

	d, err := h.deliverables.Get(c.Request.Context(), currentUserID(c), deliverableID)
	if err != nil {
		h.respondError(c, err, "failed to load deliverable")
		return
	}
	c.JSON(http.StatusOK, dto.ToDeliverableResponse(d))
}

func (h *DeliverableHandler) ListVersions(c *gin.Context) {
	deliverableID, ok := pathID(c, "id")
	if !ok {
		return
	}

	limit := int32(0)
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 32); err == nil {
			limit = int32(n)
		}
	}

	versions, err := h.deliverables.ListVersions(c.Request.Context(), currentUserID(c), deliverableID, limit)
	if err != nil {
		h.respondError(c, err, "failed to list versions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": dto.ToVersionResponses(versions)})
}

// RunNow synchronously produces a new version and returns it. The response
// status reflects the attempt, not the outcome: a failed generation is still
// a recorded version.
func (h *DeliverableHandler) RunNow(c *gin.Context) {
	deliverableID, ok := pathID(c, "id")
	if !ok {
		return
	}

	version, err := h.deliverables.RunNow(c.Request.Context(), currentUserID(c), deliverableID)
	if err != nil {
		h.respondError(c, err, "failed to run deliverable")
		return
	}
	c.JSON(http.StatusCreated, dto.ToVersionResponse(version))
}

func (h *DeliverableHandler) Approve(c *gin.Context) {
	versionID, ok := pathID(c, "versionId")
	if !ok {
		return
	}

	// Empty body means approve as drafted.
	var req dto.ApproveVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	version, err := h.deliverables.Approve(c.Request.Context(), currentUserID(c), versionID, req.FinalContent)
	if err != nil {
		h.respondError(c, err, "failed to approve version")
		return
	}
	c.JSON(http.StatusOK, dto.ToVersionResponse(version))
}

func (h *DeliverableHandler) Reject(c *gin.Context) {
	versionID, ok := pathID(c, "versionId")
	if !ok {
		return
	}

	var req dto.RejectVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	version, err := h.deliverables.Reject(c.Request.Context(), currentUserID(c), versionID, req.Reason)
	if err != nil {
		h.respondError(c, err, "failed to reject version")
		return
	}
	c.JSON(http.StatusOK, dto.ToVersionResponse(version))
}

func (h *DeliverableHandler) Pause(c *gin.Context) {
	h.statusChange(c, h.deliverables.Pause)
}

func (h *DeliverableHandler) Resume(c *gin.Context) {
	h.statusChange(c, h.deliverables.Resume)
}

func (h *DeliverableHandler) Archive(c *gin.Context) {
	h.statusChange(c, h.deliverables.Archive)
}

func (h *DeliverableHandler) AcceptSuggestion(c *gin.Context) {
	deliverableID, ok := pathID(c, "id")
	if !ok {
		return
	}

	d, err := h.deliverables.AcceptSuggestion(c.Request.Context(), currentUserID(c), deliverableID)
	if err != nil {
		h.respondError(c, err, "failed to accept suggestion")
		return
	}
	c.JSON(http.StatusOK, dto.ToDeliverableResponse(d))
}

func (h *DeliverableHandler) DismissSuggestion(c *gin.Context) {
	deliverableID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.deliverables.DismissSuggestion(c.Request.Context(), currentUserID(c), deliverableID); err != nil {
		h.respondError(c, err, "failed to dismiss suggestion")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DeliverableHandler) statusChange(c *gin.Context, op func(ctx context.Context, userID, deliverableID int64) error) {
	deliverableID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := op(c.Request.Context(), currentUserID(c), deliverableID); err != nil {
		h.respondError(c, err, "failed to update deliverable")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DeliverableHandler) respondError(c *gin.Context, err error, fallback string) {
	ctx := c.Request.Context()

	var constraint *engine.ConstraintViolationError
	switch {
	case errors.Is(err, service.ErrDeliverableNotFound), errors.Is(err, service.ErrVersionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrNotSuggestion):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &constraint):
		c.JSON(http.StatusConflict, gin.H{"error": constraint.Error()})
	default:
		slog.ErrorContext(ctx, fallback, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func pathID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return 0, false
	}
	return id, true
}
