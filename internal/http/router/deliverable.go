package router

import (
	"github.com/gin-gonic/gin"

	"pulseworks.app/conductor/internal/http/handler"
)

func DeliverableRouter(rg *gin.RouterGroup, h *handler.DeliverableHandler) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/versions", h.ListVersions)
	rg.POST("/:id/run", h.RunNow)
	rg.POST("/:id/pause", h.Pause)
	rg.POST("/:id/resume", h.Resume)
	rg.POST("/:id/archive", h.Archive)
	rg.POST("/:id/accept", h.AcceptSuggestion)
	rg.POST("/:id/dismiss", h.DismissSuggestion)
}

func VersionRouter(rg *gin.RouterGroup, h *handler.DeliverableHandler) {
	rg.POST("/:versionId/approve", h.Approve)
	rg.POST("/:versionId/reject", h.Reject)
}
