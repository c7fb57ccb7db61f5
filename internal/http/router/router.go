package router

import (
	"github.com/gin-gonic/gin"

	"pulseworks.app/conductor/internal/http/handler"
	"pulseworks.app/conductor/internal/service"
)

type RouterConfig struct {
	IsProduction bool
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(handler.Identity())
	{
		deliverableHandler := handler.NewDeliverableHandler(services.Deliverables())
		DeliverableRouter(v1.Group("/deliverables"), deliverableHandler)
		VersionRouter(v1.Group("/versions"), deliverableHandler)
	}
}
