package http

import "github.com/gin-gonic/gin"

func RegisterEventRoutes(r *gin.Engine, handler *EventHandler) {
	events := r.Group("/events")
	{
		events.POST("/", handler.IngestEvent)
		events.GET("/:id", handler.GetEvent)
	}

	r.GET("/queue/stats", handler.QueueStats)
}
