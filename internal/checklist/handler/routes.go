package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/metrics"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/middleware"
)

// RegisterRoutes mounts the checklist API under /api/v1. /health and
// /metrics stay unauthenticated.
func RegisterRoutes(r *gin.Engine, h *Handlers, jwtSecret string) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api/v1", middleware.JWTAuth(jwtSecret))

	orders := api.Group("/orders/:orderId")
	orders.GET("/checklist", h.Checklist.GetByOrder)
	orders.GET("/checklist/gate", h.Order.Gate)
	orders.POST("/finish", h.Order.Finish)

	checklists := api.Group("/checklists/:id")
	checklists.GET("", h.Checklist.Get)
	checklists.PUT("/items/:itemId/response", h.Checklist.SaveResponse)
	checklists.POST("/finalize", h.Checklist.Finalize)
	checklists.GET("/progress", h.Checklist.Progress)
	checklists.GET("/activities", h.Checklist.Activities)
	checklists.GET("/export", h.Checklist.Export)

	api.POST("/responses/:id/photos", h.Checklist.UploadPhoto)
	api.GET("/events", h.SSE.Stream)
}
