package server

import (
	"net/http"
	"time"

	httpHandler "crosspost/interfaces/http"
	"crosspost/interfaces/middleware"

	"crosspost/infrastructure/realtime"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func InitiateRouter(
	publishHandler httpHandler.IPublishHandler,
	targetHub *realtime.Hub,
	secretKey string,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4200", "http://localhost:4201", "https://localhost:4200", "https://localhost:4201"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("api")
	api.Use(middleware.Auth(secretKey))

	api.POST("/videos/:videoId/publish", publishHandler.PublishVideo)
	api.GET("/videos/:videoId/targets", publishHandler.GetTargets)
	api.POST("/targets/:targetId/retract", publishHandler.RetractTarget)
	api.GET("/platforms", publishHandler.GetPlatforms)
	api.POST("/publish/process-jobs", publishHandler.ProcessJobs)

	if targetHub != nil {
		api.GET("/targets/stream", targetHub.Serve)
	}

	return router
}
