package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"prismflow/config"
	"prismflow/task"
	"prismflow/upload"
)

func SetupRouter(tm *task.Manager, storage *upload.Storage, cfg *config.Config, logger *logrus.Entry) *gin.Engine {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger.WithField("svc", "api.Router")), CORSMiddleware(cfg.CORSOrigins))
	h := NewHandler(tm, storage, cfg, logger)

	r.GET("/", h.handleRoot)
	r.GET("/health", h.handleHealth)

	g := r.Group("/api")
	{
		g.POST("/upload-video", h.handleUploadVideo)
		g.POST("/start-processing", h.handleStartProcessing)
		g.GET("/progress/:taskId", h.handleGetProgress)
		g.GET("/download/:taskId", h.handleDownload)

		// Debugging surface.
		g.GET("/tasks", h.handleListTasks)
	}
	return r
}
