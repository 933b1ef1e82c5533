package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"prismflow/config"
	"prismflow/task"
	"prismflow/upload"
)

// Version is reported by the root endpoint.
const Version = "2.0.0"

// multipartOverhead is the body allowance on top of the upload limit for
// boundaries and part headers.
const multipartOverhead = 1 << 20

type Handler struct {
	taskManager *task.Manager
	storage     *upload.Storage
	cfg         *config.Config
	logger      *logrus.Entry
}

func NewHandler(tm *task.Manager, storage *upload.Storage, cfg *config.Config, logger *logrus.Entry) *Handler {
	return &Handler{
		taskManager: tm,
		storage:     storage,
		cfg:         cfg,
		logger:      logger.WithField("svc", "api.Handler"),
	}
}

type StartRequest struct {
	ProcessingMode string `json:"processingMode" binding:"required"`
	FileID         string `json:"fileId"`
	task.Options
}

// handleUploadVideo stores a multipart video upload.
func (h *Handler) handleUploadVideo(c *gin.Context) {
	if h.cfg.MaxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadSize+multipartOverhead)
	}

	fh, err := c.FormFile("video")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload exceeds size limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	f, err := h.storage.Save(fh)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"fileId":       f.ID,
		"originalName": f.OriginalName,
		"size":         f.Size,
		"message":      "File uploaded successfully",
	})
}

// handleStartProcessing creates a simulated processing task.
func (h *Handler) handleStartProcessing(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logger := h.logger.WithFields(logrus.Fields{"mode": req.ProcessingMode, "file_id": req.FileID})
	if req.ProcessingMode == task.ModeCreativeAI {
		logger = logger.WithFields(logrus.Fields{
			"prompt":         req.Prompt,
			"lora_model":     req.LoraModel,
			"lora_weight":    req.LoraWeight,
			"style_strength": req.StyleStrength,
			"random_seed":    req.RandomSeed,
		})
	}
	logger.Info("Processing requested")

	id, err := h.taskManager.StartProcessing(req.ProcessingMode, req.FileID, req.Options)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"taskId": id, "status": "started"})
}

// handleGetProgress returns the polling snapshot of a task.
func (h *Handler) handleGetProgress(c *gin.Context) {
	p, err := h.taskManager.GetProgress(c.Param("taskId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	h.buildDownloadURL(&p)
	c.JSON(http.StatusOK, p)
}

// buildDownloadURL prefixes the configured base URL to a completed task's download path.
func (h *Handler) buildDownloadURL(p *task.Progress) {
	if p.DownloadURL == nil || h.cfg.BaseURL == "" {
		return
	}
	url := strings.TrimSuffix(h.cfg.BaseURL, "/") + *p.DownloadURL
	p.DownloadURL = &url
}

// handleDownload streams the original file of a completed task.
func (h *Handler) handleDownload(c *gin.Context) {
	f, err := h.taskManager.ResultFile(c.Param("taskId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.WithField("file", f.OriginalName).Info("Download started")
	c.Header("Content-Type", f.ContentType)
	c.FileAttachment(f.Path, f.OriginalName)
}

// handleListTasks lists all tasks.
func (h *Handler) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.taskManager.List())
}

func (h *Handler) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "PrismFlow video processing server",
		"status":  "running",
		"endpoints": gin.H{
			"POST /api/upload-video":     "Upload a video",
			"POST /api/start-processing": "Start a processing task",
			"GET /api/progress/:taskId":  "Get task progress",
			"GET /api/download/:taskId":  "Download the processing result",
			"GET /api/tasks":             "List all tasks",
		},
		"version": Version,
	})
}

func (h *Handler) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if free, err := h.storage.FreeDisk(); err == nil {
		resp["diskFree"] = free
	}
	c.JSON(http.StatusOK, resp)
}

// respondError maps domain errors onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, task.ErrNotFound), errors.Is(err, task.ErrFileMissing), errors.Is(err, upload.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, upload.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, upload.ErrInvalidUpload):
		status = http.StatusBadRequest
	case errors.Is(err, upload.ErrInsufficientStorage):
		status = http.StatusInsufficientStorage
	}

	if status == http.StatusInternalServerError {
		h.logger.Errorf("Request failed: %v", err)
	} else {
		h.logger.Debugf("Request rejected: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
