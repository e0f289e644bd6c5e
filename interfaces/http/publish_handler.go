package http

import (
	"errors"
	"net/http"
	"strconv"

	"crosspost/domain/dto"
	"crosspost/infrastructure/logger"
	"crosspost/usecase"

	"github.com/gin-gonic/gin"
)

type IPublishHandler interface {
	PublishVideo(ctx *gin.Context)
	GetTargets(ctx *gin.Context)
	RetractTarget(ctx *gin.Context)
	GetPlatforms(ctx *gin.Context)
	ProcessJobs(ctx *gin.Context)
}

type PublishHandler struct {
	publishUsecase usecase.IPublish
}

func NewPublishHandler(uc usecase.IPublish) IPublishHandler {
	return &PublishHandler{publishUsecase: uc}
}

func (h *PublishHandler) PublishVideo(ctx *gin.Context) {
	videoID := ctx.Param("videoId")
	userID := ctx.GetString("user_id")
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	var req dto.PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	// The path parameter is authoritative for the video identity.
	req.Video.ID = videoID

	results, err := h.publishUsecase.Publish(ctx.Request.Context(), userID, &req)
	if err != nil {
		logger.GetLogger().WithField("video_id", videoID).WithField("user_id", userID).
			WithField("error", err.Error()).Warn("Publish request failed")
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"video_id": videoID, "targets": results})
}

func (h *PublishHandler) GetTargets(ctx *gin.Context) {
	videoID := ctx.Param("videoId")
	userID := ctx.GetString("user_id")
	list, err := h.publishUsecase.GetStatus(ctx.Request.Context(), userID, videoID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []dto.TargetStatusResponse{}
	}
	ctx.JSON(http.StatusOK, gin.H{"video_id": videoID, "targets": list})
}

func (h *PublishHandler) RetractTarget(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	targetID, err := strconv.ParseInt(ctx.Param("targetId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}
	if err := h.publishUsecase.Retract(ctx.Request.Context(), userID, targetID); err != nil {
		switch {
		case errors.Is(err, usecase.ErrTargetNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, usecase.ErrNotOwner):
			ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, usecase.ErrNothingToRetract):
			ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"target_id": targetID, "retraction": "enqueued"})
}

func (h *PublishHandler) GetPlatforms(ctx *gin.Context) {
	platforms := h.publishUsecase.Platforms()
	caps := make([]gin.H, 0, len(platforms))
	for _, p := range platforms {
		caps = append(caps, gin.H{"platform": p, "implemented": true})
	}
	ctx.JSON(http.StatusOK, gin.H{"platforms": caps})
}

// ProcessJobs re-enqueues pending targets of a video (admin/dev utility).
func (h *PublishHandler) ProcessJobs(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	var req dto.PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	enqueued, err := h.publishUsecase.ProcessJobs(ctx.Request.Context(), userID, &req)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"processed": false, "error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"processed": true, "enqueued": enqueued})
}
