package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"docchat-platform/internal/logger"
	"docchat-platform/internal/queue"
	"docchat-platform/middleware"
	"docchat-platform/services"
	"docchat-platform/utils"
)

// StudioDeps carries the services the studio routes need.
type StudioDeps struct {
	Chats     *services.ChatStore
	Artifacts *services.StudioStore
	Queue     *asynq.Client
}

func SetupStudioRoutes(router *gin.Engine, deps StudioDeps, authMiddleware *middleware.AuthMiddleware) {
	group := router.Group("/chats/:id/studio")
	group.Use(authMiddleware.RequireAuth())

	group.POST("/:toolId", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		chatID := c.Param("id")
		toolID := c.Param("toolId")

		if !services.KnownTool(toolID) {
			utils.RespondWithBadRequest(c, "Unknown studio tool", gin.H{"tool": toolID})
			return
		}
		if _, err := deps.Chats.Get(c.Request.Context(), userID, chatID); err != nil {
			if errors.Is(err, services.ErrChatNotFound) {
				utils.RespondWithNotFound(c, "Chat not found")
				return
			}
			logger.Error("load chat failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to load chat", nil)
			return
		}

		task, err := queue.NewStudioTask(queue.StudioPayload{
			UserID: userID,
			ChatID: chatID,
			ToolID: toolID,
		})
		if err == nil {
			_, err = deps.Queue.EnqueueContext(c.Request.Context(), task)
		}
		if err != nil {
			logger.Error("enqueue studio failed", "chat_id", chatID, "tool", toolID, "error", err)
			utils.RespondWithInternalError(c, "Failed to queue generation", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"tool":    toolID,
			"message": "Generation started",
		})
	})

	group.GET("", func(c *gin.Context) {
		artifacts, err := deps.Artifacts.List(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
		if err != nil {
			logger.Error("list studio artifacts failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to list artifacts", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"artifacts": artifacts})
	})

	group.DELETE("/:toolId", func(c *gin.Context) {
		err := deps.Artifacts.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), c.Param("toolId"))
		if errors.Is(err, services.ErrArtifactNotFound) {
			utils.RespondWithNotFound(c, "Artifact not found")
			return
		}
		if err != nil {
			logger.Error("delete studio artifact failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to delete artifact", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}
