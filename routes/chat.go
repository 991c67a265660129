package routes

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docchat-platform/internal/logger"
	"docchat-platform/internal/vector"
	"docchat-platform/middleware"
	"docchat-platform/models"
	"docchat-platform/services"
	"docchat-platform/utils"
)

// ChatDeps carries the services the chat routes need.
type ChatDeps struct {
	Chats     *services.ChatStore
	Retriever *services.Retriever
	Agent     *services.ChatAgent
}

func SetupChatRoutes(router *gin.Engine, deps ChatDeps, authMiddleware *middleware.AuthMiddleware) {
	chats := router.Group("/chats")
	chats.Use(authMiddleware.RequireAuth())

	chats.POST("", func(c *gin.Context) {
		var req struct {
			Title string `json:"title"`
		}
		if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			title = "New chat"
		}

		chat := &models.Chat{
			ID:     uuid.NewString(),
			Title:  title,
			UserID: middleware.GetUserID(c),
		}
		if err := deps.Chats.Create(c.Request.Context(), chat); err != nil {
			logger.Error("create chat failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to create chat", nil)
			return
		}
		c.JSON(http.StatusCreated, chat)
	})

	chats.GET("", func(c *gin.Context) {
		list, err := deps.Chats.List(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			logger.Error("list chats failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to list chats", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chats": list})
	})

	chats.GET("/:id", func(c *gin.Context) {
		chat, err := deps.Chats.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
		if errors.Is(err, services.ErrChatNotFound) {
			utils.RespondWithNotFound(c, "Chat not found")
			return
		}
		if err != nil {
			logger.Error("get chat failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to load chat", nil)
			return
		}
		c.JSON(http.StatusOK, chat)
	})

	chats.PATCH("/:id", func(c *gin.Context) {
		var req struct {
			Title string `json:"title" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Title is required", nil)
			return
		}
		err := deps.Chats.Rename(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), strings.TrimSpace(req.Title))
		if errors.Is(err, services.ErrChatNotFound) {
			utils.RespondWithNotFound(c, "Chat not found")
			return
		}
		if err != nil {
			logger.Error("rename chat failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to rename chat", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	chats.DELETE("/:id", func(c *gin.Context) {
		err := deps.Chats.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
		if errors.Is(err, services.ErrChatNotFound) {
			utils.RespondWithNotFound(c, "Chat not found")
			return
		}
		if err != nil {
			logger.Error("delete chat failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to delete chat", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	chats.POST("/:id/ask", func(c *gin.Context) {
		var req struct {
			Question string `json:"question" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Question is required", nil)
			return
		}

		userID := middleware.GetUserID(c)
		chatID := c.Param("id")

		// Ownership check before any model call.
		if _, err := deps.Chats.Get(c.Request.Context(), userID, chatID); err != nil {
			if errors.Is(err, services.ErrChatNotFound) {
				utils.RespondWithNotFound(c, "Chat not found")
				return
			}
			logger.Error("load chat failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to load chat", nil)
			return
		}

		scope := vector.Scope{UserID: userID, ChatID: chatID}
		retrieved, err := deps.Retriever.Retrieve(c.Request.Context(), req.Question, scope)
		if err != nil {
			logger.Error("retrieval failed", "chat_id", chatID, "error", err)
			utils.RespondWithInternalError(c, "Failed to retrieve context", nil)
			return
		}

		answer, err := deps.Agent.Run(c.Request.Context(), req.Question, retrieved.Context)
		if errors.Is(err, services.ErrQuestionTooShort) {
			utils.RespondWithBadRequest(c, "Question is too short", nil)
			return
		}
		if errors.Is(err, services.ErrMalformedAgentOutput) {
			utils.RespondWithError(c, http.StatusBadGateway, "malformed_answer", "Model returned an unusable answer", nil)
			return
		}
		if err != nil {
			logger.Error("chat agent failed", "chat_id", chatID, "error", err)
			utils.RespondWithInternalError(c, "Failed to generate answer", nil)
			return
		}

		now := time.Now()
		appendErr := deps.Chats.AppendMessages(c.Request.Context(), userID, chatID,
			models.ChatMessage{Role: "user", Content: req.Question, Timestamp: now},
			models.ChatMessage{Role: "assistant", Content: answer, Citations: retrieved.Citations, Timestamp: now},
		)
		if appendErr != nil {
			// The answer is already computed; return it and log the miss.
			logger.Error("append messages failed", "chat_id", chatID, "error", appendErr)
		}

		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"answer":    answer,
			"citations": retrieved.Citations,
		})
	})
}
