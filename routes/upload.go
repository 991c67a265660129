package routes

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/internal/queue"
	"docchat-platform/middleware"
	"docchat-platform/models"
	"docchat-platform/services"
	"docchat-platform/utils"
)

// UploadDeps carries the services the upload routes need.
type UploadDeps struct {
	Config    *config.Config
	Documents *services.DocumentStore
	Chats     *services.ChatStore
	Extractor *services.PDFExtractor
	Queue     *asynq.Client
}

func SetupUploadRoutes(router *gin.Engine, deps UploadDeps, authMiddleware *middleware.AuthMiddleware) {
	uploadDir := filepath.Join(deps.Config.FileStorageDir, "pdfs")
	os.MkdirAll(uploadDir, 0o755)

	group := router.Group("/chats/:id/documents")
	group.Use(authMiddleware.RequireAuth())

	group.POST("", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		chatID := c.Param("id")

		if _, err := deps.Chats.Get(c.Request.Context(), userID, chatID); err != nil {
			if errors.Is(err, services.ErrChatNotFound) {
				utils.RespondWithNotFound(c, "Chat not found")
				return
			}
			logger.Error("load chat failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to load chat", nil)
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "A file field is required", nil)
			return
		}
		if fileHeader.Size > deps.Config.MaxFileSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("File exceeds the %d byte limit", deps.Config.MaxFileSize), nil)
			return
		}
		if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
			utils.RespondWithBadRequest(c, "Only PDF files are supported", nil)
			return
		}

		documentID := uuid.NewString()
		storedPath := filepath.Join(uploadDir, documentID+".pdf")
		if err := saveUpload(fileHeader, storedPath); err != nil {
			logger.Error("store upload failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to store file", nil)
			return
		}

		pages, err := deps.Extractor.PageCount(storedPath)
		if err != nil {
			os.Remove(storedPath)
			utils.RespondWithBadRequest(c, "File is not a readable PDF", nil)
			return
		}

		doc := &models.Document{
			ID:          documentID,
			Name:        fileHeader.Filename,
			StoragePath: storedPath,
			Size:        fileHeader.Size,
			Pages:       pages,
			UserID:      userID,
			ChatID:      chatID,
			Status:      models.DocStatusUploaded,
		}
		if err := deps.Documents.Create(c.Request.Context(), doc); err != nil {
			os.Remove(storedPath)
			logger.Error("create document failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to record document", nil)
			return
		}
		if err := deps.Chats.AddDocument(c.Request.Context(), userID, chatID, documentID); err != nil {
			logger.Error("link document to chat failed", "document_id", documentID, "error", err)
		}

		task, err := queue.NewIngestTask(queue.IngestPayload{
			UserID:       userID,
			ChatID:       chatID,
			DocumentID:   documentID,
			SourceURL:    storedPath,
			OriginalName: fileHeader.Filename,
		})
		if err == nil {
			_, err = deps.Queue.EnqueueContext(c.Request.Context(), task)
		}
		if err != nil {
			logger.Error("enqueue ingest failed", "document_id", documentID, "error", err)
			_ = deps.Documents.SetStatus(c.Request.Context(), documentID, models.DocStatusFailed, "failed to queue processing")
			utils.RespondWithInternalError(c, "Failed to queue processing", nil)
			return
		}

		c.JSON(http.StatusAccepted, models.UploadResponse{
			ID:      documentID,
			Name:    fileHeader.Filename,
			Status:  models.DocStatusUploaded,
			Pages:   pages,
			Message: "Processing started",
		})
	})

	group.GET("", func(c *gin.Context) {
		docs, err := deps.Documents.ListByChat(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
		if err != nil {
			logger.Error("list documents failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs})
	})

	group.GET("/:docId", func(c *gin.Context) {
		doc, err := deps.Documents.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("docId"))
		if errors.Is(err, services.ErrDocumentNotFound) {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		if err != nil {
			logger.Error("get document failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}
		c.JSON(http.StatusOK, doc)
	})
}

func saveUpload(fileHeader *multipart.FileHeader, dest string) error {
	src, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}
