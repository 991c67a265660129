package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"docchat-platform/internal/ai"
	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/internal/telemetry"
	"docchat-platform/internal/vector"
	"docchat-platform/middleware"
	"docchat-platform/routes"
	"docchat-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("docchat-api")
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	geminiClient, err := ai.NewGeminiClient(context.Background(), ai.Options{
		APIKey:         cfg.GeminiAPIKey,
		ChatModel:      cfg.GeminiModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Tier:           cfg.GeminiTier,
	})
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	index := vector.NewMongoIndex(db, vector.MongoIndexOptions{
		Dimension:    cfg.VectorDimensions,
		AtlasEnabled: cfg.AtlasVectorEnabled,
		IndexName:    cfg.VectorIndexName,
	})

	chatStore := services.NewChatStore(db, index)
	documentStore := services.NewDocumentStore(db)
	studioStore := services.NewStudioStore(db)

	retriever := services.NewRetriever(geminiClient, index, cfg.RetrievalTopK)
	chatAgent := services.NewChatAgent(geminiClient)
	extractor := services.NewPDFExtractor()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	router.Use(otelgin.Middleware("docchat-api"))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	routes.SetupChatRoutes(router, routes.ChatDeps{
		Chats:     chatStore,
		Retriever: retriever,
		Agent:     chatAgent,
	}, authMiddleware)
	routes.SetupUploadRoutes(router, routes.UploadDeps{
		Config:    cfg,
		Documents: documentStore,
		Chats:     chatStore,
		Extractor: extractor,
		Queue:     queueClient,
	}, authMiddleware)
	routes.SetupStudioRoutes(router, routes.StudioDeps{
		Chats:     chatStore,
		Artifacts: studioStore,
		Queue:     queueClient,
	}, authMiddleware)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
}
