package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"docchat-platform/internal/ai"
	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/internal/queue"
	"docchat-platform/internal/telemetry"
	"docchat-platform/internal/vector"
	"docchat-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("docchat-worker")
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

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

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

	index := vector.NewMongoIndex(db, vector.MongoIndexOptions{
		Dimension:    cfg.VectorDimensions,
		AtlasEnabled: cfg.AtlasVectorEnabled,
		IndexName:    cfg.VectorIndexName,
	})

	ingestion := services.NewIngestionService(services.IngestionOptions{
		Extractor:    services.NewPDFExtractor(),
		Segmenter:    services.NewSegmenter(cfg.MaxChunkSize, cfg.ChunkOverlap),
		Embedder:     geminiClient,
		Index:        index,
		Documents:    services.NewDocumentStore(db),
		EmbedWorkers: cfg.EmbedWorkers,
	})

	studio := services.NewStudioService(
		index,
		services.NewStudioAgent(geminiClient),
		services.NewStudioStore(db),
		cfg.StudioContextLimit,
	)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 20,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(ingestion, studio, rdb)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.HandleIngest)
	mux.HandleFunc(queue.TaskGenerateStudio, processor.HandleStudio)

	logger.Info("worker starting", "redis", redisOpt.Addr, "concurrency", 20)
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
