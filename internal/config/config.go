package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	GinMode  string

	CORSOrigins []string

	// Auth
	AccessSecret  string
	RefreshSecret string

	// Gemini
	GeminiAPIKey   string
	GeminiModel    string
	EmbeddingModel string
	GeminiTier     string

	// Redis (asynq broker + ingest dedup claims)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Upload / ingestion
	MaxFileSize    int64
	FileStorageDir string
	MaxChunkSize   int
	ChunkOverlap   int
	EmbedWorkers   int

	// Vector search
	VectorDimensions   int
	VectorIndexName    string
	AtlasVectorEnabled bool

	// Retrieval / studio
	RetrievalTopK      int
	StudioContextLimit int
}

func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/docchat"),
		DBName:   getEnv("DB_NAME", "docchat"),
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),

		AccessSecret:  getEnv("ACCESS_SECRET", ""),
		RefreshSecret: getEnv("REFRESH_SECRET", ""),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		EmbeddingModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:     getEnv("GEMINI_TIER", "free"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),
		MaxChunkSize:   getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 200),
		EmbedWorkers:   getEnvInt("EMBED_WORKERS", 4),

		VectorDimensions:   getEnvInt("VECTOR_DIM", 768),
		VectorIndexName:    getEnv("MONGODB_VECTOR_INDEX", "pdf_vectors_index"),
		AtlasVectorEnabled: getEnvBool("MONGODB_VECTOR_ENABLED", false),

		RetrievalTopK:      getEnvInt("RETRIEVAL_TOP_K", 4),
		StudioContextLimit: getEnvInt("STUDIO_CONTEXT_LIMIT", 20),
	}

	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("ACCESS_SECRET is required - set it in .env file")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
