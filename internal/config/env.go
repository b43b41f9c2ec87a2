package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string

	ObjectStore string // "s3" or "minio"

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool

	Embedder    string // "gemini" or "openai"
	AIAPIKey    string
	EmbedModel  string
	EmbedDim    int
	OpenAIHost  string
	OpenAIModel string

	SearchIndex     string // "pgvector" or "memory"
	SearchIndexName string

	OCRPollInterval time.Duration
	OCRTimeout      time.Duration

	EmbedBatchSize    int
	IndexBatchSize    int
	ChunkTargetTokens int
	ChunkOverlap      int

	LogLevel  string
	LogFormat string
}

// LoadConfig loads environment variables (optionally from .env) and returns config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),

		ObjectStore: getEnv("OBJECT_STORE", "s3"),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "ragline-docs"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		Embedder:    getEnv("EMBEDDER", "gemini"),
		AIAPIKey:    getEnv("GEMINI_API_KEY", ""),
		EmbedModel:  getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:    getEnvInt("EMBED_DIM", 1536),
		OpenAIHost:  getEnv("OPENAI_HOST", "http://localhost:11434/v1"),
		OpenAIModel: getEnv("OPENAI_EMBED_MODEL", "nomic-embed-text"),

		SearchIndex:     getEnv("SEARCH_INDEX", "pgvector"),
		SearchIndexName: getEnv("SEARCH_INDEX_NAME", "documents-index"),

		OCRPollInterval: time.Duration(getEnvInt("OCR_POLL_SECONDS", 3)) * time.Second,
		OCRTimeout:      time.Duration(getEnvInt("OCR_TIMEOUT_SECONDS", 30)) * time.Second,

		EmbedBatchSize:    getEnvInt("EMBED_BATCH_SIZE", 16),
		IndexBatchSize:    getEnvInt("INDEX_BATCH_SIZE", 1000),
		ChunkTargetTokens: getEnvInt("CHUNK_TARGET_TOKENS", 500),
		ChunkOverlap:      getEnvInt("CHUNK_OVERLAP_TOKENS", 50),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}
