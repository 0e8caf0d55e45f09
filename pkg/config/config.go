package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	Milvus     MilvusConfig
	Embedding  EmbeddingConfig
	Generation GenerationConfig
	Cache      CacheConfig
	Classifier ClassifierConfig
	Chunker    ChunkerConfig
	Pipeline   PipelineConfig
	Retrieval  RetrievalConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host                 string
	Port                 int
	ReadTimeout          int
	WriteTimeout         int
	BodyLimit            int
	MaxRequestsPerMinute int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type MilvusConfig struct {
	Endpoint       string
	CollectionName string
}

type EmbeddingConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	QueryModel string
	Dimension  int
	TimeoutSec int
}

type GenerationConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

type CacheConfig struct {
	L1MaxSize          int
	EmbeddingTTLHours  int
	QueryEmbedTTLHours int
	SearchTTLHours     int
}

type ClassifierConfig struct {
	SmallThreshold  int
	MediumThreshold int
}

type ChunkerConfig struct {
	TargetSize int
	Overlap    int
}

type PipelineConfig struct {
	Workers      int
	SubBatchSize int
	MaxAttempts  int
	BaseDelayMS  int
}

type RetrievalConfig struct {
	DefaultLimit        int
	SimilarityThreshold float64
	ContextCharBudget   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/ragengine")

	viper.SetEnvPrefix("RAGENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c CacheConfig) EmbeddingTTL() time.Duration {
	return time.Duration(c.EmbeddingTTLHours) * time.Hour
}

func (c CacheConfig) QueryEmbedTTL() time.Duration {
	return time.Duration(c.QueryEmbedTTLHours) * time.Hour
}

func (c CacheConfig) SearchTTL() time.Duration {
	return time.Duration(c.SearchTTLHours) * time.Hour
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)
	viper.SetDefault("server.maxRequestsPerMinute", 120)

	viper.SetDefault("sqlite.path", "./data/ragengine.db")

	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "case_chunks")

	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimension", 768)
	viper.SetDefault("embedding.timeoutSec", 15)

	viper.SetDefault("generation.model", "gpt-4")
	viper.SetDefault("generation.temperature", 0.2)
	viper.SetDefault("generation.maxTokens", 2048)

	viper.SetDefault("cache.l1MaxSize", 33000)
	viper.SetDefault("cache.embeddingTTLHours", 168)
	viper.SetDefault("cache.queryEmbedTTLHours", 1)
	viper.SetDefault("cache.searchTTLHours", 6)

	viper.SetDefault("classifier.smallThreshold", 20000)
	viper.SetDefault("classifier.mediumThreshold", 60000)

	viper.SetDefault("chunker.targetSize", 1000)
	viper.SetDefault("chunker.overlap", 200)

	viper.SetDefault("pipeline.workers", 4)
	viper.SetDefault("pipeline.subBatchSize", 4)
	viper.SetDefault("pipeline.maxAttempts", 3)
	viper.SetDefault("pipeline.baseDelayMS", 1000)

	viper.SetDefault("retrieval.defaultLimit", 10)
	viper.SetDefault("retrieval.similarityThreshold", 0.7)
	viper.SetDefault("retrieval.contextCharBudget", 8000)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
