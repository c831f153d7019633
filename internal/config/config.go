package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	RateLimitMS int              `json:"rate_limit_ms"`
	CORSOrigins []string         `json:"cors_origins"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	FileStore   FileStoreConfig  `json:"file_store"`
	AI          AIConfig         `json:"ai"`
	RAG         RAGConfig        `json:"rag"`
	Jobs        JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Provider        string      `json:"provider"`
	Data            interface{} `json:"data"`
	EmbedModel      string      `json:"embed_model"`
	GenerateModels  []string    `json:"generate_models"`
	GenerateTimeout int         `json:"generate_timeout_seconds"`
}

type RAGConfig struct {
	TopK            int     `json:"top_k"`
	PageSize        int     `json:"page_size"`
	HistoryTurns    int     `json:"history_turns"`
	ScoreThreshold  float64 `json:"score_threshold"`
	VectorCacheSize int     `json:"vector_cache_size"`
	AnswerCacheSize int     `json:"answer_cache_size"`
	AsyncChunkLimit int     `json:"async_chunk_limit"`
	AsyncTurnLimit  int     `json:"async_turn_limit"`
}

type JobsConfig struct {
	MaxAttempts        int `json:"max_attempts"`
	BackoffBaseSeconds int `json:"backoff_base_seconds"`
	RetentionDays      int `json:"retention_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if len(cfg.AI.GenerateModels) == 0 {
		return nil, fmt.Errorf("ai.generate_models is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.RateLimitMS <= 0 {
		cfg.RateLimitMS = 1000
	}
	if cfg.AI.GenerateTimeout <= 0 {
		cfg.AI.GenerateTimeout = 60
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.PageSize <= 0 {
		cfg.RAG.PageSize = 100
	}
	if cfg.RAG.HistoryTurns <= 0 {
		cfg.RAG.HistoryTurns = 6
	}
	if cfg.RAG.VectorCacheSize <= 0 {
		cfg.RAG.VectorCacheSize = 400
	}
	if cfg.RAG.AnswerCacheSize <= 0 {
		cfg.RAG.AnswerCacheSize = 1000
	}
	if cfg.RAG.AsyncChunkLimit <= 0 {
		cfg.RAG.AsyncChunkLimit = 2000
	}
	if cfg.RAG.AsyncTurnLimit <= 0 {
		cfg.RAG.AsyncTurnLimit = 40
	}
	if cfg.Jobs.MaxAttempts <= 0 {
		cfg.Jobs.MaxAttempts = 3
	}
	if cfg.Jobs.BackoffBaseSeconds <= 0 {
		cfg.Jobs.BackoffBaseSeconds = 5
	}
	if cfg.Jobs.RetentionDays <= 0 {
		cfg.Jobs.RetentionDays = 7
	}
	return &cfg, nil
}
