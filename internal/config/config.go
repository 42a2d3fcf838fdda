package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	Drive       DriveConfig      `json:"drive"`
	Import      ImportConfig     `json:"import"`
	AI          AIConfig         `json:"ai"`
	FileStore   FileStoreConfig  `json:"file_store"`
	CORSAllow   []string         `json:"cors_allow"`
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

type DriveConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	APIKey      string `json:"api_key"`
	PageSize    int    `json:"page_size"`
	TimeoutSec  int    `json:"timeout_sec"`
	CacheSize   int    `json:"cache_size"`
	CacheTTLSec int    `json:"cache_ttl_sec"`
}

type ImportConfig struct {
	// MaxItemsPerListing bounds one task-list builder pass; past it the
	// builder returns a resume cursor instead of continuing.
	MaxItemsPerListing int `json:"max_items_per_listing"`
	// MaxTasksPerRun bounds one orchestrator invocation.
	MaxTasksPerRun   int  `json:"max_tasks_per_run"`
	QueueSize        int  `json:"queue_size"`
	MaxAttempts      int  `json:"max_attempts"`
	JobRetentionDays int  `json:"job_retention_days"`
	MirrorContent    bool `json:"mirror_content"`
}

type AIConfig struct {
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	TimeoutSec int         `json:"timeout_sec"`
	Data       interface{} `json:"data"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
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
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Drive.APIBaseURL == "" {
		cfg.Drive.APIBaseURL = "https://www.googleapis.com/drive/v3"
	}
	if cfg.Drive.APIKey == "" {
		return nil, fmt.Errorf("drive.api_key is required")
	}
	if cfg.Drive.PageSize == 0 {
		cfg.Drive.PageSize = 100
	}
	if cfg.Drive.TimeoutSec == 0 {
		cfg.Drive.TimeoutSec = 15
	}
	if cfg.Drive.CacheSize == 0 {
		cfg.Drive.CacheSize = 256
	}
	if cfg.Drive.CacheTTLSec == 0 {
		cfg.Drive.CacheTTLSec = 60
	}
	if cfg.Import.MaxItemsPerListing == 0 {
		cfg.Import.MaxItemsPerListing = 200
	}
	if cfg.Import.MaxTasksPerRun == 0 {
		cfg.Import.MaxTasksPerRun = 50
	}
	if cfg.Import.QueueSize == 0 {
		cfg.Import.QueueSize = 64
	}
	if cfg.Import.MaxAttempts == 0 {
		cfg.Import.MaxAttempts = 3
	}
	if cfg.Import.JobRetentionDays == 0 {
		cfg.Import.JobRetentionDays = 30
	}
	if cfg.Import.MirrorContent {
		if cfg.FileStore.Type == "" {
			return nil, fmt.Errorf("file_store.type is required when import.mirror_content is set")
		}
	}
	return &cfg, nil
}
