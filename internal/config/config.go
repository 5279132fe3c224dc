package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the execution server.
type Config struct {
	Server    ServerConfig
	Worker    WorkerConfig
	Compiler  CompilerConfig
	Sandbox   SandboxConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Auth      AuthConfig
	Workspace WorkspaceConfig
	LogLevel  string `mapstructure:"LOG_LEVEL"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"API_PORT"`
	ReadTimeout    time.Duration `mapstructure:"API_READ_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"API_WRITE_TIMEOUT"`
	RateLimit      int           `mapstructure:"API_RATE_LIMIT"`
	GinMode        string        `mapstructure:"GIN_MODE"`
	AllowedOrigins []string      `mapstructure:"CORS_ALLOWED_ORIGINS"`
	MaxSourceBytes int           `mapstructure:"MAX_SOURCE_BYTES"`
}

type WorkerConfig struct {
	PoolSize int `mapstructure:"WORKER_POOL_SIZE"`
}

type WorkspaceConfig struct {
	Root string `mapstructure:"WORKSPACE_ROOT"`
}

type CompilerConfig struct {
	Path           string        `mapstructure:"COMPILER_PATH"`
	Flags          []string      `mapstructure:"COMPILER_FLAGS"`
	CompileTimeout time.Duration `mapstructure:"COMPILE_TIMEOUT"`
	RunTimeout     time.Duration `mapstructure:"RUN_TIMEOUT"`
	MaxOutputBytes int           `mapstructure:"MAX_OUTPUT_BYTES"`
}

type SandboxConfig struct {
	Backend      string `mapstructure:"SANDBOX_BACKEND"`
	UID          int    `mapstructure:"SANDBOX_UID"`
	GID          int    `mapstructure:"SANDBOX_GID"`
	CPUSeconds   int    `mapstructure:"SANDBOX_CPU_SECONDS"`
	MemoryMB     int    `mapstructure:"SANDBOX_MEMORY_MB"`
	MaxProcs     int    `mapstructure:"SANDBOX_MAX_PROCS"`
	MaxFiles     int    `mapstructure:"SANDBOX_MAX_FILES"`
	MaxFileMB    int    `mapstructure:"SANDBOX_MAX_FILE_MB"`
	NsjailPath   string `mapstructure:"NSJAIL_PATH"`
	NsjailConfig string `mapstructure:"NSJAIL_CONFIG"`
	DockerImage  string `mapstructure:"DOCKER_IMAGE"`
}

// DatabaseConfig selects the example catalog store. A non-empty URL selects
// PostgreSQL, otherwise the embedded SQLite file is used.
type DatabaseConfig struct {
	URL        string `mapstructure:"DATABASE_URL"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`
}

// RedisConfig is optional; without it rate limiting is kept in memory.
type RedisConfig struct {
	URL string `mapstructure:"REDIS_URL"`
}

// RabbitMQConfig is optional; without it execution events are dropped.
type RabbitMQConfig struct {
	URL string `mapstructure:"RABBITMQ_URL"`
}

// AuthConfig enables bearer-token checks on run endpoints when Secret is set.
type AuthConfig struct {
	Secret string `mapstructure:"AUTH_JWT_SECRET"`
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("API_PORT", 8080)
	v.SetDefault("API_READ_TIMEOUT", "10s")
	v.SetDefault("API_WRITE_TIMEOUT", "30s")
	v.SetDefault("API_RATE_LIMIT", 60)
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("MAX_SOURCE_BYTES", 64*1024)
	v.SetDefault("WORKER_POOL_SIZE", runtime.NumCPU())
	v.SetDefault("WORKSPACE_ROOT", "")
	v.SetDefault("COMPILER_PATH", "gcc")
	v.SetDefault("COMPILER_FLAGS", "-std=gnu11 -O0")
	v.SetDefault("COMPILE_TIMEOUT", "10s")
	v.SetDefault("RUN_TIMEOUT", "5s")
	v.SetDefault("MAX_OUTPUT_BYTES", 64*1024)
	v.SetDefault("SANDBOX_BACKEND", "nsjail")
	v.SetDefault("SANDBOX_UID", -1)
	v.SetDefault("SANDBOX_GID", -1)
	v.SetDefault("SANDBOX_CPU_SECONDS", 5)
	v.SetDefault("SANDBOX_MEMORY_MB", 256)
	v.SetDefault("SANDBOX_MAX_PROCS", 64)
	v.SetDefault("SANDBOX_MAX_FILES", 64)
	v.SetDefault("SANDBOX_MAX_FILE_MB", 10)
	v.SetDefault("NSJAIL_PATH", "nsjail")
	v.SetDefault("NSJAIL_CONFIG", "")
	v.SetDefault("DOCKER_IMAGE", "debian:bookworm-slim")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "codebasse.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("AUTH_JWT_SECRET", "")
	v.SetDefault("LOG_LEVEL", "info")

	// Attempt to read .env file (non-fatal if missing)
	_ = v.ReadInConfig()

	cfg := &Config{}
	cfg.Server.Port = v.GetInt("API_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("API_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("API_WRITE_TIMEOUT")
	cfg.Server.RateLimit = v.GetInt("API_RATE_LIMIT")
	cfg.Server.GinMode = v.GetString("GIN_MODE")
	cfg.Server.AllowedOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"), ",")
	cfg.Server.MaxSourceBytes = v.GetInt("MAX_SOURCE_BYTES")
	cfg.Worker.PoolSize = v.GetInt("WORKER_POOL_SIZE")
	cfg.Workspace.Root = v.GetString("WORKSPACE_ROOT")
	cfg.Compiler.Path = v.GetString("COMPILER_PATH")
	cfg.Compiler.Flags = strings.Fields(v.GetString("COMPILER_FLAGS"))
	cfg.Compiler.CompileTimeout = v.GetDuration("COMPILE_TIMEOUT")
	cfg.Compiler.RunTimeout = v.GetDuration("RUN_TIMEOUT")
	cfg.Compiler.MaxOutputBytes = v.GetInt("MAX_OUTPUT_BYTES")
	cfg.Sandbox.Backend = strings.ToLower(v.GetString("SANDBOX_BACKEND"))
	cfg.Sandbox.UID = v.GetInt("SANDBOX_UID")
	cfg.Sandbox.GID = v.GetInt("SANDBOX_GID")
	cfg.Sandbox.CPUSeconds = v.GetInt("SANDBOX_CPU_SECONDS")
	cfg.Sandbox.MemoryMB = v.GetInt("SANDBOX_MEMORY_MB")
	cfg.Sandbox.MaxProcs = v.GetInt("SANDBOX_MAX_PROCS")
	cfg.Sandbox.MaxFiles = v.GetInt("SANDBOX_MAX_FILES")
	cfg.Sandbox.MaxFileMB = v.GetInt("SANDBOX_MAX_FILE_MB")
	cfg.Sandbox.NsjailPath = v.GetString("NSJAIL_PATH")
	cfg.Sandbox.NsjailConfig = v.GetString("NSJAIL_CONFIG")
	cfg.Sandbox.DockerImage = v.GetString("DOCKER_IMAGE")
	cfg.Database.URL = v.GetString("DATABASE_URL")
	cfg.Database.SQLitePath = v.GetString("SQLITE_PATH")
	cfg.Redis.URL = v.GetString("REDIS_URL")
	cfg.RabbitMQ.URL = v.GetString("RABBITMQ_URL")
	cfg.Auth.Secret = v.GetString("AUTH_JWT_SECRET")
	cfg.LogLevel = strings.ToLower(v.GetString("LOG_LEVEL"))

	return cfg, nil
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
