package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DatabaseURL string `toml:"database_url"` // PLANGRAPH_DATABASE_URL (Postgres)
	SQLitePath  string `toml:"sqlite_path"`  // PLANGRAPH_SQLITE_PATH (standalone; used when DatabaseURL is empty)
	GRPCAddr    string `toml:"grpc_addr"`    // PLANGRAPH_GRPC_ADDR (default ":9090")
	HTTPAddr    string `toml:"http_addr"`    // PLANGRAPH_HTTP_ADDR (default ":8080")
	NATSURL     string `toml:"nats_url"`     // PLANGRAPH_NATS_URL (optional, empty = no events)
	AuthToken   string `toml:"auth_token"`   // PLANGRAPH_AUTH_TOKEN (optional, empty = auth disabled)

	// Entity tables consulted for endpoint existence in Postgres mode.
	ProjectsTable string `toml:"projects_table"` // PLANGRAPH_PROJECTS_TABLE (default "projects")
	TasksTable    string `toml:"tasks_table"`    // PLANGRAPH_TASKS_TABLE (default "tasks")

	LogLevel  string `toml:"log_level"`  // PLANGRAPH_LOG_LEVEL (debug, info, warn, error; default info)
	LogFormat string `toml:"log_format"` // PLANGRAPH_LOG_FORMAT (text or json; default text)

	// Snapshot settings
	SnapshotInterval   time.Duration `toml:"-"`                    // PLANGRAPH_SNAPSHOT_INTERVAL (default 0 = disabled)
	SnapshotS3Bucket   string        `toml:"snapshot_s3_bucket"`   // PLANGRAPH_SNAPSHOT_S3_BUCKET (enables S3 when set)
	SnapshotS3Endpoint string        `toml:"snapshot_s3_endpoint"` // PLANGRAPH_SNAPSHOT_S3_ENDPOINT (custom endpoint for MinIO)
	SnapshotS3Region   string        `toml:"snapshot_s3_region"`   // PLANGRAPH_SNAPSHOT_S3_REGION (default "us-east-1")
	SnapshotS3Key      string        `toml:"snapshot_s3_key"`      // PLANGRAPH_SNAPSHOT_S3_KEY (default "plangraph/dependencies.jsonl")
	SnapshotGitRepo    string        `toml:"snapshot_git_repo"`    // PLANGRAPH_SNAPSHOT_GIT_REPO (enables git when set; path to clone)
	SnapshotGitFile    string        `toml:"snapshot_git_file"`    // PLANGRAPH_SNAPSHOT_GIT_FILE (default "dependencies.jsonl")
	SnapshotGitBranch  string        `toml:"snapshot_git_branch"`  // PLANGRAPH_SNAPSHOT_GIT_BRANCH (default "main")

	// SnapshotIntervalRaw is the interval as written in the config file.
	SnapshotIntervalRaw string `toml:"snapshot_interval"`

	// Hooks run after committed changes. PLANGRAPH_HOOK_COMMAND appends one
	// that fires on every action.
	Hooks []Hook `toml:"hooks"`
}

// Hook configures one change hook.
type Hook struct {
	Command   string   `toml:"command"`
	Actions   []string `toml:"actions"`    // created, updated, deleted; empty = all
	Timeout   int      `toml:"timeout"`    // seconds; 0 = default
	Dir       string   `toml:"dir"`        // working directory
	OnFailure string   `toml:"on_failure"` // warn (default) or ignore
}

func defaults() *Config {
	return &Config{
		GRPCAddr:          ":9090",
		HTTPAddr:          ":8080",
		ProjectsTable:     "projects",
		TasksTable:        "tasks",
		LogLevel:          "info",
		LogFormat:         "text",
		SnapshotS3Region:  "us-east-1",
		SnapshotS3Key:     "plangraph/dependencies.jsonl",
		SnapshotGitFile:   "dependencies.jsonl",
		SnapshotGitBranch: "main",
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// PLANGRAPH_CONFIG (if any), then PLANGRAPH_* environment variables.
func Load() (*Config, error) {
	c := defaults()

	if path := os.Getenv("PLANGRAPH_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("PLANGRAPH_CONFIG: %w", err)
		}
	}

	c.DatabaseURL = envOrDefault("PLANGRAPH_DATABASE_URL", c.DatabaseURL)
	c.SQLitePath = envOrDefault("PLANGRAPH_SQLITE_PATH", c.SQLitePath)
	c.GRPCAddr = envOrDefault("PLANGRAPH_GRPC_ADDR", c.GRPCAddr)
	c.HTTPAddr = envOrDefault("PLANGRAPH_HTTP_ADDR", c.HTTPAddr)
	c.NATSURL = envOrDefault("PLANGRAPH_NATS_URL", c.NATSURL)
	c.AuthToken = envOrDefault("PLANGRAPH_AUTH_TOKEN", c.AuthToken)
	c.ProjectsTable = envOrDefault("PLANGRAPH_PROJECTS_TABLE", c.ProjectsTable)
	c.TasksTable = envOrDefault("PLANGRAPH_TASKS_TABLE", c.TasksTable)
	c.LogLevel = envOrDefault("PLANGRAPH_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOrDefault("PLANGRAPH_LOG_FORMAT", c.LogFormat)
	c.SnapshotS3Bucket = envOrDefault("PLANGRAPH_SNAPSHOT_S3_BUCKET", c.SnapshotS3Bucket)
	c.SnapshotS3Endpoint = envOrDefault("PLANGRAPH_SNAPSHOT_S3_ENDPOINT", c.SnapshotS3Endpoint)
	c.SnapshotS3Region = envOrDefault("PLANGRAPH_SNAPSHOT_S3_REGION", c.SnapshotS3Region)
	c.SnapshotS3Key = envOrDefault("PLANGRAPH_SNAPSHOT_S3_KEY", c.SnapshotS3Key)
	c.SnapshotGitRepo = envOrDefault("PLANGRAPH_SNAPSHOT_GIT_REPO", c.SnapshotGitRepo)
	c.SnapshotGitFile = envOrDefault("PLANGRAPH_SNAPSHOT_GIT_FILE", c.SnapshotGitFile)
	c.SnapshotGitBranch = envOrDefault("PLANGRAPH_SNAPSHOT_GIT_BRANCH", c.SnapshotGitBranch)

	if c.DatabaseURL == "" && c.SQLitePath == "" {
		return nil, fmt.Errorf("PLANGRAPH_DATABASE_URL or PLANGRAPH_SQLITE_PATH is required")
	}

	intervalStr := envOrDefault("PLANGRAPH_SNAPSHOT_INTERVAL", c.SnapshotIntervalRaw)
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("PLANGRAPH_SNAPSHOT_INTERVAL: %w", err)
		}
		c.SnapshotInterval = d
	}

	if cmd := os.Getenv("PLANGRAPH_HOOK_COMMAND"); cmd != "" {
		h := Hook{Command: cmd}
		if raw := os.Getenv("PLANGRAPH_HOOK_TIMEOUT"); raw != "" {
			secs, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("PLANGRAPH_HOOK_TIMEOUT: %w", err)
			}
			h.Timeout = secs
		}
		c.Hooks = append(c.Hooks, h)
	}
	for i, h := range c.Hooks {
		if err := h.validate(); err != nil {
			return nil, fmt.Errorf("hooks[%d]: %w", i, err)
		}
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return nil, fmt.Errorf("PLANGRAPH_LOG_LEVEL: %w", err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("PLANGRAPH_LOG_FORMAT: unknown format %q (want text or json)", c.LogFormat)
	}

	return c, nil
}

func (h Hook) validate() error {
	if strings.TrimSpace(h.Command) == "" {
		return fmt.Errorf("command is required")
	}
	for _, a := range h.Actions {
		switch a {
		case "created", "updated", "deleted":
		default:
			return fmt.Errorf("unknown action %q (want created, updated or deleted)", a)
		}
	}
	switch h.OnFailure {
	case "", "warn", "ignore":
	default:
		return fmt.Errorf("unknown on_failure %q (want warn or ignore)", h.OnFailure)
	}
	if h.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// Backend names the edge store the configuration selects.
func (c *Config) Backend() string {
	if c.DatabaseURL != "" {
		return "postgres"
	}
	return "sqlite"
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, err
	}
	return level, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
