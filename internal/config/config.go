package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

type DeletePolicy string

const (
	DeletePolicyCascade DeletePolicy = "cascade"
	DeletePolicyUnfiled DeletePolicy = "unfiled"
)

type StorageBackend string

const (
	BackendSQLite StorageBackend = "sqlite"
	BackendRedis  StorageBackend = "redis"
	BackendMemory StorageBackend = "memory"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Storage  StorageConfig  `toml:"storage"`
	Redis    RedisConfig    `toml:"redis"`
	Boards   BoardsConfig   `toml:"boards"`
	Display  DisplayConfig  `toml:"display"`
	Logging  LoggingConfig  `toml:"logging"`
	Server   ServerConfig   `toml:"server"`
	Keys     KeyConfig      `toml:"keys"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type StorageConfig struct {
	Backend StorageBackend `toml:"backend"`
}

type RedisConfig struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

type BoardsConfig struct {
	DeletePolicy DeletePolicy `toml:"delete_policy"`
	UnfiledName  string       `toml:"unfiled_name"`
	Defaults     []string     `toml:"defaults"`
}

type DisplayConfig struct {
	TimeFormat string `toml:"time_format"`
	ShowCounts bool   `toml:"show_counts"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type KeyConfig struct {
	AddTask    string `toml:"add_task"`
	EditTask   string `toml:"edit_task"`
	DeleteTask string `toml:"delete_task"`
	History    string `toml:"history"`
	CopyText   string `toml:"copy_text"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
		},
		Redis: RedisConfig{
			Addr:      "127.0.0.1:6379",
			KeyPrefix: "tavla:",
		},
		Boards: BoardsConfig{
			DeletePolicy: DeletePolicyCascade,
			UnfiledName:  "UNFILED",
			Defaults:     []string{"TODO", "DOING", "DONE"},
		},
		Display: DisplayConfig{
			TimeFormat: "2006-01-02 15:04:05",
			ShowCounts: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: false,
				Dir:     "",
			},
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:5437",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Keys: KeyConfig{
			AddTask:    "n",
			EditTask:   "e",
			DeleteTask: "d",
			History:    "H",
			CopyText:   "y",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) normalize() {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	c.Storage.Backend = StorageBackend(strings.ToLower(strings.TrimSpace(string(c.Storage.Backend))))
	c.Boards.DeletePolicy = DeletePolicy(strings.ToLower(strings.TrimSpace(string(c.Boards.DeletePolicy))))
	c.Boards.UnfiledName = strings.ToUpper(strings.TrimSpace(c.Boards.UnfiledName))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Server.HTTPBind = strings.TrimSpace(c.Server.HTTPBind)
	c.Keys.AddTask = strings.TrimSpace(c.Keys.AddTask)
	c.Keys.EditTask = strings.TrimSpace(c.Keys.EditTask)
	c.Keys.DeleteTask = strings.TrimSpace(c.Keys.DeleteTask)
	c.Keys.History = strings.TrimSpace(c.Keys.History)
	c.Keys.CopyText = strings.TrimSpace(c.Keys.CopyText)
}

func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database path is required")
		}
	case BackendRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("redis.addr is required for the redis backend")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid storage.backend: %q", c.Storage.Backend)
	}

	switch c.Boards.DeletePolicy {
	case DeletePolicyCascade, DeletePolicyUnfiled:
	default:
		return fmt.Errorf("invalid boards.delete_policy: %q", c.Boards.DeletePolicy)
	}
	if c.Boards.DeletePolicy == DeletePolicyUnfiled && strings.TrimSpace(c.Boards.UnfiledName) == "" {
		return errors.New("boards.unfiled_name is required when delete_policy is unfiled")
	}
	seen := map[string]struct{}{}
	for idx, name := range c.Boards.Defaults {
		name = strings.ToUpper(strings.TrimSpace(name))
		if name == "" {
			return fmt.Errorf("boards.defaults[%d] is empty", idx)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("boards.defaults[%d] is duplicated: %s", idx, name)
		}
		seen[name] = struct{}{}
	}

	if err := validateTimeFormat(c.Display.TimeFormat); err != nil {
		return err
	}

	if c.Logging.Level != "" {
		if _, err := log.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
		}
	}

	if c.Server.APIEndpoint != "" && !strings.HasPrefix(c.Server.APIEndpoint, "/") {
		return fmt.Errorf("server.api_endpoint must start with /: %q", c.Server.APIEndpoint)
	}
	if c.Server.MCPEndpoint != "" && !strings.HasPrefix(c.Server.MCPEndpoint, "/") {
		return fmt.Errorf("server.mcp_endpoint must start with /: %q", c.Server.MCPEndpoint)
	}

	bound := map[string]string{}
	for _, kb := range []struct{ name, value string }{
		{"add_task", c.Keys.AddTask},
		{"edit_task", c.Keys.EditTask},
		{"delete_task", c.Keys.DeleteTask},
		{"history", c.Keys.History},
		{"copy_text", c.Keys.CopyText},
	} {
		if kb.value == "" {
			continue
		}
		if other, ok := bound[kb.value]; ok {
			return fmt.Errorf("keys.%s duplicates keys.%s: %q", kb.name, other, kb.value)
		}
		bound[kb.value] = kb.name
	}

	return nil
}

// validateTimeFormat rejects layouts that render a fixed reference time unchanged.
func validateTimeFormat(layout string) error {
	if strings.TrimSpace(layout) == "" {
		return errors.New("display.time_format is required")
	}
	ref := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	if ref.Format(layout) == layout {
		return fmt.Errorf("display.time_format has no time fields: %q", layout)
	}
	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
