package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Driver selects the task storage backend.
type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverRedis  Driver = "redis"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Board    BoardConfig    `toml:"board"`
	Server   ServerConfig   `toml:"server"`
	Keys     KeyConfig      `toml:"keys"`
}

type DatabaseConfig struct {
	Driver Driver      `toml:"driver"`
	Path   string      `toml:"path"`
	Redis  RedisConfig `toml:"redis"`
}

type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	Prefix     string `toml:"prefix"`
	EventLimit int    `toml:"event_limit"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type BoardConfig struct {
	// StrictTransitions rejects a move while another for the same task is pending.
	StrictTransitions bool `toml:"strict_transitions"`
	ShowDescription   bool `toml:"show_description"`
	// DragThreshold is the pointer travel, in cells, before a press becomes a drag.
	DragThreshold int `toml:"drag_threshold"`
}

type ServerConfig struct {
	HTTPBind        string `toml:"http_bind"`
	APIEndpoint     string `toml:"api_endpoint"`
	MCPEndpoint     string `toml:"mcp_endpoint"`
	MetricsEndpoint string `toml:"metrics_endpoint"`
}

// KeyConfig overrides board action keys. Blank values keep the built-in keys.
type KeyConfig struct {
	AddTask       string `toml:"add_task"`
	DeleteTask    string `toml:"delete_task"`
	TaskInfo      string `toml:"task_info"`
	CopyID        string `toml:"copy_id"`
	MoveTo        string `toml:"move_to"`
	MoveTaskLeft  string `toml:"move_task_left"`
	MoveTaskRight string `toml:"move_task_right"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   dbPath,
			Redis: RedisConfig{
				Addr:       "127.0.0.1:6379",
				Prefix:     "laneboard:",
				EventLimit: 1000,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".laneboard/log",
			},
		},
		Board: BoardConfig{
			StrictTransitions: false,
			ShowDescription:   true,
			DragThreshold:     1,
		},
		Server: ServerConfig{
			HTTPBind:        "127.0.0.1:8080",
			APIEndpoint:     "/api/v1",
			MCPEndpoint:     "/mcp",
			MetricsEndpoint: "/metrics",
		},
		Keys: KeyConfig{
			AddTask:       "n",
			DeleteTask:    "d",
			TaskInfo:      "i",
			CopyID:        "y",
			MoveTo:        "m",
			MoveTaskLeft:  "[",
			MoveTaskRight: "]",
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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch Driver(strings.ToLower(strings.TrimSpace(string(c.Database.Driver)))) {
	case DriverSQLite, "":
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database path is required")
		}
	case DriverRedis:
		if strings.TrimSpace(c.Database.Redis.Addr) == "" {
			return errors.New("database.redis.addr is required")
		}
		if c.Database.Redis.DB < 0 {
			return fmt.Errorf("database.redis.db must be >= 0: %d", c.Database.Redis.DB)
		}
		if c.Database.Redis.EventLimit < 0 {
			return fmt.Errorf("database.redis.event_limit must be >= 0: %d", c.Database.Redis.EventLimit)
		}
	default:
		return fmt.Errorf("invalid database.driver: %q", c.Database.Driver)
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if c.Board.DragThreshold < 0 {
		return fmt.Errorf("board.drag_threshold must be >= 0: %d", c.Board.DragThreshold)
	}

	seen := map[string]string{}
	for name, raw := range map[string]string{
		"keys.add_task":        c.Keys.AddTask,
		"keys.delete_task":     c.Keys.DeleteTask,
		"keys.task_info":       c.Keys.TaskInfo,
		"keys.copy_id":         c.Keys.CopyID,
		"keys.move_to":         c.Keys.MoveTo,
		"keys.move_task_left":  c.Keys.MoveTaskLeft,
		"keys.move_task_right": c.Keys.MoveTaskRight,
	} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if other, ok := seen[raw]; ok {
			return fmt.Errorf("%s reuses the %s key %q", name, other, raw)
		}
		seen[raw] = name
	}

	endpoints := map[string]string{}
	for name, endpoint := range map[string]string{
		"server.api_endpoint":     c.Server.APIEndpoint,
		"server.mcp_endpoint":     c.Server.MCPEndpoint,
		"server.metrics_endpoint": c.Server.MetricsEndpoint,
	} {
		endpoint = "/" + strings.Trim(strings.TrimSpace(endpoint), "/")
		if endpoint == "/" {
			continue
		}
		if other, ok := endpoints[endpoint]; ok {
			return fmt.Errorf("%s collides with %s: %s", name, other, endpoint)
		}
		endpoints[endpoint] = name
	}

	return nil
}

// DriverName returns the normalized storage driver, defaulting to sqlite.
func (c Config) DriverName() Driver {
	driver := Driver(strings.ToLower(strings.TrimSpace(string(c.Database.Driver))))
	if driver == "" {
		return DriverSQLite
	}
	return driver
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteDefault writes cfg as TOML to path unless a file already exists there.
func WriteDefault(path string, cfg Config) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("encode toml: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
