// Package config loads process configuration from defaults, an optional
// config file, KANBAN_* environment variables and command-line flags, in
// that order of precedence.
package config

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"kanban/internal/backup"
	"kanban/internal/util"
)

// MemoryDB selects the in-memory prefs store instead of SQLite.
const MemoryDB = ":memory:"

// Config holds every tunable of the kanban process.
type Config struct {
	Addr           string `toml:"addr" yaml:"addr"`
	DBPath         string `toml:"db_path" yaml:"db_path"`
	StaticDir      string `toml:"static_dir" yaml:"static_dir"`
	LogLevel       string `toml:"log_level" yaml:"log_level"`
	LogFormat      string `toml:"log_format" yaml:"log_format"`
	SeedSampleData bool   `toml:"seed_sample_data" yaml:"seed_sample_data"`
	BackupDir      string `toml:"backup_dir" yaml:"backup_dir"`
	BackupSchedule string `toml:"backup_schedule" yaml:"backup_schedule"`
	BackupKeep     int    `toml:"backup_keep" yaml:"backup_keep"`

	// AllowedOrigins enables CORS for a separately served frontend.
	AllowedOrigins []string `toml:"allowed_origins" yaml:"allowed_origins"`

	// File is the config file that was read, if any.
	File string `toml:"-" yaml:"-"`
}

var projectConfigFiles = []string{"kanban.toml", "kanban.yaml", "kanban.yml"}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Addr:           ":8080",
		DBPath:         "data/kanban.db",
		StaticDir:      "web/dist",
		LogLevel:       "info",
		LogFormat:      "text",
		BackupSchedule: "0 3 * * *",
		BackupKeep:     14,
	}
}

// Load builds the configuration. args are the command-line arguments without
// the program name.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := Defaults()

	configFlag := fs.String("config", "", "Path to a kanban.toml or kanban.yaml config file")
	addr := fs.String("addr", cfg.Addr, "HTTP listen address")
	dbPath := fs.String("db", cfg.DBPath, "Path to sqlite database file, or :memory:")
	staticDir := fs.String("static", cfg.StaticDir, "Directory with built frontend")
	logLevel := fs.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", cfg.LogFormat, "Log format: text or json")
	seed := fs.Bool("seed", cfg.SeedSampleData, "Fill an empty board with sample tasks")
	backupDir := fs.String("backup-dir", cfg.BackupDir, "Directory for scheduled backups; empty disables them")
	backupSchedule := fs.String("backup-schedule", cfg.BackupSchedule, "Cron expression for scheduled backups")
	backupKeep := fs.Int("backup-keep", cfg.BackupKeep, "Number of backups to retain; 0 keeps all")
	origins := fs.String("allowed-origins", "", "Comma-separated origins allowed to call the API")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	path := *configFlag
	if path == "" {
		path = util.EnvOrDefault("KANBAN_CONFIG", "")
	}
	if path == "" {
		path = findProjectConfigFile()
	}
	if path != "" {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
		cfg.File = path
	}

	loadFromEnv(cfg)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "db":
			cfg.DBPath = *dbPath
		case "static":
			cfg.StaticDir = *staticDir
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "seed":
			cfg.SeedSampleData = *seed
		case "backup-dir":
			cfg.BackupDir = *backupDir
		case "backup-schedule":
			cfg.BackupSchedule = *backupSchedule
		case "backup-keep":
			cfg.BackupKeep = *backupKeep
		case "allowed-origins":
			cfg.AllowedOrigins = splitList(*origins)
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findProjectConfigFile() string {
	for _, name := range projectConfigFiles {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name
		}
	}
	return ""
}

func loadConfigFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return err
		}
		return nil
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

func loadFromEnv(cfg *Config) {
	cfg.Addr = util.EnvOrDefault("KANBAN_ADDR", cfg.Addr)
	cfg.DBPath = util.EnvOrDefault("KANBAN_DB_PATH", cfg.DBPath)
	cfg.StaticDir = util.EnvOrDefault("KANBAN_STATIC_DIR", cfg.StaticDir)
	cfg.LogLevel = util.EnvOrDefault("KANBAN_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = util.EnvOrDefault("KANBAN_LOG_FORMAT", cfg.LogFormat)
	cfg.SeedSampleData = util.EnvBool("KANBAN_SEED_SAMPLE_DATA", cfg.SeedSampleData)
	cfg.BackupDir = util.EnvOrDefault("KANBAN_BACKUP_DIR", cfg.BackupDir)
	cfg.BackupSchedule = util.EnvOrDefault("KANBAN_BACKUP_SCHEDULE", cfg.BackupSchedule)
	cfg.BackupKeep = util.EnvInt("KANBAN_BACKUP_KEEP", cfg.BackupKeep)
	if raw, ok := os.LookupEnv("KANBAN_ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = splitList(raw)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects values the process cannot start with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.BackupKeep < 0 {
		return fmt.Errorf("backup_keep must not be negative")
	}
	if c.BackupDir != "" {
		if err := backup.ValidateSchedule(c.BackupSchedule); err != nil {
			return fmt.Errorf("backup_schedule: %w", err)
		}
	}
	return nil
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return level, nil
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
