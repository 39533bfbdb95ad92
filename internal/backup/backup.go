// Package backup periodically writes board export envelopes to a directory
// and prunes old ones.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	cronlib "github.com/robfig/cron/v3"
)

const (
	filePrefix = "kanban-"
	fileSuffix = ".json"
	stampFmt   = "20060102T150405.000"
)

// Exporter produces a full backup envelope.
type Exporter interface {
	ExportSnapshot() ([]byte, error)
}

// Config holds the dependencies for the backup scheduler.
type Config struct {
	Store    Exporter
	Dir      string
	Schedule string // 5-field cron expression or descriptor such as @daily
	Keep     int    // 0 keeps every backup
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Scheduler runs backups on a cron schedule.
type Scheduler struct {
	store  Exporter
	dir    string
	keep   int
	logger *slog.Logger
	clock  func() time.Time
	cron   *cronlib.Cron
}

// ValidateSchedule reports whether expr is a usable cron expression.
func ValidateSchedule(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("empty schedule")
	}
	_, err := cronlib.ParseStandard(expr)
	return err
}

// NewScheduler creates a Scheduler and registers its cron job. Start must be
// called for the job to fire.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("backup: nil store")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("backup: empty directory")
	}
	if err := ValidateSchedule(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("backup: schedule %q: %w", cfg.Schedule, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Scheduler{
		store:  cfg.Store,
		dir:    cfg.Dir,
		keep:   cfg.Keep,
		logger: logger,
		clock:  clock,
		cron:   cronlib.New(),
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.run); err != nil {
		return nil, fmt.Errorf("backup: register schedule: %w", err)
	}
	return s, nil
}

// Start begins firing the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("backup scheduler started", "dir", s.dir)
}

// Stop halts the schedule and waits for a running backup to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("backup scheduler stopped")
}

func (s *Scheduler) run() {
	path, err := s.RunOnce(context.Background())
	if err != nil {
		s.logger.Error("backup failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("backup written", "path", path)
}

// RunOnce writes one backup and prunes old ones. It returns the new file path.
func (s *Scheduler) RunOnce(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	blob, err := s.store.ExportSnapshot()
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	name := filePrefix + s.clock().Format(stampFmt) + "-" + uuid.NewString()[:8] + fileSuffix
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize backup: %w", err)
	}

	if err := s.prune(); err != nil {
		s.logger.Warn("backup prune failed", slog.String("error", err.Error()))
	}
	return path, nil
}

// List returns the backup files in the directory, newest first.
func (s *Scheduler) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func (s *Scheduler) prune() error {
	if s.keep <= 0 {
		return nil
	}
	names, err := s.List()
	if err != nil {
		return err
	}
	for _, name := range names[min(s.keep, len(names)):] {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
		s.logger.Debug("backup pruned", "file", name)
	}
	return nil
}
