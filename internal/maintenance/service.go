// Package maintenance runs the periodic housekeeping jobs the core
// services own: the limiter's history sweep and the scheduler's
// delivery-log prune. Jobs are registered by name with a cron spec and
// torn down deterministically with the service.
package maintenance

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Config controls the maintenance runner.
type Config struct {
	// DefaultTimeout bounds one job run. Zero disables the bound.
	DefaultTimeout time.Duration
	// HistorySize caps the retained run history. Default 200.
	HistorySize int
}

type Job struct {
	ID      string
	Name    string
	Spec    string // cron spec or "@every 1h"
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

type HistoryItem struct {
	ID       string
	Name     string
	Started  time.Time
	Duration time.Duration
	Error    string
}

type Service struct {
	mu sync.Mutex

	log    *slog.Logger
	cfg    Config
	parser cron.Parser

	c    *cron.Cron
	jobs []Job

	runCtx    context.Context
	runCancel context.CancelFunc

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, log *slog.Logger) *Service {
	return &Service{
		log: log,
		cfg: cfg,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Register adds a job. Must be called before Start.
func (s *Service) Register(j Job) error {
	if _, err := s.parser.Parse(j.Spec); err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, j)
	s.mu.Unlock()
	return nil
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		// already running
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithParser(s.parser))

	for i := range s.jobs {
		j := s.jobs[i]
		_, err := s.c.AddFunc(j.Spec, func() { s.execOne(j) })
		if err != nil {
			s.log.Warn("maintenance job not scheduled", slog.String("job", j.Name), slog.Any("err", err))
		}
	}
	s.c.Start()
	s.log.Info("maintenance started", slog.Int("jobs", len(s.jobs)))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCancel = nil
	s.runCtx = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// in-flight jobs finish in background
	}
}

func (s *Service) execOne(j Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in maintenance job",
				slog.String("job", j.Name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	s.mu.Lock()
	ctx := s.runCtx
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	s.mu.Unlock()
	if ctx == nil {
		return
	}

	start := time.Now()
	var cancel func()
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	err := j.Run(ctx)
	if cancel != nil {
		cancel()
	}
	dur := time.Since(start)

	item := HistoryItem{ID: j.ID, Name: j.Name, Started: start, Duration: dur}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("maintenance job failed", slog.String("job", j.Name), slog.Any("err", err), slog.Duration("dur", dur))
	} else {
		s.log.Debug("maintenance job done", slog.String("job", j.Name), slog.Duration("dur", dur))
	}
	s.appendHistory(item)
}

func (s *Service) appendHistory(item HistoryItem) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, item)
	size := s.cfg.HistorySize
	if size <= 0 {
		size = 200
	}
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
}

// History returns a copy of the retained run history.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}
