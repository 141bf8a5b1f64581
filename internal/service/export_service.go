package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"airexport/internal/etl"
)

// ─────────────────────────────────────────────────────────────
// Export Service: runs exports, records history, schedules kinds
// ─────────────────────────────────────────────────────────────

// ErrAlreadyRunning is returned when a requested kind is still exporting.
var ErrAlreadyRunning = errors.New("export already running")

// ErrStopped is returned by Reload once the service has been stopped.
var ErrStopped = errors.New("export service stopped")

// DefaultRunTimeout bounds one scheduled or manual run.
const DefaultRunTimeout = 30 * time.Minute

// RunStore persists run history.
type RunStore interface {
	CreateRunLog(ctx context.Context, log *etl.RunLog) error
	ListRunLogs(ctx context.Context, kind string, limit int) ([]etl.RunLog, error)
}

// Plan is what the scheduler executes: an engine plus a cron expression
// per kind. Kinds absent from Schedules are not scheduled.
type Plan struct {
	Engine    *etl.Engine
	Kinds     []*etl.KindSpec
	Schedules map[string]string // kind name → cron expression
	Close     func() error      // releases engine resources; may be nil
}

// PlanLoader builds a fresh Plan, typically from the config file.
type PlanLoader func(ctx context.Context) (*Plan, error)

// ExportService runs exports and keeps the cron schedule in sync with
// the configuration file.
type ExportService struct {
	store      RunStore
	emitter    EventEmitter
	logger     *slog.Logger
	running    runningGuard
	RunTimeout time.Duration

	mu          sync.Mutex
	baseCtx     context.Context // scheduled runs inherit this, not the watcher's context
	stopped     bool
	loader      PlanLoader
	plan        *Plan
	cronSched   *cron.Cron
	scheduled   [][]string // kind groups, one per cron entry
	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
}

// NewExportService creates an ExportService. store and emitter may be nil.
func NewExportService(store RunStore, emitter EventEmitter, logger *slog.Logger) *ExportService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ExportService{
		store:      store,
		emitter:    emitter,
		logger:     logger.With("component", "scheduler"),
		RunTimeout: DefaultRunTimeout,
	}
}

// ── Run ────────────────────────────────────────────────────

// RunKinds exports kinds in one engine run so reference tables are
// fetched once. Every result is recorded in the run history. It fails
// with ErrAlreadyRunning, without running anything, if any kind is busy.
func (s *ExportService) RunKinds(ctx context.Context, engine *etl.Engine, kinds []*etl.KindSpec) ([]*etl.ExportResult, error) {
	names := kindNames(kinds)
	if busy, ok := s.running.TryLock(names...); !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, strings.Join(busy, ", "))
	}
	defer s.running.Unlock(names...)

	runCtx, cancel := context.WithTimeout(ctx, s.RunTimeout)
	defer cancel()

	results, runErr := engine.Run(runCtx, kinds)
	for _, r := range results {
		s.record(ctx, r)
		if s.emitter != nil {
			s.emitter.Emit(ctx, EventExportFinished, r)
		}
	}
	return results, runErr
}

func (s *ExportService) record(ctx context.Context, r *etl.ExportResult) {
	if s.store == nil {
		return
	}
	if err := s.store.CreateRunLog(ctx, etl.NewRunLog(r)); err != nil {
		s.logger.Warn("run history not saved", "kind", r.Kind, "run", r.RunID, "error", err)
	}
}

// ListRunLogs returns recent runs, newest first.
func (s *ExportService) ListRunLogs(ctx context.Context, kind string, limit int) ([]etl.RunLog, error) {
	if s.store == nil {
		return nil, errors.New("run history is not configured")
	}
	return s.store.ListRunLogs(ctx, kind, limit)
}

// ── Scheduling ─────────────────────────────────────────────

// Start loads a plan, schedules it, and when configPath is set reloads
// the plan whenever that file changes.
func (s *ExportService) Start(ctx context.Context, loader PlanLoader, configPath string) error {
	s.mu.Lock()
	s.loader = loader
	s.baseCtx = ctx
	s.stopped = false
	s.mu.Unlock()

	if err := s.Reload(ctx); err != nil {
		return err
	}
	if configPath != "" {
		if err := s.watchConfig(ctx, configPath); err != nil {
			return err
		}
	}
	return nil
}

// Reload builds a new plan and swaps the schedule. On failure the current
// schedule keeps running. Scheduled runs inherit ctx. After Stop, Reload
// discards the new plan and returns ErrStopped.
func (s *ExportService) Reload(ctx context.Context) error {
	s.mu.Lock()
	loader := s.loader
	s.mu.Unlock()
	if loader == nil {
		return errors.New("no plan loader")
	}

	plan, err := loader(ctx)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}

	c := cron.New()
	groups := groupBySchedule(plan)
	var scheduled [][]string
	for _, g := range groups {
		kinds := g.kinds
		if _, err := c.AddFunc(g.expr, func() { s.runScheduled(ctx, plan.Engine, kinds) }); err != nil {
			if plan.Close != nil {
				plan.Close()
			}
			return fmt.Errorf("schedule %s: invalid expression %q: %w", strings.Join(kindNames(kinds), ","), g.expr, err)
		}
		scheduled = append(scheduled, kindNames(kinds))
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		if plan.Close != nil {
			plan.Close()
		}
		return ErrStopped
	}
	old, oldPlan := s.cronSched, s.plan
	s.cronSched, s.plan, s.scheduled = c, plan, scheduled
	s.mu.Unlock()

	// Stop the old schedule before starting the new one. Runs it already
	// started hold the running guard, so the new schedule cannot overlap them.
	if old != nil {
		<-old.Stop().Done()
	}
	if oldPlan != nil && oldPlan.Close != nil {
		if err := oldPlan.Close(); err != nil {
			s.logger.Warn("closing previous plan", "error", err)
		}
	}
	c.Start()

	s.logger.Info("schedule loaded", "entries", len(scheduled))
	if s.emitter != nil {
		s.emitter.Emit(ctx, EventScheduleReloaded, scheduled)
	}
	return nil
}

func (s *ExportService) runScheduled(ctx context.Context, engine *etl.Engine, kinds []*etl.KindSpec) {
	names := strings.Join(kindNames(kinds), ",")
	s.logger.Info("scheduled export starting", "kinds", names)
	results, err := s.RunKinds(ctx, engine, kinds)
	if errors.Is(err, ErrAlreadyRunning) {
		s.logger.Warn("scheduled export skipped", "kinds", names, "error", err)
		return
	}
	if err != nil {
		s.logger.Error("scheduled export failed", "kinds", names, "error", err)
	}
	for _, r := range results {
		s.logger.Info("scheduled export finished", "kind", r.Kind, "status", r.Status, "rows", r.RowsWritten)
	}
}

// Scheduled returns the kind groups currently scheduled, one per cron entry.
func (s *ExportService) Scheduled() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.scheduled))
	copy(out, s.scheduled)
	return out
}

type scheduleGroup struct {
	expr  string
	kinds []*etl.KindSpec
}

// groupBySchedule puts kinds sharing a cron expression into one entry so
// they run together and share reference tables. Kinds keep plan order.
func groupBySchedule(plan *Plan) []scheduleGroup {
	index := make(map[string]int)
	var groups []scheduleGroup
	for _, k := range plan.Kinds {
		expr := strings.TrimSpace(plan.Schedules[k.Name])
		if expr == "" {
			continue
		}
		i, ok := index[expr]
		if !ok {
			i = len(groups)
			index[expr] = i
			groups = append(groups, scheduleGroup{expr: expr})
		}
		groups[i].kinds = append(groups[i].kinds, k)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].expr < groups[b].expr })
	return groups
}

// ── Config watcher ─────────────────────────────────────────

// watchConfig reloads the plan when configPath is written or replaced.
// The directory is watched because editors often save by rename.
func (s *ExportService) watchConfig(ctx context.Context, configPath string) error {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("config path %q: %w", configPath, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %q: %w", filepath.Dir(absPath), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.watcher, s.watchCancel = watcher, cancel
	s.mu.Unlock()

	go func() {
		var timer *time.Timer
		for {
			select {
			case <-watchCtx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if p, _ := filepath.Abs(event.Name); p != absPath {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(500*time.Millisecond, func() {
					if watchCtx.Err() != nil {
						return
					}
					s.mu.Lock()
					base := s.baseCtx
					s.mu.Unlock()
					s.logger.Info("config changed, reloading", "path", absPath)
					if err := s.Reload(base); errors.Is(err, ErrStopped) {
						return
					} else if err != nil {
						s.logger.Error("reload failed, keeping current schedule", "error", err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("config watcher error", "error", err)
			}
		}
	}()

	s.logger.Info("watching config", "path", absPath)
	return nil
}

// WaitRunning blocks until all running exports finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *ExportService) WaitRunning(ctx context.Context) {
	s.running.WaitAll(ctx)
}

// Stop tears down the watcher and scheduler. Running exports are not
// interrupted; call WaitRunning afterwards.
func (s *ExportService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
	s.scheduled = nil
}

// Close stops the service and releases the current plan.
func (s *ExportService) Close() error {
	s.Stop()
	s.mu.Lock()
	plan := s.plan
	s.plan = nil
	s.mu.Unlock()
	if plan != nil && plan.Close != nil {
		return plan.Close()
	}
	return nil
}

func kindNames(kinds []*etl.KindSpec) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.Name
	}
	return names
}
