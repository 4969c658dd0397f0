// Package daemon runs harvesting on a schedule and serves the results to
// Prometheus.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"nathanbeddoewebdev/cloudharvest/internal/domain"
	"nathanbeddoewebdev/cloudharvest/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
)

const (
	DefaultListen   = ":9108"
	DefaultSchedule = "@every 5m"

	shutdownTimeout = 10 * time.Second
)

// Runner executes one full harvesting run.
type Runner interface {
	Run(ctx context.Context) []domain.PassResult
}

// Config configures the daemon.
type Config struct {
	Listen     string
	Schedule   string
	RunOnStart bool
}

// Daemon schedules runs with cron and serves /metrics and /healthz.
type Daemon struct {
	runner  Runner
	metrics http.Handler
	cfg     Config
	log     *logger.Logger
	cron    *cron.Cron

	// running admits one run at a time across cron ticks and the
	// run-on-start; inflight lets Serve wait for it on shutdown.
	running  sync.Mutex
	inflight sync.WaitGroup

	mu       sync.RWMutex
	lastRun  time.Time
	lastPass []passStatus
	runs     int
	skipped  int
}

type passStatus struct {
	Kind    string `json:"kind"`
	Records int    `json:"records"`
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// New validates the schedule and returns a daemon. metrics serves the
// Prometheus exposition; it may be nil.
func New(runner Runner, metrics http.Handler, cfg Config, log *logger.Logger) (*Daemon, error) {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = http.NotFoundHandler()
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("daemon: invalid schedule %q: %w", cfg.Schedule, err)
	}

	d := &Daemon{runner: runner, metrics: metrics, cfg: cfg, log: log}
	d.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{log}),
		cron.SkipIfStillRunning(cronLogger{log}),
	))
	return d, nil
}

// Router returns the HTTP routes served by the daemon.
func (d *Daemon) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", d.metrics)
	r.Get("/healthz", d.handleHealth)
	return r
}

// RunNow executes one run and records its outcome for /healthz. It reports
// false without running when another run is still in progress.
func (d *Daemon) RunNow(ctx context.Context) ([]domain.PassResult, bool) {
	if !d.running.TryLock() {
		d.mu.Lock()
		d.skipped++
		d.mu.Unlock()
		d.log.Warn("previous run still in progress, skipping")
		return nil, false
	}
	defer d.running.Unlock()

	started := time.Now().UTC()
	results := d.runner.Run(ctx)

	status := make([]passStatus, 0, len(results))
	for _, r := range results {
		s := passStatus{Kind: string(r.Kind), Records: len(r.Records), Failed: r.Failed}
		if r.Err != nil {
			s.Error = r.Err.Error()
		}
		status = append(status, s)
	}

	d.mu.Lock()
	d.lastRun = started
	d.lastPass = status
	d.runs++
	d.mu.Unlock()

	d.log.Infow("scheduled run complete", "passes", len(results), "duration", time.Since(started))
	return results, true
}

// runTracked runs in the background of Serve, which waits for it before
// shutting down.
func (d *Daemon) runTracked(ctx context.Context) {
	d.inflight.Add(1)
	defer d.inflight.Done()
	d.RunNow(ctx)
}

// Start listens on the configured address and serves until ctx is done.
func (d *Daemon) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.cfg.Listen)
	if err != nil {
		return fmt.Errorf("daemon: listen %s: %w", d.cfg.Listen, err)
	}
	return d.Serve(ctx, ln)
}

// Serve runs the scheduler and serves HTTP on ln until ctx is done, then
// waits for an in-flight run and shuts the server down.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	if _, err := d.cron.AddFunc(d.cfg.Schedule, func() { d.runTracked(ctx) }); err != nil {
		ln.Close()
		return fmt.Errorf("daemon: schedule %q: %w", d.cfg.Schedule, err)
	}

	srv := &http.Server{
		Handler:           d.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	d.log.Infow("serving", "addr", ln.Addr().String(), "schedule", d.cfg.Schedule)
	d.cron.Start()
	if d.cfg.RunOnStart {
		d.inflight.Add(1)
		go func() {
			defer d.inflight.Done()
			d.RunNow(ctx)
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		<-d.cron.Stop().Done()
		d.inflight.Wait()
		return fmt.Errorf("daemon: serve: %w", err)
	}

	<-d.cron.Stop().Done()
	d.inflight.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("daemon: shutdown: %w", err)
	}
	return nil
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	d.mu.RLock()
	body := struct {
		Status  string       `json:"status"`
		Runs    int          `json:"runs"`
		Skipped int          `json:"skipped"`
		LastRun *time.Time   `json:"last_run,omitempty"`
		Passes  []passStatus `json:"passes,omitempty"`
	}{Status: "ok", Runs: d.runs, Skipped: d.skipped, Passes: d.lastPass}
	if !d.lastRun.IsZero() {
		t := d.lastRun
		body.LastRun = &t
	}
	d.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// cronLogger routes scheduler messages through the zap logger.
type cronLogger struct{ log *logger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.WithError(err).Errorw(msg, keysAndValues...)
}
