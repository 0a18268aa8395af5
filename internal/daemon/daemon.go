// Package daemon wires the relay together and owns its lifecycle: config,
// logging, metrics, the session registry, the upstream client, the
// instruction profile store, the HTTP server, and periodic housekeeping.
package daemon

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vijay5b3/SkillSpeak/internal/config"
	"github.com/vijay5b3/SkillSpeak/internal/logger"
	"github.com/vijay5b3/SkillSpeak/internal/metrics"
	"github.com/vijay5b3/SkillSpeak/internal/profile"
	"github.com/vijay5b3/SkillSpeak/internal/relay"
	"github.com/vijay5b3/SkillSpeak/internal/server"
	"github.com/vijay5b3/SkillSpeak/internal/upstream"
)

// housekeepingSchedule drives the session sweep and the stats log line.
const housekeepingSchedule = "@every 1m"

// Daemon is the running relay service.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	metrics  *metrics.Metrics
	registry *relay.Registry
	upstream *upstream.Client
	profiles *profile.Store
	server   *server.Server
	cron     *cron.Cron

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// Status is a point-in-time view of the daemon.
type Status struct {
	Running           bool
	Uptime            time.Duration
	Sessions          int
	Subscribers       int
	LegacySubscribers int
	ProfileVersion    string
}

// New builds a daemon from validated configuration.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	zlog := log.GetZerolog()

	m := metrics.NewMetrics()
	registry := relay.NewRegistry(cfg.Relay.SessionGrace, cfg.Relay.SubscriberBuffer, zlog, m)
	client := upstream.New(cfg.Upstream, zlog, m)

	profiles, err := profile.NewStore(cfg.Profile.Path, zlog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize instruction profile: %w", err)
	}

	d := &Daemon{
		config:   cfg,
		logger:   log,
		metrics:  m,
		registry: registry,
		upstream: client,
		profiles: profiles,
		cron:     cron.New(),
	}
	d.server = server.New(cfg, registry, client, profiles, zlog, m)

	if _, err := d.cron.AddFunc(housekeepingSchedule, d.housekeeping); err != nil {
		profiles.Close()
		return nil, fmt.Errorf("failed to schedule housekeeping: %w", err)
	}

	return d, nil
}

// Start brings up the profile watcher, the HTTP server, and housekeeping.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon is already running")
	}

	if d.config.Profile.Watch && d.config.Profile.Path != "" {
		if err := d.profiles.Watch(); err != nil {
			return fmt.Errorf("failed to watch profile: %w", err)
		}
	}

	if err := d.server.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	d.cron.Start()
	d.startTime = time.Now()
	d.running = true

	d.logger.Info().
		Str("addr", d.config.Server.Addr()).
		Str("model", d.config.Upstream.Model).
		Str("profileVersion", d.profiles.Current().Version).
		Msg("Relay daemon started")

	return nil
}

// Stop shuts everything down in reverse order.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.logger.Info().Msg("Stopping relay daemon")

	d.cron.Stop()

	if err := d.server.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Server shutdown failed")
	}
	d.profiles.Close()

	d.running = false
	d.logger.Info().Msg("Relay daemon stopped")

	return nil
}

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func (d *Daemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	d.logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	return d.Stop()
}

// Status reports the daemon's current state.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := d.registry.GetStats()
	status := Status{
		Running:           d.running,
		Sessions:          stats.Sessions,
		Subscribers:       stats.Subscribers,
		LegacySubscribers: stats.LegacySubscribers,
		ProfileVersion:    d.profiles.Current().Version,
	}
	if d.running {
		status.Uptime = time.Since(d.startTime)
	}
	return status
}

// housekeeping runs on the cron schedule: sweep sessions the per-session
// timers missed and log a stats line.
func (d *Daemon) housekeeping() {
	reaped := d.registry.SweepExpired()
	stats := d.registry.GetStats()

	event := d.logger.Debug()
	if reaped > 0 {
		event = d.logger.Info()
	}
	event.
		Int("reaped", reaped).
		Int("sessions", stats.Sessions).
		Int("subscribers", stats.Subscribers).
		Int("legacySubscribers", stats.LegacySubscribers).
		Msg("Housekeeping sweep")
}
