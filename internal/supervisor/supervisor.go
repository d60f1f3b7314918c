package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autofc2/internal/events"
	"autofc2/internal/fc2log"
	"autofc2/internal/fnametemplate"
	"autofc2/internal/metrics"
	"autofc2/internal/notify"
	"autofc2/internal/recorder"
	"autofc2/internal/transport"

	"github.com/robfig/cron/v3"
)

// reconcileSchedule matches AutoFC2's 1 second reconciliation cadence
// (reload config, debounce-check every registered channel).
const reconcileSchedule = "@every 1s"

// Supervisor runs many recorder.Session instances side by side, one per
// configured channel, reconciling the running set against a hot-reloaded
// JSON config on a fixed tick. Grounded on autofc2.py's AutoFC2 class,
// with the tick itself driven by the teacher's updater.Updater
// cron-scheduled reconciliation.
type Supervisor struct {
	loader    *ConfigLoader
	registry  *registry
	transport *transport.Client
	metrics   *metrics.Registry
	logger    *fc2log.DefaultLogger

	mu  sync.Mutex
	cfg *FileConfig

	loadedCookiesFile string
}

// New constructs a supervisor that loads its config from configPath.
func New(configPath string, t *transport.Client, logger *fc2log.DefaultLogger) (*Supervisor, error) {
	reg, err := newRegistry()
	if err != nil {
		return nil, err
	}
	return &Supervisor{
		loader:    NewConfigLoader(configPath),
		registry:  reg,
		transport: t,
		metrics:   metrics.NewRegistry(),
		logger:    logger,
	}, nil
}

// Run loads the config once (fatal on failure, matching AutoFC2.get_config
// on first boot), then reconciles the running channel set against it on a
// 1 second cron tick until ctx is cancelled, draining every outstanding
// session before returning.
func (s *Supervisor) Run(ctx context.Context) error {
	cfg, err := s.loader.Load()
	if err != nil {
		return fmt.Errorf("supervisor: initial config load: %w", err)
	}
	s.setConfig(cfg)
	s.applyLogLevel(cfg)
	s.applyTransportConfig(cfg)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		metrics.Serve(ctx, cfg.AutoFC2.Metrics, s.metrics, s.logger)
	}()

	c := cron.New()
	if _, err := c.AddFunc(reconcileSchedule, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("supervisor: scheduling reconcile tick: %w", err)
	}
	c.Start()

	<-ctx.Done()
	c.Stop()

	s.drainAll()
	wg.Wait()
	return ctx.Err()
}

func (s *Supervisor) setConfig(cfg *FileConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Supervisor) config() *FileConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Supervisor) applyLogLevel(cfg *FileConfig) {
	if cfg.AutoFC2.LogLevel == "" {
		return
	}
	if lvl, ok := fc2log.Levels[cfg.AutoFC2.LogLevel]; ok {
		s.logger.SetLevel(lvl)
	}
}

// applyTransportConfig applies the supervisor-wide transport settings
// carried on default_params to the one shared transport.Client every
// channel's session uses, matching spec §4.A's single-shared-jar model:
// autofc2.py loads cookies_file for its one shared aiohttp session, not
// per channel. trust_env_proxy is re-applied every tick since toggling
// it is cheap; cookies_file is only reloaded when its path changes.
func (s *Supervisor) applyTransportConfig(cfg *FileConfig) {
	if cfg.DefaultParams.TrustEnvProxy != nil {
		s.transport.SetTrustEnvProxy(*cfg.DefaultParams.TrustEnvProxy)
	}

	if cfg.DefaultParams.CookiesFile == nil || *cfg.DefaultParams.CookiesFile == "" {
		return
	}
	path := *cfg.DefaultParams.CookiesFile
	if path == s.loadedCookiesFile {
		return
	}
	if err := s.transport.LoadCookiesFile(path); err != nil {
		s.logger.Errorf("loading cookies file %s: %v", path, err)
		return
	}
	s.loadedCookiesFile = path
}

// tick reloads the config, tolerating transient read/parse failures, then
// reconciles the registry: new channel IDs are started, removed ones are
// cancelled, and channels whose last session ended are restarted once
// their debounce window has elapsed.
func (s *Supervisor) tick(ctx context.Context) {
	cfg, err := s.loader.Load()
	if err != nil {
		s.logger.Errorf("reloading config: %v", err)
		return
	}
	s.setConfig(cfg)
	s.applyLogLevel(cfg)
	s.applyTransportConfig(cfg)

	wanted := make(map[string]bool, len(cfg.Channels))
	for channelID := range cfg.Channels {
		wanted[channelID] = true
		s.ensureRunning(ctx, channelID, cfg)
	}

	for _, e := range s.registry.all() {
		if !wanted[e.ChannelID] {
			s.logger.Logf("channel %s removed from config, stopping", e.ChannelID)
			e.Cancel()
			s.registry.delete(e.ChannelID)
		}
	}
}

func (s *Supervisor) debounceFor(cfg *FileConfig) time.Duration {
	if cfg.AutoFC2.DebounceTime <= 0 {
		return 0
	}
	return time.Duration(cfg.AutoFC2.DebounceTime * float64(time.Second))
}

// ensureRunning starts channelID's session if it has never run, or
// restarts it once its previous attempt has completed and the debounce
// window since its last start has elapsed.
func (s *Supervisor) ensureRunning(ctx context.Context, channelID string, cfg *FileConfig) {
	existing, ok := s.registry.get(channelID)
	if ok && !existing.isDone() {
		return
	}
	if ok && existing.isDone() {
		if time.Since(existing.LastStartTime) < s.debounceFor(cfg) {
			return
		}
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	entry := &channelEntry{
		ChannelID:     channelID,
		Cancel:        cancel,
		Done:          make(chan struct{}),
		LastStartTime: time.Now(),
	}
	s.registry.upsert(entry)
	s.metrics.Reset(channelID)

	params := cfg.ChannelParams(channelID)
	sess := recorder.New(s.transport, channelID, params, s.logger, s.eventHandler(cfg))

	s.logger.Logf("starting channel %s", channelID)
	go func() {
		defer close(entry.Done)
		if err := sess.Run(sessionCtx); err != nil {
			s.logger.Errorf("channel %s: %v", channelID, err)
		}
	}()
}

// eventHandler returns a events.Handler bound to cfg's notification
// targets, updating the shared metrics registry on every event and
// dispatching notifications when a session discovers its HLS URL.
func (s *Supervisor) eventHandler(cfg *FileConfig) events.Handler {
	return func(ev events.Event) {
		s.metrics.Update(ev)

		if ev.Type != events.GotHLSURL {
			return
		}
		data, ok := ev.Data.(events.HLSURLData)
		if !ok || len(cfg.Notifications) == 0 {
			return
		}

		fields := fnametemplate.NewFields(time.Now())
		fields.ChannelID = data.ChannelID
		fields.ChannelName = data.ChannelName
		fields.Title = data.Title

		for _, target := range cfg.Notifications {
			target := target
			go func() {
				if err := notify.Dispatch(context.Background(), target, fields); err != nil {
					s.logger.Warnf("notification to %s failed: %v", target.URL, err)
				}
			}()
		}
	}
}

// drainAll cancels every still-running session and waits for its Done
// channel to close.
func (s *Supervisor) drainAll() {
	for _, e := range s.registry.all() {
		e.Cancel()
	}
	for _, e := range s.registry.all() {
		<-e.Done
	}
}
