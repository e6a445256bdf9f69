package app

import (
	"context"
	"path/filepath"
	"time"

	"mcpdeck/internal/api"
	"mcpdeck/internal/broadcast"
	"mcpdeck/internal/collector"
	"mcpdeck/internal/config"
	"mcpdeck/internal/registry"
	"mcpdeck/internal/supervisor"
	"mcpdeck/pkg/logging"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"
)

// Options injects alternative process control and sampling implementations.
// Zero value selects production behavior.
type Options struct {
	Supervisor supervisor.Options
	Sampler    collector.UsageSampler
}

// Core wires registry, supervisor, collector and broadcaster into the
// command surface the transports expose. It owns component lifecycles:
// Start brings the background loops up, Shutdown drains them.
type Core struct {
	cfg         *config.MainConfig
	registry    *registry.Registry
	watcher     *registry.Watcher
	supervisor  *supervisor.Supervisor
	collector   *collector.Collector
	broadcaster *broadcast.Broadcaster

	loopCancel context.CancelFunc
}

// New builds a Core persisting into configDir.
func New(cfg *config.MainConfig, configDir string, opts Options) *Core {
	storage := config.NewStorage(configDir)
	reg := registry.New(storage)
	broadcaster := broadcast.New(reg.Snapshot, cfg.Broadcast)
	sup := supervisor.New(reg, broadcaster, cfg.Supervisor, opts.Supervisor)
	coll := collector.New(reg, sup, broadcaster, cfg.Collector, opts.Sampler)

	return &Core{
		cfg:         cfg,
		registry:    reg,
		watcher:     registry.NewWatcher(reg, filepath.Join(configDir, "servers"), broadcaster),
		supervisor:  sup,
		collector:   coll,
		broadcaster: broadcaster,
	}
}

// Start loads persisted definitions, launches the background loops and
// auto-starts servers configured for it. Readiness is signalled to systemd
// when running under it.
func (c *Core) Start(ctx context.Context) error {
	if err := c.registry.LoadAll(); err != nil {
		return err
	}
	if err := c.watcher.Start(); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.loopCancel = cancel
	go c.broadcaster.Run(loopCtx)
	go c.collector.Run(loopCtx)

	c.supervisor.AutoStartAll()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logging.Warn("App", "sd_notify failed: %v", err)
	} else if sent {
		logging.Debug("App", "Notified systemd of readiness")
	}

	logging.Info("App", "Core started")
	return nil
}

// Shutdown stops all managed servers and drains the background loops.
func (c *Core) Shutdown(ctx context.Context) error {
	daemon.SdNotify(false, daemon.SdNotifyStopping)

	err := c.supervisor.StopAll(ctx)
	c.watcher.Stop()
	if c.loopCancel != nil {
		c.loopCancel()
	}
	logging.Info("App", "Core stopped")
	return err
}

// CreateServer registers a new server definition.
func (c *Core) CreateServer(name string, cfg api.ServerConfig) (*api.Server, error) {
	srv, err := c.registry.Create(name, cfg)
	if err != nil {
		return nil, err
	}
	c.broadcaster.Publish(api.StatusEvent{
		Type:      api.EventServerCreated,
		ServerID:  srv.ID,
		Status:    srv.Status,
		Timestamp: time.Now(),
	})
	return srv, nil
}

// ConfigureServer applies a configuration update with the supervisor's
// structural-change queueing semantics.
func (c *Core) ConfigureServer(id string, cfg api.ServerConfig) (*api.Server, error) {
	return c.supervisor.Configure(id, cfg)
}

// DeleteServer removes a stopped server.
func (c *Core) DeleteServer(id string) error {
	return c.supervisor.Delete(id)
}

// StartServer starts one server.
func (c *Core) StartServer(id string) error {
	return c.supervisor.Start(id)
}

// StopServer stops one server.
func (c *Core) StopServer(id string) error {
	return c.supervisor.Stop(id)
}

// RestartServer restarts one server atomically.
func (c *Core) RestartServer(id string) error {
	return c.supervisor.Restart(id)
}

// GetServer returns one server by id.
func (c *Core) GetServer(id string) (*api.Server, error) {
	return c.registry.Get(id)
}

// GetServerByName resolves a display name.
func (c *Core) GetServerByName(name string) (*api.Server, error) {
	return c.registry.GetByName(name)
}

// ListServers returns servers matching the filter.
func (c *Core) ListServers(filter api.ServerFilter) []*api.Server {
	return c.registry.List(filter)
}

// BulkStart starts many servers concurrently. Every id gets its own
// result; one failure never aborts the rest.
func (c *Core) BulkStart(ids []string) []api.OperationResult {
	return c.bulk(ids, c.supervisor.Start)
}

// BulkStop stops many servers concurrently with per-id results.
func (c *Core) BulkStop(ids []string) []api.OperationResult {
	return c.bulk(ids, c.supervisor.Stop)
}

func (c *Core) bulk(ids []string, op func(string) error) []api.OperationResult {
	results := make([]api.OperationResult, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			results[i] = api.NewOperationResult(id, op(id))
			return nil
		})
	}
	g.Wait()
	return results
}

// Subscribe opens a real-time session. The snapshot is already queued when
// Subscribe returns.
func (c *Core) Subscribe() *broadcast.Session {
	return c.broadcaster.Subscribe()
}

// Unsubscribe closes a session.
func (c *Core) Unsubscribe(sess *broadcast.Session) {
	c.broadcaster.Unsubscribe(sess)
}

// RecordRequest feeds a completed request observation into the metrics
// window of a server.
func (c *Core) RecordRequest(serverID string, latency time.Duration, isError bool) {
	c.collector.RecordRequest(serverID, latency, isError)
}
