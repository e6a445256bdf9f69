package collector

import (
	"context"
	"sync"
	"time"

	"mcpdeck/internal/api"
	"mcpdeck/internal/config"
	"mcpdeck/internal/registry"
	"mcpdeck/pkg/logging"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessInfo answers runtime questions about managed servers. The
// supervisor implements it.
type ProcessInfo interface {
	// Uptime returns seconds since the server started, 0 when not running.
	Uptime(id string) int64

	// ProcessPID returns the OS pid of the server's process, 0 when not
	// running.
	ProcessPID(id string) int
}

// UsageSampler reads resource usage of one OS process. The production
// implementation uses gopsutil; tests substitute a fake.
type UsageSampler interface {
	Sample(pid int) (cpuPct, memPct float64, connections int, err error)
}

// Collector samples resource and request metrics for every running server
// at a fixed interval and publishes the samples. A server that stops
// between two rounds simply produces no further samples; the registry
// discards anything racing past the status change.
type Collector struct {
	registry  *registry.Registry
	procs     ProcessInfo
	sampler   UsageSampler
	sink      api.EventSink
	interval  time.Duration
	windowDur time.Duration

	mu      sync.Mutex
	windows map[string]*window
}

// New creates a Collector. A nil sampler selects the gopsutil-backed
// production sampler.
func New(reg *registry.Registry, procs ProcessInfo, sink api.EventSink, cfg config.CollectorConfig, sampler UsageSampler) *Collector {
	if sampler == nil {
		sampler = newGopsutilSampler()
	}
	return &Collector{
		registry:  reg,
		procs:     procs,
		sampler:   sampler,
		sink:      sink,
		interval:  time.Duration(cfg.SampleIntervalMs) * time.Millisecond,
		windowDur: time.Duration(cfg.LatencyWindowMs) * time.Millisecond,
		windows:   make(map[string]*window),
	}
}

// RecordRequest feeds one completed request into the server's rolling
// window. Observations arrive through the transport's observation
// endpoint, reported by whatever fronts the managed servers.
func (c *Collector) RecordRequest(serverID string, latency time.Duration, isError bool) {
	c.window(serverID).record(float64(latency)/float64(time.Millisecond), isError)
}

// Run samples until the context is cancelled.
func (c *Collector) Run(ctx context.Context) {
	logging.Info("Collector", "Sampling every %s", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sampleAll()
		}
	}
}

// sampleAll runs one sampling round: one goroutine per running server, all
// joined before the round ends so a slow process read never stacks rounds.
func (c *Collector) sampleAll() {
	running := c.registry.List(api.ServerFilter{Status: api.StatusRunning})

	var wg sync.WaitGroup
	for _, srv := range running {
		wg.Add(1)
		go func(srv *api.Server) {
			defer wg.Done()
			c.sampleOne(srv)
		}(srv)
	}
	wg.Wait()

	c.pruneWindows()
}

func (c *Collector) sampleOne(srv *api.Server) {
	pid := c.procs.ProcessPID(srv.ID)
	if pid == 0 {
		return
	}

	cpu, mem, conns, err := c.sampler.Sample(pid)
	if err != nil {
		logging.Debug("Collector", "Sampling %s (pid %d) failed: %v", srv.Name, pid, err)
		return
	}

	reqPerSec, errRate, p50, p95, p99 := c.window(srv.ID).stats(time.Now())
	metrics := &api.Metrics{
		CPUUsagePct:    cpu,
		MemUsagePct:    mem,
		Connections:    conns,
		RequestsPerSec: reqPerSec,
		ErrorRate:      errRate,
		LatencyP50Ms:   p50,
		LatencyP95Ms:   p95,
		LatencyP99Ms:   p99,
	}

	c.registry.SetMetrics(srv.ID, metrics, c.procs.Uptime(srv.ID))

	// Publish only what the registry accepted; the server may have left
	// running while we sampled.
	got, err := c.registry.Get(srv.ID)
	if err != nil || got.Status != api.StatusRunning || got.Metrics == nil {
		return
	}
	c.sink.Publish(api.StatusEvent{
		Type:      api.EventMetricsUpdated,
		ServerID:  srv.ID,
		Metrics:   got.Metrics,
		Timestamp: time.Now(),
	})
}

func (c *Collector) window(serverID string) *window {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, exists := c.windows[serverID]
	if !exists {
		w = newWindow(c.windowDur)
		c.windows[serverID] = w
	}
	return w
}

// pruneWindows drops windows of servers that no longer exist.
func (c *Collector) pruneWindows() {
	known := make(map[string]struct{})
	for _, srv := range c.registry.Snapshot() {
		known[srv.ID] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.windows {
		if _, exists := known[id]; !exists {
			delete(c.windows, id)
		}
	}
}

// gopsutilSampler reads process usage through gopsutil. Handles are cached
// per pid so CPU percentages are computed against the previous read.
type gopsutilSampler struct {
	mu      sync.Mutex
	handles map[int]*process.Process
}

func newGopsutilSampler() *gopsutilSampler {
	return &gopsutilSampler{handles: make(map[int]*process.Process)}
}

func (g *gopsutilSampler) Sample(pid int) (float64, float64, int, error) {
	g.mu.Lock()
	p, exists := g.handles[pid]
	if !exists {
		var err error
		p, err = process.NewProcess(int32(pid))
		if err != nil {
			g.mu.Unlock()
			return 0, 0, 0, err
		}
		g.handles[pid] = p
	}
	g.mu.Unlock()

	cpu, err := p.Percent(0)
	if err != nil {
		g.mu.Lock()
		delete(g.handles, pid)
		g.mu.Unlock()
		return 0, 0, 0, err
	}
	mem, err := p.MemoryPercent()
	if err != nil {
		return 0, 0, 0, err
	}

	// Connection enumeration is unsupported on some platforms; report 0
	// rather than failing the whole sample.
	established := 0
	if conns, err := p.Connections(); err == nil {
		for _, conn := range conns {
			if conn.Status == "ESTABLISHED" {
				established++
			}
		}
	}

	return cpu, float64(mem), established, nil
}
