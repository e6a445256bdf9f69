package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mcpdeck/internal/api"
	"mcpdeck/internal/config"
	"mcpdeck/internal/registry"
	"mcpdeck/pkg/logging"

	"golang.org/x/sync/singleflight"
)

const (
	// startProbeInterval is the delay between readiness probe attempts
	// while a server is starting.
	startProbeInterval = 250 * time.Millisecond

	// healthInterval is the period of the running-state health probe.
	healthInterval = 30 * time.Second

	// healthFailureLimit is the number of consecutive probe failures after
	// which a running server is declared unhealthy.
	healthFailureLimit = 3

	// initialRestartBackoff and maxRestartBackoff bound the exponential
	// delay between automatic restart attempts after a crash.
	initialRestartBackoff = 30 * time.Second
	maxRestartBackoff     = 30 * time.Minute
	restartBackoffFactor  = 2
)

// Options customizes process launching and probing. Zero fields get
// production defaults; tests substitute fakes here.
type Options struct {
	Launcher       Launcher
	StartProbe     Probe
	HealthProbe    Probe
	HealthInterval time.Duration
	ProbeInterval  time.Duration
}

// Supervisor drives server lifecycle: it spawns and terminates processes,
// confirms readiness, watches for crashes and enforces the state machine
// stopped -> starting -> running -> stopping -> stopped with error as the
// universal failure state.
//
// Lifecycle operations return synchronously once the transition is accepted
// or rejected; the work itself (spawn, probe, terminate) runs in a
// per-server goroutine serialized by an operation mutex. Outcomes surface
// through registry status updates and the event sink.
type Supervisor struct {
	registry    *registry.Registry
	launcher    Launcher
	startProbe  Probe
	healthProbe Probe
	sink        api.EventSink
	cfg         config.SupervisorConfig

	healthInterval time.Duration
	probeInterval  time.Duration

	mu        sync.Mutex
	instances map[string]*instance
	closed    bool

	// startGroup collapses concurrent start requests for the same server
	// into one attempt sharing one outcome.
	startGroup singleflight.Group
}

// instance holds the supervisor's per-server runtime state. Fields are
// guarded by mu; opMu serializes the asynchronous bodies of lifecycle
// operations so a stop never interleaves with a start for the same server.
type instance struct {
	id string

	opMu sync.Mutex

	mu        sync.Mutex
	proc      Process
	startedAt time.Time

	// gen increments on every accepted start or stop. Goroutines spawned
	// for an older generation observe the mismatch and stand down.
	gen uint64

	// abortCh is closed when a stop arrives while the server is starting.
	abortCh chan struct{}

	// healthStop terminates the running-state health loop.
	healthStop chan struct{}

	// pendingStart marks a restart: the stop body consumes it and starts
	// the server again without releasing the operation slot in between.
	pendingStart bool

	// pendingConfig is a structural configuration change queued while the
	// server runs, applied at the next start.
	pendingConfig *api.ServerConfig

	restartCount int
	backoff      time.Duration

	// restartTimer is the armed automatic restart after a failure. An
	// explicit stop in error state disarms it.
	restartTimer *time.Timer
}

// New creates a Supervisor over the given registry, publishing lifecycle
// events into sink. The sink must not block.
func New(reg *registry.Registry, sink api.EventSink, cfg config.SupervisorConfig, opts Options) *Supervisor {
	s := &Supervisor{
		registry:       reg,
		launcher:       opts.Launcher,
		startProbe:     opts.StartProbe,
		healthProbe:    opts.HealthProbe,
		sink:           sink,
		cfg:            cfg,
		healthInterval: opts.HealthInterval,
		probeInterval:  opts.ProbeInterval,
		instances:      make(map[string]*instance),
	}
	if s.launcher == nil {
		s.launcher = ExecLauncher{}
	}
	if s.startProbe == nil {
		s.startProbe = NewTCPProbe()
	}
	if s.healthProbe == nil {
		s.healthProbe = NewMCPProbe()
	}
	if s.healthInterval <= 0 {
		s.healthInterval = healthInterval
	}
	if s.probeInterval <= 0 {
		s.probeInterval = startProbeInterval
	}
	return s
}

// instance returns the runtime state for id, creating it on first use.
func (s *Supervisor) instance(id string) *instance {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, exists := s.instances[id]
	if !exists {
		inst = &instance{id: id}
		s.instances[id] = inst
	}
	return inst
}

// Start launches the server with the given id. Starting an already running
// or starting server is a no-op; concurrent starts for the same id share
// one attempt. The call returns once the transition to starting is
// accepted; spawn and readiness outcomes surface as status events.
func (s *Supervisor) Start(id string) error {
	if _, err := s.registry.Get(id); err != nil {
		return err
	}
	_, err, _ := s.startGroup.Do(id, func() (any, error) {
		return nil, s.startOnce(id, true)
	})
	return err
}

// startOnce validates and initiates one start attempt. Manual starts reset
// the automatic restart budget; automatic ones keep consuming it.
func (s *Supervisor) startOnce(id string, manual bool) error {
	inst := s.instance(id)
	inst.mu.Lock()

	srv, err := s.registry.Get(id)
	if err != nil {
		inst.mu.Unlock()
		return err
	}

	switch srv.Status {
	case api.StatusRunning, api.StatusStarting:
		inst.mu.Unlock()
		return nil
	case api.StatusStopping:
		inst.mu.Unlock()
		return api.NewConflictError(id, "server is stopping")
	}

	if inst.pendingConfig != nil {
		cfg := *inst.pendingConfig
		inst.pendingConfig = nil
		updated, err := s.registry.ApplyConfig(id, cfg)
		if err != nil {
			inst.mu.Unlock()
			return err
		}
		srv = updated
		logging.Info("Supervisor", "Applied queued configuration for %s", srv.Name)
	}

	// Re-check the running-port invariant at start time; another server may
	// have claimed the pair since this one was configured.
	if err := s.registry.ValidateConfigUpdate(id, srv.Config); err != nil {
		inst.mu.Unlock()
		return err
	}

	if manual {
		inst.restartCount = 0
		inst.backoff = 0
	}
	inst.gen++
	gen := inst.gen
	inst.abortCh = make(chan struct{})
	s.setStatusLocked(inst, api.StatusStarting, "")
	abort := inst.abortCh
	inst.mu.Unlock()

	go s.runStart(inst, gen, srv.Config, abort)
	return nil
}

// runStart spawns the process and waits for readiness, abort, early exit
// or timeout.
func (s *Supervisor) runStart(inst *instance, gen uint64, cfg api.ServerConfig, abort <-chan struct{}) {
	inst.opMu.Lock()
	defer inst.opMu.Unlock()

	timeout := s.operationTimeout(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	proc, err := s.launcher.Launch(ctx, cfg)
	if err != nil {
		s.failStart(inst, gen, cfg, fmt.Sprintf("spawn failed: %v", err))
		return
	}

	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-abort:
			proc.Kill()
			s.abortStart(inst, gen)
			return

		case <-proc.Done():
			s.failStart(inst, gen, cfg, fmt.Sprintf("process exited during startup: %v", proc.ExitErr()))
			return

		case <-ctx.Done():
			proc.Kill()
			s.failStart(inst, gen, cfg, fmt.Sprintf("start timed out after %s", timeout))
			return

		case <-ticker.C:
			if _, err := s.startProbe.Check(ctx, cfg); err == nil {
				s.confirmRunning(inst, gen, proc, cfg, abort)
				return
			}
		}
	}
}

// confirmRunning promotes a starting server to running unless a stop won
// the race against the successful probe.
func (s *Supervisor) confirmRunning(inst *instance, gen uint64, proc Process, cfg api.ServerConfig, abort <-chan struct{}) {
	inst.mu.Lock()

	if inst.gen != gen {
		inst.mu.Unlock()
		proc.Kill()
		return
	}
	select {
	case <-abort:
		proc.Kill()
		s.setStatusLocked(inst, api.StatusStopping, "")
		s.setStatusLocked(inst, api.StatusStopped, "")
		inst.mu.Unlock()
		return
	default:
	}

	inst.proc = proc
	inst.startedAt = time.Now()
	inst.healthStop = make(chan struct{})
	healthStop := inst.healthStop
	s.setStatusLocked(inst, api.StatusRunning, "")
	inst.mu.Unlock()

	logging.Info("Supervisor", "Server %s is running (pid %d)", inst.id, proc.PID())
	go s.watchCrash(inst, gen, proc, cfg)
	go s.healthLoop(inst, gen, cfg, healthStop)
}

// failStart records a failed start attempt as error status.
func (s *Supervisor) failStart(inst *instance, gen uint64, cfg api.ServerConfig, diag string) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.gen != gen {
		return
	}
	inst.proc = nil
	s.setStatusLocked(inst, api.StatusError, diag)
	logging.Warn("Supervisor", "Start of %s failed: %s", inst.id, diag)
	s.scheduleAutoRestartLocked(inst, cfg)
}

// abortStart completes a stop that arrived while the server was starting.
func (s *Supervisor) abortStart(inst *instance, gen uint64) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.gen != gen {
		return
	}
	inst.proc = nil
	inst.pendingStart = false
	s.setStatusLocked(inst, api.StatusStopping, "")
	s.setStatusLocked(inst, api.StatusStopped, "")
}

// Stop terminates the server with the given id. Stopping a stopped or
// already stopping server is a no-op; a server still starting is aborted.
// The call returns once the transition is accepted; termination runs
// asynchronously with the configured timeout before a forced kill.
func (s *Supervisor) Stop(id string) error {
	srv, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	inst := s.instance(id)

	inst.mu.Lock()
	defer inst.mu.Unlock()

	// Status may have moved since the unsynchronized read above.
	if srv, err = s.registry.Get(id); err != nil {
		return err
	}

	switch srv.Status {
	case api.StatusStopped, api.StatusStopping:
		return nil

	case api.StatusError:
		// Nothing to terminate, but an armed automatic restart must not
		// resurrect a server the operator explicitly stopped. The error
		// diagnostic stays visible until the next start.
		inst.gen++
		if inst.restartTimer != nil {
			inst.restartTimer.Stop()
			inst.restartTimer = nil
		}
		return nil

	case api.StatusStarting:
		if inst.abortCh != nil {
			close(inst.abortCh)
			inst.abortCh = nil
		}
		return nil

	default:
		s.stopRunningLocked(inst, srv)
		return nil
	}
}

// stopRunningLocked initiates termination of a running server. Callers
// must hold inst.mu.
func (s *Supervisor) stopRunningLocked(inst *instance, srv *api.Server) {
	proc := inst.proc
	inst.proc = nil
	inst.gen++
	gen := inst.gen
	if inst.healthStop != nil {
		close(inst.healthStop)
		inst.healthStop = nil
	}
	s.setStatusLocked(inst, api.StatusStopping, "")

	go s.runStop(inst, gen, proc, s.operationTimeout(srv.Config))
}

// runStop terminates the process gracefully, escalating to a kill when the
// timeout elapses, then records stopped and chains a queued restart.
func (s *Supervisor) runStop(inst *instance, gen uint64, proc Process, timeout time.Duration) {
	inst.opMu.Lock()

	diag := ""
	if proc != nil {
		if err := proc.Terminate(); err != nil {
			proc.Kill()
		}
		select {
		case <-proc.Done():
		case <-time.After(timeout):
			proc.Kill()
			<-proc.Done()
			diag = fmt.Sprintf("forced kill after %s stop timeout", timeout)
			logging.Warn("Supervisor", "Server %s did not stop in %s, killed", inst.id, timeout)
		}
	}

	inst.mu.Lock()
	if inst.gen != gen {
		inst.mu.Unlock()
		inst.opMu.Unlock()
		return
	}
	s.setStatusLocked(inst, api.StatusStopped, diag)
	pending := inst.pendingStart
	inst.pendingStart = false
	inst.mu.Unlock()
	inst.opMu.Unlock()

	if pending {
		if err := s.startOnce(inst.id, true); err != nil {
			logging.Warn("Supervisor", "Queued restart of %s failed: %v", inst.id, err)
		}
	}
}

// Restart stops the server and starts it again as one atomic sequence: no
// external start can claim the gap between the two phases. A stopped or
// errored server is simply started.
func (s *Supervisor) Restart(id string) error {
	srv, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	inst := s.instance(id)

	inst.mu.Lock()
	if srv, err = s.registry.Get(id); err != nil {
		inst.mu.Unlock()
		return err
	}

	switch srv.Status {
	case api.StatusStopped, api.StatusError:
		inst.mu.Unlock()
		return s.Start(id)

	case api.StatusStarting, api.StatusStopping:
		inst.mu.Unlock()
		return api.NewConflictError(id, "operation in progress (%s)", srv.Status)

	default:
		inst.pendingStart = true
		s.stopRunningLocked(inst, srv)
		inst.mu.Unlock()
		return nil
	}
}

// Configure validates and applies a configuration update. Structural fields
// (host, port, command, args, env) of a running server are queued and take
// effect at the next start; everything else applies immediately. Servers
// mid-transition reject updates.
func (s *Supervisor) Configure(id string, cfg api.ServerConfig) (*api.Server, error) {
	srv, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	inst := s.instance(id)

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if srv, err = s.registry.Get(id); err != nil {
		return nil, err
	}
	if err := s.registry.ValidateConfigUpdate(id, cfg); err != nil {
		return nil, err
	}

	switch srv.Status {
	case api.StatusStarting, api.StatusStopping:
		return nil, api.NewConflictError(id, "operation in progress (%s)", srv.Status)

	case api.StatusRunning:
		if srv.Config.StructurallyEquals(cfg) {
			return s.registry.ApplyConfig(id, cfg)
		}
		queued := cfg
		inst.pendingConfig = &queued
		merged := srv.Config
		merged.AutoStart = cfg.AutoStart
		merged.MaxConnections = cfg.MaxConnections
		merged.TimeoutMs = cfg.TimeoutMs
		merged.Description = cfg.Description
		logging.Info("Supervisor", "Queued structural config change for %s until next start", srv.Name)
		return s.registry.ApplyConfig(id, merged)

	default:
		inst.pendingConfig = nil
		return s.registry.ApplyConfig(id, cfg)
	}
}

// Delete removes a server definition and its runtime state. Only permitted
// while the server is stopped.
func (s *Supervisor) Delete(id string) error {
	inst := s.instance(id)

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if err := s.registry.Delete(id); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.instances, id)
	s.mu.Unlock()

	inst.gen++
	s.sink.Publish(api.StatusEvent{
		Type:      api.EventServerRemoved,
		ServerID:  id,
		Timestamp: time.Now(),
	})
	return nil
}

// AutoStartAll starts every server with autoStart enabled. Used at boot.
func (s *Supervisor) AutoStartAll() {
	for _, srv := range s.registry.Snapshot() {
		if !srv.Config.AutoStart {
			continue
		}
		if err := s.Start(srv.ID); err != nil {
			logging.Warn("Supervisor", "Auto-start of %s failed: %v", srv.Name, err)
		}
	}
}

// StopAll stops every non-stopped server and waits for the fleet to settle
// or the context to expire. Used at shutdown.
func (s *Supervisor) StopAll(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	for _, srv := range s.registry.Snapshot() {
		if srv.Status == api.StatusStopped || srv.Status == api.StatusError {
			continue
		}
		if err := s.Stop(srv.ID); err != nil {
			logging.Warn("Supervisor", "Stop of %s failed: %v", srv.Name, err)
		}
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		settled := true
		for _, srv := range s.registry.Snapshot() {
			if srv.Status != api.StatusStopped && srv.Status != api.StatusError {
				settled = false
				break
			}
		}
		if settled {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Uptime returns the seconds the server has been running, or 0 when it is
// not running.
func (s *Supervisor) Uptime(id string) int64 {
	inst := s.instance(id)
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.proc == nil || inst.startedAt.IsZero() {
		return 0
	}
	return int64(time.Since(inst.startedAt).Seconds())
}

// ProcessPID returns the OS pid of the server's process, or 0 when it is
// not running. The collector samples resource usage through this.
func (s *Supervisor) ProcessPID(id string) int {
	inst := s.instance(id)
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.proc == nil {
		return 0
	}
	return inst.proc.PID()
}

// watchCrash observes a running process until it exits. An exit while the
// generation is still current means a crash: the server moves to error and
// an automatic restart is scheduled when configured.
func (s *Supervisor) watchCrash(inst *instance, gen uint64, proc Process, cfg api.ServerConfig) {
	<-proc.Done()

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.gen != gen {
		return
	}
	inst.proc = nil
	if inst.healthStop != nil {
		close(inst.healthStop)
		inst.healthStop = nil
	}

	diag := "process exited unexpectedly"
	if err := proc.ExitErr(); err != nil {
		diag = fmt.Sprintf("process exited unexpectedly: %v", err)
	}
	s.setStatusLocked(inst, api.StatusError, diag)
	logging.Warn("Supervisor", "Server %s crashed: %s", inst.id, diag)
	s.scheduleAutoRestartLocked(inst, cfg)
}

// healthLoop probes a running server periodically. The first success
// records the server-reported version; healthFailureLimit consecutive
// failures demote the server to error.
func (s *Supervisor) healthLoop(inst *instance, gen uint64, cfg api.ServerConfig, stop <-chan struct{}) {
	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()

	failures := 0
	versionRecorded := false
	var lastErr error

	for {
		select {
		case <-stop:
			return

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			version, err := s.healthProbe.Check(ctx, cfg)
			cancel()

			if err == nil {
				failures = 0
				if !versionRecorded && version != "" {
					s.registry.SetVersion(inst.id, version)
					versionRecorded = true
				}
				continue
			}

			failures++
			lastErr = err
			if failures < healthFailureLimit {
				continue
			}

			inst.mu.Lock()
			if inst.gen != gen {
				inst.mu.Unlock()
				return
			}
			proc := inst.proc
			inst.proc = nil
			inst.gen++
			inst.healthStop = nil
			s.setStatusLocked(inst, api.StatusError, fmt.Sprintf("health checks failing: %v", lastErr))
			s.scheduleAutoRestartLocked(inst, cfg)
			inst.mu.Unlock()

			logging.Warn("Supervisor", "Server %s failed %d consecutive health checks, terminating", inst.id, failures)
			if proc != nil {
				proc.Kill()
			}
			return
		}
	}
}

// scheduleAutoRestartLocked arms a delayed restart after a failure, with
// exponential backoff and a hard attempt cap. Callers must hold inst.mu.
func (s *Supervisor) scheduleAutoRestartLocked(inst *instance, cfg api.ServerConfig) {
	if !cfg.AutoStart {
		return
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	if inst.restartCount >= s.cfg.MaxAutoRestarts {
		logging.Warn("Supervisor", "Server %s exhausted %d automatic restarts, leaving in error", inst.id, inst.restartCount)
		return
	}

	if inst.backoff <= 0 {
		inst.backoff = initialRestartBackoff
	} else {
		inst.backoff *= restartBackoffFactor
		if inst.backoff > maxRestartBackoff {
			inst.backoff = maxRestartBackoff
		}
	}
	inst.restartCount++
	delay := inst.backoff
	attempt := inst.restartCount

	gen := inst.gen
	logging.Info("Supervisor", "Restarting %s in %s (attempt %d/%d)", inst.id, delay, attempt, s.cfg.MaxAutoRestarts)
	inst.restartTimer = time.AfterFunc(delay, func() {
		inst.mu.Lock()
		stale := inst.gen != gen
		inst.restartTimer = nil
		inst.mu.Unlock()
		if stale {
			return
		}
		srv, err := s.registry.Get(inst.id)
		if err != nil || srv.Status != api.StatusError {
			return
		}
		if err := s.startOnce(inst.id, false); err != nil {
			logging.Warn("Supervisor", "Automatic restart of %s failed: %v", inst.id, err)
		}
	})
}

// setStatusLocked records a transition in the registry and publishes the
// matching event. Holding inst.mu across both keeps events for one server
// in transition order; the sink never blocks, so the critical section stays
// short. Callers must hold inst.mu.
func (s *Supervisor) setStatusLocked(inst *instance, status api.ServerStatus, detail string) {
	var uptime int64
	if status == api.StatusRunning && !inst.startedAt.IsZero() {
		uptime = int64(time.Since(inst.startedAt).Seconds())
	}
	s.registry.SetStatus(inst.id, status, detail, uptime)
	s.sink.Publish(api.StatusEvent{
		Type:       api.EventStatusChanged,
		ServerID:   inst.id,
		Status:     status,
		Diagnostic: detail,
		Timestamp:  time.Now(),
	})
}

// operationTimeout resolves the per-server timeout, falling back to the
// supervisor default.
func (s *Supervisor) operationTimeout(cfg api.ServerConfig) time.Duration {
	if cfg.TimeoutMs > 0 {
		return time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	return time.Duration(s.cfg.DefaultTimeoutMs) * time.Millisecond
}
