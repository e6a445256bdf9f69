package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mcpdeck/internal/api"
	"mcpdeck/internal/config"
	"mcpdeck/internal/supervisor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	done chan struct{}
	once sync.Once
}

func (p *fakeProcess) PID() int              { return 4242 }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) ExitErr() error        { return nil }
func (p *fakeProcess) Terminate() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
func (p *fakeProcess) Kill() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	launches int
}

func (l *fakeLauncher) Launch(ctx context.Context, cfg api.ServerConfig) (supervisor.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	return &fakeProcess{done: make(chan struct{})}, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

type probeFunc func(ctx context.Context, cfg api.ServerConfig) (string, error)

func (f probeFunc) Check(ctx context.Context, cfg api.ServerConfig) (string, error) {
	return f(ctx, cfg)
}

type fakeSampler struct{}

func (fakeSampler) Sample(pid int) (float64, float64, int, error) {
	return 10, 2, 3, nil
}

func newTestCore(t *testing.T) (*Core, *fakeLauncher) {
	t.Helper()

	launcher := &fakeLauncher{}
	up := probeFunc(func(ctx context.Context, cfg api.ServerConfig) (string, error) { return "", nil })

	cfg := config.DefaultConfig()
	cfg.Collector.SampleIntervalMs = 20
	cfg.Broadcast.HeartbeatIntervalMs = 50

	core := New(&cfg, t.TempDir(), Options{
		Supervisor: supervisor.Options{
			Launcher:       launcher,
			StartProbe:     up,
			HealthProbe:    up,
			HealthInterval: time.Hour,
			ProbeInterval:  time.Millisecond,
		},
		Sampler: fakeSampler{},
	})
	require.NoError(t, core.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		core.Shutdown(ctx)
	})
	return core, launcher
}

func createServer(t *testing.T, core *Core, name string, port int) *api.Server {
	t.Helper()
	srv, err := core.CreateServer(name, api.ServerConfig{
		Host: "localhost", Port: port, Command: "/usr/bin/fake-server",
	})
	require.NoError(t, err)
	return srv
}

func waitStatus(t *testing.T, core *Core, id string, status api.ServerStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		srv, err := core.GetServer(id)
		return err == nil && srv.Status == status
	}, 2*time.Second, 5*time.Millisecond, "server never reached %s", status)
}

func TestCreateStartObserveStopRoundTrip(t *testing.T) {
	core, _ := newTestCore(t)
	srv := createServer(t, core, "roundtrip", 9301)

	require.NoError(t, core.StartServer(srv.ID))
	waitStatus(t, core, srv.ID, api.StatusRunning)

	core.RecordRequest(srv.ID, 12*time.Millisecond, false)
	require.Eventually(t, func() bool {
		got, err := core.GetServer(srv.ID)
		return err == nil && got.Metrics != nil && got.Metrics.CPUUsagePct == 10
	}, 2*time.Second, 10*time.Millisecond, "collector never sampled")

	require.NoError(t, core.StopServer(srv.ID))
	waitStatus(t, core, srv.ID, api.StatusStopped)

	got, _ := core.GetServer(srv.ID)
	assert.Nil(t, got.Metrics)
}

func TestSubscriberSeesLifecycle(t *testing.T) {
	core, _ := newTestCore(t)
	srv := createServer(t, core, "watched", 9302)

	sess := core.Subscribe()
	defer core.Unsubscribe(sess)

	first := <-sess.Events()
	require.Equal(t, api.EventSnapshot, first.Type)
	require.Len(t, first.Servers, 1)
	assert.Equal(t, api.StatusStopped, first.Servers[0].Status)

	require.NoError(t, core.StartServer(srv.ID))

	var statuses []api.ServerStatus
	require.Eventually(t, func() bool {
		for {
			select {
			case e := <-sess.Events():
				if e.Type == api.EventStatusChanged && e.ServerID == srv.ID {
					statuses = append(statuses, e.Status)
				}
			default:
				return len(statuses) >= 2
			}
		}
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []api.ServerStatus{api.StatusStarting, api.StatusRunning}, statuses[:2])
}

func TestBulkStartIsolatesFailures(t *testing.T) {
	core, _ := newTestCore(t)
	good := createServer(t, core, "good", 9303)
	other := createServer(t, core, "other", 9304)

	results := core.BulkStart([]string{good.ID, "missing", other.ID})
	require.Len(t, results, 3)

	byID := map[string]api.OperationResult{}
	for _, res := range results {
		byID[res.ServerID] = res
	}
	assert.NoError(t, byID[good.ID].Err)
	assert.NoError(t, byID[other.ID].Err)
	assert.True(t, api.IsNotFound(byID["missing"].Err))
	assert.NotEmpty(t, byID["missing"].Error)

	waitStatus(t, core, good.ID, api.StatusRunning)
	waitStatus(t, core, other.ID, api.StatusRunning)
}

func TestBulkStopPerIDResults(t *testing.T) {
	core, _ := newTestCore(t)
	srv := createServer(t, core, "bulkstop", 9305)
	require.NoError(t, core.StartServer(srv.ID))
	waitStatus(t, core, srv.ID, api.StatusRunning)

	results := core.BulkStop([]string{srv.ID, "missing"})
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.True(t, api.IsNotFound(results[1].Err))
	waitStatus(t, core, srv.ID, api.StatusStopped)
}

func TestConcurrentStartsThroughCore(t *testing.T) {
	core, launcher := newTestCore(t)
	srv := createServer(t, core, "once", 9306)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, core.StartServer(srv.ID))
		}()
	}
	wg.Wait()
	waitStatus(t, core, srv.ID, api.StatusRunning)
	assert.Equal(t, 1, launcher.count())
}

func TestDeleteRunningServerConflicts(t *testing.T) {
	core, _ := newTestCore(t)
	srv := createServer(t, core, "keeper", 9307)

	require.NoError(t, core.StartServer(srv.ID))
	waitStatus(t, core, srv.ID, api.StatusRunning)

	err := core.DeleteServer(srv.ID)
	require.True(t, api.IsConflict(err))
	var conflict *api.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, srv.ID, conflict.ServerID)
}

func TestShutdownStopsFleet(t *testing.T) {
	launcher := &fakeLauncher{}
	up := probeFunc(func(ctx context.Context, cfg api.ServerConfig) (string, error) { return "", nil })

	cfg := config.DefaultConfig()
	core := New(&cfg, t.TempDir(), Options{
		Supervisor: supervisor.Options{
			Launcher:       launcher,
			StartProbe:     up,
			HealthProbe:    up,
			HealthInterval: time.Hour,
			ProbeInterval:  time.Millisecond,
		},
		Sampler: fakeSampler{},
	})
	require.NoError(t, core.Start(context.Background()))

	var ids []string
	for i := 0; i < 3; i++ {
		srv, err := core.CreateServer(fmt.Sprintf("fleet-%d", i), api.ServerConfig{
			Host: "localhost", Port: 9310 + i, Command: "/usr/bin/fake-server",
		})
		require.NoError(t, err)
		require.NoError(t, core.StartServer(srv.ID))
		ids = append(ids, srv.ID)
	}
	for _, id := range ids {
		waitStatus(t, core, id, api.StatusRunning)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, core.Shutdown(ctx))

	for _, id := range ids {
		got, err := core.GetServer(id)
		require.NoError(t, err)
		assert.Equal(t, api.StatusStopped, got.Status)
	}
}
