package collector

import (
	"errors"
	"sync"
	"testing"
	"time"

	"mcpdeck/internal/api"
	"mcpdeck/internal/config"
	"mcpdeck/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcs struct {
	pids    map[string]int
	uptimes map[string]int64
}

func (f *fakeProcs) Uptime(id string) int64 { return f.uptimes[id] }
func (f *fakeProcs) ProcessPID(id string) int {
	return f.pids[id]
}

type fakeSampler struct {
	cpu, mem float64
	conns    int
	err      error
}

func (f *fakeSampler) Sample(pid int) (float64, float64, int, error) {
	if f.err != nil {
		return 0, 0, 0, f.err
	}
	return f.cpu, f.mem, f.conns, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []api.StatusEvent
}

func (r *eventRecorder) Publish(event api.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newRunningServer(t *testing.T, reg *registry.Registry, name string, port int) *api.Server {
	t.Helper()
	srv, err := reg.Create(name, api.ServerConfig{
		Host: "localhost", Port: port, Command: "/usr/bin/fake-server",
	})
	require.NoError(t, err)
	reg.SetStatus(srv.ID, api.StatusStarting, "", 0)
	reg.SetStatus(srv.ID, api.StatusRunning, "", 0)
	return srv
}

func newTestCollector(reg *registry.Registry, procs ProcessInfo, sampler UsageSampler, sink api.EventSink) *Collector {
	return New(reg, procs, sink, config.CollectorConfig{
		SampleIntervalMs: 10,
		LatencyWindowMs:  60000,
	}, sampler)
}

func TestWindowAggregates(t *testing.T) {
	w := newWindow(time.Minute)
	for i := 1; i <= 100; i++ {
		w.record(float64(i), i%10 == 0)
	}

	reqPerSec, errRate, p50, p95, p99 := w.stats(time.Now())
	assert.InDelta(t, 100.0/60.0, reqPerSec, 0.001)
	assert.InDelta(t, 0.1, errRate, 0.001)
	require.NotNil(t, p50)
	require.NotNil(t, p95)
	require.NotNil(t, p99)
	assert.Equal(t, 50.0, *p50)
	assert.Equal(t, 95.0, *p95)
	assert.Equal(t, 99.0, *p99)
}

func TestWindowEmptyHasNilPercentiles(t *testing.T) {
	w := newWindow(time.Minute)
	reqPerSec, errRate, p50, p95, p99 := w.stats(time.Now())
	assert.Zero(t, reqPerSec)
	assert.Zero(t, errRate)
	assert.Nil(t, p50)
	assert.Nil(t, p95)
	assert.Nil(t, p99)
}

func TestWindowExpiresOldObservations(t *testing.T) {
	w := newWindow(time.Minute)
	now := time.Now()
	w.recordAt(now.Add(-2*time.Minute), 500, true)
	w.recordAt(now.Add(-10*time.Second), 20, false)

	_, errRate, p50, _, _ := w.stats(now)
	assert.Zero(t, errRate, "expired error must not count")
	require.NotNil(t, p50)
	assert.Equal(t, 20.0, *p50)
}

func TestSampleRunningServer(t *testing.T) {
	reg := registry.New(config.NewStorage(t.TempDir()))
	srv := newRunningServer(t, reg, "api", 9201)

	procs := &fakeProcs{pids: map[string]int{srv.ID: 4321}, uptimes: map[string]int64{srv.ID: 42}}
	sink := &eventRecorder{}
	c := newTestCollector(reg, procs, &fakeSampler{cpu: 12.5, mem: 3.25, conns: 7}, sink)

	c.RecordRequest(srv.ID, 15*time.Millisecond, false)
	c.sampleAll()

	got, err := reg.Get(srv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Metrics)
	assert.Equal(t, 12.5, got.Metrics.CPUUsagePct)
	assert.Equal(t, 3.25, got.Metrics.MemUsagePct)
	assert.Equal(t, 7, got.Metrics.Connections)
	require.NotNil(t, got.Metrics.LatencyP50Ms)
	assert.Equal(t, 15.0, *got.Metrics.LatencyP50Ms)
	assert.Equal(t, int64(42), got.UptimeSeconds)

	require.Equal(t, 1, sink.count())
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, api.EventMetricsUpdated, sink.events[0].Type)
	assert.Equal(t, srv.ID, sink.events[0].ServerID)
}

func TestSampleSkipsNonRunning(t *testing.T) {
	reg := registry.New(config.NewStorage(t.TempDir()))
	srv, err := reg.Create("idle", api.ServerConfig{
		Host: "localhost", Port: 9202, Command: "/usr/bin/fake-server",
	})
	require.NoError(t, err)

	procs := &fakeProcs{pids: map[string]int{srv.ID: 4321}, uptimes: map[string]int64{}}
	sink := &eventRecorder{}
	c := newTestCollector(reg, procs, &fakeSampler{cpu: 50}, sink)
	c.sampleAll()

	got, _ := reg.Get(srv.ID)
	assert.Nil(t, got.Metrics)
	assert.Zero(t, sink.count())
}

func TestSamplerErrorProducesNoSample(t *testing.T) {
	reg := registry.New(config.NewStorage(t.TempDir()))
	srv := newRunningServer(t, reg, "api", 9203)

	procs := &fakeProcs{pids: map[string]int{srv.ID: 4321}, uptimes: map[string]int64{}}
	sink := &eventRecorder{}
	c := newTestCollector(reg, procs, &fakeSampler{err: errors.New("process gone")}, sink)
	c.sampleAll()

	got, _ := reg.Get(srv.ID)
	assert.Nil(t, got.Metrics)
	assert.Zero(t, sink.count())
	// Demoting the server is the supervisor's call, not ours.
	assert.Equal(t, api.StatusRunning, got.Status)
}

func TestErrorRateFromRecordedRequests(t *testing.T) {
	reg := registry.New(config.NewStorage(t.TempDir()))
	srv := newRunningServer(t, reg, "api", 9204)

	procs := &fakeProcs{pids: map[string]int{srv.ID: 4321}, uptimes: map[string]int64{}}
	c := newTestCollector(reg, procs, &fakeSampler{}, &eventRecorder{})

	for i := 0; i < 8; i++ {
		c.RecordRequest(srv.ID, 10*time.Millisecond, false)
	}
	c.RecordRequest(srv.ID, 200*time.Millisecond, true)
	c.RecordRequest(srv.ID, 220*time.Millisecond, true)
	c.sampleAll()

	got, _ := reg.Get(srv.ID)
	require.NotNil(t, got.Metrics)
	assert.InDelta(t, 0.2, got.Metrics.ErrorRate, 0.001)
}

func TestPruneWindowsDropsDeletedServers(t *testing.T) {
	reg := registry.New(config.NewStorage(t.TempDir()))
	srv, err := reg.Create("gone", api.ServerConfig{
		Host: "localhost", Port: 9205, Command: "/usr/bin/fake-server",
	})
	require.NoError(t, err)

	c := newTestCollector(reg, &fakeProcs{pids: map[string]int{}, uptimes: map[string]int64{}}, &fakeSampler{}, &eventRecorder{})
	c.RecordRequest(srv.ID, time.Millisecond, false)

	require.NoError(t, reg.Delete(srv.ID))
	c.sampleAll()

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.windows)
}
