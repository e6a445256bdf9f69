package api

import (
	"testing"
)

func TestStatusTransitions(t *testing.T) {
	allowed := []struct {
		from, to ServerStatus
	}{
		{StatusStopped, StatusStarting},
		{StatusStarting, StatusRunning},
		{StatusStarting, StatusStopping},
		{StatusRunning, StatusStopping},
		{StatusStopping, StatusStopped},
		{StatusError, StatusStarting},
		// any state may enter error
		{StatusStopped, StatusError},
		{StatusStarting, StatusError},
		{StatusRunning, StatusError},
		{StatusStopping, StatusError},
		{StatusError, StatusError},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct {
		from, to ServerStatus
	}{
		{StatusStopped, StatusRunning},
		{StatusStopped, StatusStopping},
		{StatusRunning, StatusStarting},
		{StatusRunning, StatusStopped},
		{StatusStopping, StatusRunning},
		{StatusStopping, StatusStarting},
		{StatusError, StatusRunning},
		{StatusError, StatusStopped},
		{StatusStarting, StatusStopped},
	}
	for _, tc := range denied {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestStructurallyEquals(t *testing.T) {
	base := ServerConfig{
		Host:    "localhost",
		Port:    8080,
		Command: "/usr/bin/node",
		Args:    []string{"server.js"},
		Env:     map[string]string{"MODE": "prod"},
	}

	same := base
	same.Description = "renamed"
	same.TimeoutMs = 9999
	same.MaxConnections = 7
	if !base.StructurallyEquals(same) {
		t.Error("non-structural changes should compare structurally equal")
	}

	for name, mutate := range map[string]func(*ServerConfig){
		"port":    func(c *ServerConfig) { c.Port = 9090 },
		"host":    func(c *ServerConfig) { c.Host = "0.0.0.0" },
		"command": func(c *ServerConfig) { c.Command = "/usr/bin/python" },
		"args":    func(c *ServerConfig) { c.Args = []string{"other.js"} },
		"env":     func(c *ServerConfig) { c.Env = map[string]string{"MODE": "dev"} },
	} {
		changed := base
		changed.Args = append([]string(nil), base.Args...)
		changed.Env = map[string]string{"MODE": "prod"}
		mutate(&changed)
		if base.StructurallyEquals(changed) {
			t.Errorf("change to %s should not compare structurally equal", name)
		}
	}
}

func TestServerClone(t *testing.T) {
	p50 := 12.5
	orig := &Server{
		ID:     "s1",
		Name:   "Test",
		Status: StatusRunning,
		Config: ServerConfig{
			Host: "localhost",
			Port: 8080,
			Args: []string{"a"},
			Env:  map[string]string{"K": "V"},
		},
		Metrics: &Metrics{CPUUsagePct: 10, LatencyP50Ms: &p50},
	}

	dup := orig.Clone()
	dup.Config.Env["K"] = "changed"
	dup.Config.Args[0] = "b"
	*dup.Metrics.LatencyP50Ms = 99
	dup.Metrics.CPUUsagePct = 50

	if orig.Config.Env["K"] != "V" {
		t.Error("clone shares env map with original")
	}
	if orig.Config.Args[0] != "a" {
		t.Error("clone shares args slice with original")
	}
	if *orig.Metrics.LatencyP50Ms != 12.5 {
		t.Error("clone shares latency pointer with original")
	}
	if orig.Metrics.CPUUsagePct != 10 {
		t.Error("clone shares metrics struct with original")
	}
}

func TestErrorHelpers(t *testing.T) {
	verr := NewValidationError("port", "must be in range [1, 65535], got %d", 70000)
	if !IsValidation(verr) {
		t.Error("IsValidation should match ValidationError")
	}
	if IsConflict(verr) || IsNotFound(verr) {
		t.Error("ValidationError should not match other helpers")
	}

	cerr := NewConflictError("s1", "cannot delete server in status %s", StatusRunning)
	if !IsConflict(cerr) {
		t.Error("IsConflict should match ConflictError")
	}

	nerr := NewServerNotFoundError("missing")
	if !IsNotFound(nerr) {
		t.Error("IsNotFound should match NotFoundError")
	}
	if nerr.Error() != "server missing not found" {
		t.Errorf("unexpected message: %s", nerr.Error())
	}
}
