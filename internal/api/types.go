package api

import "time"

// ServerStatus represents the lifecycle state of a managed MCP server.
type ServerStatus string

const (
	StatusStopped  ServerStatus = "stopped"
	StatusStarting ServerStatus = "starting"
	StatusRunning  ServerStatus = "running"
	StatusStopping ServerStatus = "stopping"
	StatusError    ServerStatus = "error"
)

// validTransitions encodes the lifecycle state machine:
// stopped -> starting -> running -> stopping -> stopped. Any state may
// transition to error, and error may transition back to starting on a new
// start attempt.
var validTransitions = map[ServerStatus][]ServerStatus{
	StatusStopped:  {StatusStarting},
	StatusStarting: {StatusRunning, StatusStopping},
	StatusRunning:  {StatusStopping},
	StatusStopping: {StatusStopped},
	StatusError:    {StatusStarting},
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle transition.
func (s ServerStatus) CanTransitionTo(next ServerStatus) bool {
	if next == StatusError {
		return true
	}
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is a resting state, i.e. no
// lifecycle operation is currently in flight.
func (s ServerStatus) IsTerminal() bool {
	return s == StatusStopped || s == StatusRunning || s == StatusError
}

// ServerConfig holds the launch and connection configuration of a managed
// server. Host, Port, Command, Args and Env are structural: changing them
// on a running server takes effect at the next restart. The remaining
// fields apply immediately.
type ServerConfig struct {
	Host           string            `json:"host"`
	Port           int               `json:"port"`
	Command        string            `json:"command"`
	Args           []string          `json:"args,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	AutoStart      bool              `json:"autoStart,omitempty"`
	MaxConnections int               `json:"maxConnections,omitempty"`
	TimeoutMs      int               `json:"timeoutMs,omitempty"`
	Description    string            `json:"description,omitempty"`
}

// StructurallyEquals reports whether two configs agree on every field that
// requires a process restart to take effect.
func (c ServerConfig) StructurallyEquals(other ServerConfig) bool {
	if c.Host != other.Host || c.Port != other.Port || c.Command != other.Command {
		return false
	}
	if len(c.Args) != len(other.Args) {
		return false
	}
	for i := range c.Args {
		if c.Args[i] != other.Args[i] {
			return false
		}
	}
	if len(c.Env) != len(other.Env) {
		return false
	}
	for k, v := range c.Env {
		if other.Env[k] != v {
			return false
		}
	}
	return true
}

// Metrics is a point-in-time sample of a running server's resource usage
// and request performance. Latency percentiles are nil when no requests
// were observed inside the rolling window.
type Metrics struct {
	CPUUsagePct    float64  `json:"cpuUsagePct"`
	MemUsagePct    float64  `json:"memUsagePct"`
	Connections    int      `json:"connections"`
	RequestsPerSec float64  `json:"requestsPerSec"`
	ErrorRate      float64  `json:"errorRate"`
	LatencyP50Ms   *float64 `json:"latencyP50Ms,omitempty"`
	LatencyP95Ms   *float64 `json:"latencyP95Ms,omitempty"`
	LatencyP99Ms   *float64 `json:"latencyP99Ms,omitempty"`
}

// Clone returns a deep copy so callers can hold samples without racing the
// collector.
func (m *Metrics) Clone() *Metrics {
	if m == nil {
		return nil
	}
	dup := *m
	dup.LatencyP50Ms = clonePtr(m.LatencyP50Ms)
	dup.LatencyP95Ms = clonePtr(m.LatencyP95Ms)
	dup.LatencyP99Ms = clonePtr(m.LatencyP99Ms)
	return &dup
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Server is the central entity: a managed MCP server definition together
// with its last-known runtime state. Metrics is non-nil if and only if
// Status is running. StatusDetail carries the diagnostic for error status
// and must never be blanked while the server is in error.
type Server struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Status        ServerStatus `json:"status"`
	StatusDetail  string       `json:"statusDetail,omitempty"`
	Config        ServerConfig `json:"config"`
	Metrics       *Metrics     `json:"metrics,omitempty"`
	Version       string       `json:"version,omitempty"`
	UptimeSeconds int64        `json:"uptimeSeconds,omitempty"`
	LastUpdated   time.Time    `json:"lastUpdated"`
}

// Clone returns a deep copy of the server.
func (s *Server) Clone() *Server {
	if s == nil {
		return nil
	}
	dup := *s
	dup.Metrics = s.Metrics.Clone()
	dup.Config.Args = append([]string(nil), s.Config.Args...)
	if s.Config.Env != nil {
		dup.Config.Env = make(map[string]string, len(s.Config.Env))
		for k, v := range s.Config.Env {
			dup.Config.Env[k] = v
		}
	}
	return &dup
}

// ServerFilter selects a subset of servers in List queries. Zero value
// matches everything.
type ServerFilter struct {
	// NameContains matches servers whose name contains the given substring
	// (case-insensitive).
	NameContains string `json:"nameContains,omitempty"`

	// Status restricts results to servers in the given status.
	Status ServerStatus `json:"status,omitempty"`
}

// OperationResult reports the outcome of one server's operation inside a
// bulk request. Bulk operations never fail atomically; each target id gets
// its own result.
type OperationResult struct {
	ServerID string `json:"serverId"`
	Err      error  `json:"-"`
	Error    string `json:"error,omitempty"`
}

// NewOperationResult builds a result for the given id, capturing err both
// as a value (for programmatic use) and as text (for serialization).
func NewOperationResult(serverID string, err error) OperationResult {
	r := OperationResult{ServerID: serverID, Err: err}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
