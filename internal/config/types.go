package config

// MainConfig is the top-level configuration loaded from config.yaml in the
// configuration directory. Zero values are replaced by defaults.
type MainConfig struct {
	// Dashboard configures the HTTP/WebSocket host layer.
	Dashboard DashboardConfig `yaml:"dashboard"`

	// Supervisor configures lifecycle handling defaults.
	Supervisor SupervisorConfig `yaml:"supervisor"`

	// Collector configures metrics sampling.
	Collector CollectorConfig `yaml:"collector"`

	// Broadcast configures the real-time status channel.
	Broadcast BroadcastConfig `yaml:"broadcast"`
}

// DashboardConfig holds the listen address of the host layer.
type DashboardConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SupervisorConfig holds lifecycle defaults applied when a server's own
// config leaves them unset.
type SupervisorConfig struct {
	// DefaultTimeoutMs bounds start and stop operations for servers that do
	// not set config.timeoutMs.
	DefaultTimeoutMs int `yaml:"defaultTimeoutMs"`

	// MaxAutoRestarts caps automatic restart attempts after a crash for
	// servers with autoStart enabled.
	MaxAutoRestarts int `yaml:"maxAutoRestarts"`
}

// CollectorConfig holds metrics sampling settings.
type CollectorConfig struct {
	// SampleIntervalMs is the fixed interval between sampling rounds.
	SampleIntervalMs int `yaml:"sampleIntervalMs"`

	// LatencyWindowMs is the rolling window over which latency percentiles
	// are computed.
	LatencyWindowMs int `yaml:"latencyWindowMs"`
}

// BroadcastConfig holds real-time channel settings.
type BroadcastConfig struct {
	// HeartbeatIntervalMs is the fixed heartbeat period.
	HeartbeatIntervalMs int `yaml:"heartbeatIntervalMs"`

	// MissedHeartbeatLimit is the number of consecutive undeliverable
	// heartbeats after which a session is evicted.
	MissedHeartbeatLimit int `yaml:"missedHeartbeatLimit"`

	// SessionQueueSize bounds each session's pending event queue. On
	// overflow the queue is cleared and the session is forced to resync
	// from a snapshot.
	SessionQueueSize int `yaml:"sessionQueueSize"`
}
