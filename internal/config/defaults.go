package config

// Default values applied when config.yaml omits a setting.
const (
	DefaultDashboardHost        = "localhost"
	DefaultDashboardPort        = 8390
	DefaultTimeoutMs            = 10000
	DefaultMaxAutoRestarts      = 5
	DefaultSampleIntervalMs     = 5000
	DefaultLatencyWindowMs      = 60000
	DefaultHeartbeatIntervalMs  = 5000
	DefaultMissedHeartbeatLimit = 3
	DefaultSessionQueueSize     = 256
)

// DefaultConfig returns the configuration used when no config.yaml exists.
func DefaultConfig() MainConfig {
	return MainConfig{
		Dashboard: DashboardConfig{
			Host: DefaultDashboardHost,
			Port: DefaultDashboardPort,
		},
		Supervisor: SupervisorConfig{
			DefaultTimeoutMs: DefaultTimeoutMs,
			MaxAutoRestarts:  DefaultMaxAutoRestarts,
		},
		Collector: CollectorConfig{
			SampleIntervalMs: DefaultSampleIntervalMs,
			LatencyWindowMs:  DefaultLatencyWindowMs,
		},
		Broadcast: BroadcastConfig{
			HeartbeatIntervalMs:  DefaultHeartbeatIntervalMs,
			MissedHeartbeatLimit: DefaultMissedHeartbeatLimit,
			SessionQueueSize:     DefaultSessionQueueSize,
		},
	}
}

// applyDefaults fills zero-valued fields of cfg with defaults.
func applyDefaults(cfg *MainConfig) {
	if cfg.Dashboard.Host == "" {
		cfg.Dashboard.Host = DefaultDashboardHost
	}
	if cfg.Dashboard.Port == 0 {
		cfg.Dashboard.Port = DefaultDashboardPort
	}
	if cfg.Supervisor.DefaultTimeoutMs == 0 {
		cfg.Supervisor.DefaultTimeoutMs = DefaultTimeoutMs
	}
	if cfg.Supervisor.MaxAutoRestarts == 0 {
		cfg.Supervisor.MaxAutoRestarts = DefaultMaxAutoRestarts
	}
	if cfg.Collector.SampleIntervalMs == 0 {
		cfg.Collector.SampleIntervalMs = DefaultSampleIntervalMs
	}
	if cfg.Collector.LatencyWindowMs == 0 {
		cfg.Collector.LatencyWindowMs = DefaultLatencyWindowMs
	}
	if cfg.Broadcast.HeartbeatIntervalMs == 0 {
		cfg.Broadcast.HeartbeatIntervalMs = DefaultHeartbeatIntervalMs
	}
	if cfg.Broadcast.MissedHeartbeatLimit == 0 {
		cfg.Broadcast.MissedHeartbeatLimit = DefaultMissedHeartbeatLimit
	}
	if cfg.Broadcast.SessionQueueSize == 0 {
		cfg.Broadcast.SessionQueueSize = DefaultSessionQueueSize
	}
}
