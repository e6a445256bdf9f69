package registry

import (
	"net"
	"regexp"
	"strings"

	"mcpdeck/internal/api"
)

// hostnameRe matches RFC 1123 hostnames: dot-separated labels of
// alphanumerics and hyphens, no leading/trailing hyphen per label.
var hostnameRe = regexp.MustCompile(`^([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])(\.([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9\-]{0,61}[a-zA-Z0-9]))*$`)

// ValidateConfig checks a server name and configuration against the static
// validation rules. Port collisions with running servers are checked
// separately by the registry, since they depend on live state.
func ValidateConfig(name string, cfg api.ServerConfig) error {
	if strings.TrimSpace(name) == "" {
		return api.NewValidationError("name", "must not be empty")
	}
	if !isValidHost(cfg.Host) {
		return api.NewValidationError("host", "%q is not a valid hostname or IP address", cfg.Host)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return api.NewValidationError("port", "must be in range [1, 65535], got %d", cfg.Port)
	}
	if strings.TrimSpace(cfg.Command) == "" {
		return api.NewValidationError("command", "must not be empty")
	}
	if cfg.TimeoutMs < 0 {
		return api.NewValidationError("timeoutMs", "must not be negative, got %d", cfg.TimeoutMs)
	}
	if cfg.MaxConnections < 0 {
		return api.NewValidationError("maxConnections", "must not be negative, got %d", cfg.MaxConnections)
	}
	return nil
}

// isValidHost accepts IP addresses and syntactically valid hostnames.
func isValidHost(host string) bool {
	if host == "" || len(host) > 253 {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	return hostnameRe.MatchString(host)
}
