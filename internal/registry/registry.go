package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mcpdeck/internal/api"
	"mcpdeck/internal/config"
	"mcpdeck/pkg/logging"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"
)

// entityType is the storage subdirectory for server definitions.
const entityType = "servers"

// persistedServer is the on-disk form of a server definition. Runtime-only
// fields (metrics, uptime) are not persisted; the last known status is, so
// a restarted control plane can report it until the supervisor corrects it.
type persistedServer struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Config     api.ServerConfig `json:"config"`
	Version    string           `json:"version,omitempty"`
	LastStatus api.ServerStatus `json:"lastStatus,omitempty"`
}

// Registry is the durable store of server definitions and the last-known
// status cache. It validates configuration on create/configure and answers
// queries. Status, metrics and uptime fields are written exclusively through
// the Set* methods, which the supervisor and collector own; config is
// written through Create/ApplyConfig. The single RWMutex is the only
// synchronization primitive; writes are partitioned by field ownership so
// components never overwrite each other's fields.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*api.Server
	byName  map[string]string // display name -> id
	storage *config.Storage
}

// New creates a Registry persisting through the given storage.
func New(storage *config.Storage) *Registry {
	return &Registry{
		servers: make(map[string]*api.Server),
		byName:  make(map[string]string),
		storage: storage,
	}
}

// LoadAll reads every persisted server definition into memory. Servers come
// up with status stopped regardless of their persisted last status if that
// status was transient; the supervisor re-establishes truth for autoStart
// servers.
func (r *Registry) LoadAll() error {
	names, err := r.storage.List(entityType)
	if err != nil {
		return fmt.Errorf("failed to list server definitions: %w", err)
	}

	for _, name := range names {
		data, err := r.storage.Load(entityType, name)
		if err != nil {
			logging.Warn("Registry", "Skipping unreadable definition %s: %v", name, err)
			continue
		}
		if _, err := r.loadDefinition(data); err != nil {
			logging.Warn("Registry", "Skipping invalid definition %s: %v", name, err)
		}
	}

	r.mu.RLock()
	count := len(r.servers)
	r.mu.RUnlock()
	logging.Info("Registry", "Loaded %d server definitions", count)
	return nil
}

// loadDefinition parses and registers one persisted definition. Used by
// LoadAll and the directory watcher. Returns the registered server, or nil
// when the definition was already known.
func (r *Registry) loadDefinition(data []byte) (*api.Server, error) {
	var def persistedServer
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}
	if def.ID == "" || def.Name == "" {
		return nil, fmt.Errorf("definition missing id or name")
	}
	if err := ValidateConfig(def.Name, def.Config); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.servers[def.ID]; exists {
		return nil, nil
	}
	if otherID, taken := r.byName[def.Name]; taken && otherID != def.ID {
		return nil, fmt.Errorf("duplicate server name %q", def.Name)
	}

	status := api.StatusStopped
	if def.LastStatus == api.StatusError {
		// Error is a resting state worth surfacing across restarts.
		status = api.StatusError
	}
	srv := &api.Server{
		ID:          def.ID,
		Name:        def.Name,
		Status:      status,
		Config:      def.Config,
		Version:     def.Version,
		LastUpdated: time.Now(),
	}
	r.servers[def.ID] = srv
	r.byName[def.Name] = def.ID
	return srv.Clone(), nil
}

// Create validates the config, assigns an id and persists the new server.
// New servers start in status stopped with no metrics.
func (r *Registry) Create(name string, cfg api.ServerConfig) (*api.Server, error) {
	if err := ValidateConfig(name, cfg); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[name]; taken {
		return nil, api.NewValidationError("name", "a server named %q already exists", name)
	}
	if id := r.runningPortOwnerLocked(cfg.Host, cfg.Port, ""); id != "" {
		return nil, api.NewConflictError(id, "port %d on %s is bound by a running server", cfg.Port, cfg.Host)
	}

	srv := &api.Server{
		ID:          uuid.NewString(),
		Name:        name,
		Status:      api.StatusStopped,
		Config:      cfg,
		LastUpdated: time.Now(),
	}
	if err := r.persistLocked(srv); err != nil {
		return nil, err
	}

	r.servers[srv.ID] = srv
	r.byName[name] = srv.ID
	logging.Info("Registry", "Created server %s (%s)", name, srv.ID)
	return srv.Clone(), nil
}

// ValidateConfigUpdate checks a new config against validation rules and
// the running-port uniqueness invariant without applying it.
func (r *Registry) ValidateConfigUpdate(id string, cfg api.ServerConfig) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	srv, exists := r.servers[id]
	if !exists {
		return api.NewServerNotFoundError(id)
	}
	if err := ValidateConfig(srv.Name, cfg); err != nil {
		return err
	}
	if owner := r.runningPortOwnerLocked(cfg.Host, cfg.Port, id); owner != "" {
		return api.NewConflictError(owner, "port %d on %s is bound by a running server", cfg.Port, cfg.Host)
	}
	return nil
}

// ApplyConfig persists and applies a new configuration. Callers are
// responsible for lifecycle sequencing (the supervisor queues structural
// changes while the server runs); the registry only stores.
func (r *Registry) ApplyConfig(id string, cfg api.ServerConfig) (*api.Server, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	srv, exists := r.servers[id]
	if !exists {
		return nil, api.NewServerNotFoundError(id)
	}

	srv.Config = cfg
	srv.LastUpdated = time.Now()
	if err := r.persistLocked(srv); err != nil {
		return nil, err
	}
	return srv.Clone(), nil
}

// Delete removes a server definition. Only permitted while the server is
// stopped.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	srv, exists := r.servers[id]
	if !exists {
		return api.NewServerNotFoundError(id)
	}
	if srv.Status != api.StatusStopped {
		return api.NewConflictError(id, "cannot delete server in status %s", srv.Status)
	}

	if err := r.storage.Delete(entityType, srv.Name); err != nil {
		return err
	}
	delete(r.servers, id)
	delete(r.byName, srv.Name)
	logging.Info("Registry", "Deleted server %s (%s)", srv.Name, id)
	return nil
}

// Get returns a copy of the server with the given id.
func (r *Registry) Get(id string) (*api.Server, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	srv, exists := r.servers[id]
	if !exists {
		return nil, api.NewServerNotFoundError(id)
	}
	return srv.Clone(), nil
}

// GetByName resolves a display name to a server.
func (r *Registry) GetByName(name string) (*api.Server, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byName[name]
	if !exists {
		return nil, &api.NotFoundError{ResourceType: "server", ResourceName: name}
	}
	return r.servers[id].Clone(), nil
}

// List returns copies of all servers matching the filter, sorted by name.
func (r *Registry) List(filter api.ServerFilter) []*api.Server {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(filter.NameContains)
	var out []*api.Server
	for _, srv := range r.servers {
		if needle != "" && !strings.Contains(strings.ToLower(srv.Name), needle) {
			continue
		}
		if filter.Status != "" && srv.Status != filter.Status {
			continue
		}
		out = append(out, srv.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Snapshot returns copies of all servers, sorted by name. Used by the
// broadcaster for snapshot-on-connect.
func (r *Registry) Snapshot() []*api.Server {
	return r.List(api.ServerFilter{})
}

// SetStatus records a status transition observed by the supervisor,
// together with its diagnostic and the current uptime. Leaving running
// clears metrics so the metrics-iff-running invariant holds at every
// observable instant.
func (r *Registry) SetStatus(id string, status api.ServerStatus, detail string, uptimeSeconds int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	srv, exists := r.servers[id]
	if !exists {
		return
	}
	srv.Status = status
	srv.StatusDetail = detail
	srv.UptimeSeconds = uptimeSeconds
	srv.LastUpdated = time.Now()
	if status != api.StatusRunning {
		srv.Metrics = nil
	}
	if status.IsTerminal() {
		if err := r.persistLocked(srv); err != nil {
			logging.Warn("Registry", "Failed to persist status of %s: %v", srv.Name, err)
		}
	}
}

// SetMetrics records a metrics sample. Samples for servers that are no
// longer running are discarded to preserve the metrics-iff-running
// invariant.
func (r *Registry) SetMetrics(id string, metrics *api.Metrics, uptimeSeconds int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	srv, exists := r.servers[id]
	if !exists || srv.Status != api.StatusRunning {
		return
	}
	srv.Metrics = metrics.Clone()
	if uptimeSeconds > srv.UptimeSeconds {
		srv.UptimeSeconds = uptimeSeconds
	}
	srv.LastUpdated = time.Now()
}

// SetVersion records the server version reported after a successful start.
func (r *Registry) SetVersion(id, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if srv, exists := r.servers[id]; exists {
		srv.Version = version
		srv.LastUpdated = time.Now()
	}
}

// runningPortOwnerLocked returns the id of the running server bound to
// (host, port), excluding excludeID, or "" when the pair is free. Callers
// must hold at least a read lock.
func (r *Registry) runningPortOwnerLocked(host string, port int, excludeID string) string {
	for id, srv := range r.servers {
		if id == excludeID {
			continue
		}
		if srv.Status != api.StatusRunning && srv.Status != api.StatusStarting {
			continue
		}
		if srv.Config.Port == port && strings.EqualFold(srv.Config.Host, host) {
			return id
		}
	}
	return ""
}

// persistLocked writes the definition file for srv. Callers must hold the
// write lock.
func (r *Registry) persistLocked(srv *api.Server) error {
	def := persistedServer{
		ID:         srv.ID,
		Name:       srv.Name,
		Config:     srv.Config,
		Version:    srv.Version,
		LastStatus: srv.Status,
	}
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal definition for %s: %w", srv.Name, err)
	}
	return r.storage.Save(entityType, srv.Name, data)
}
