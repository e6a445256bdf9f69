package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mcpdeck/pkg/logging"
)

// Storage provides file-per-entity persistence under the configuration
// directory. Server definitions live in <configDir>/servers/<name>.yaml.
type Storage struct {
	mu        sync.RWMutex
	configDir string
}

// NewStorage creates a Storage rooted at the given configuration directory.
func NewStorage(configDir string) *Storage {
	return &Storage{configDir: configDir}
}

// Dir returns the directory files of the given entity type are stored in.
func (s *Storage) Dir(entityType string) string {
	return filepath.Join(s.configDir, entityType)
}

// Save writes data for the given entity type and name, creating the entity
// directory on first use.
func (s *Storage) Save(entityType, name string, data []byte) error {
	if entityType == "" {
		return fmt.Errorf("entityType cannot be empty")
	}
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.Dir(entityType)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, sanitizeFilename(name)+".yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	logging.Debug("Storage", "Saved %s/%s to %s", entityType, name, path)
	return nil
}

// Load reads the data stored for the given entity type and name.
func (s *Storage) Load(entityType, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := filepath.Join(s.Dir(entityType), sanitizeFilename(name)+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("entity %s/%s not found", entityType, name)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}

// Delete removes the file for the given entity type and name. Deleting a
// missing entity is not an error.
func (s *Storage) Delete(entityType, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.Dir(entityType), sanitizeFilename(name)+".yaml")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}
	logging.Debug("Storage", "Deleted %s/%s", entityType, name)
	return nil
}

// List returns the names of all stored entities of the given type.
func (s *Storage) List(entityType string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.Dir(entityType))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", entityType, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".yaml"))
	}
	return names, nil
}

// sanitizeFilename strips path separators so entity names cannot escape
// the storage directory.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	return name
}
