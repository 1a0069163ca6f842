// Package registry holds the broker directory: the catalog of data brokers
// a run can target, cached locally between refreshes.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const cacheFilename = "registry_cache.json"

// KnownField describes a form field a broker's opt-out flow is known to ask
// for. Labels and structure only, never values.
type KnownField struct {
	Selector    string   `json:"selector"`
	Tag         string   `json:"tag"`
	FieldType   string   `json:"type,omitempty"`
	Label       string   `json:"label,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Name        string   `json:"name,omitempty"`
	Required    bool     `json:"required"`
	Options     []string `json:"options,omitempty"`
}

// Broker is one entry in the broker directory.
type Broker struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	URL                  string       `json:"url"`
	Category             string       `json:"category"`
	Method               string       `json:"method"`
	OptOutURL            string       `json:"opt_out_url"`
	KnownFields          []KnownField `json:"known_fields,omitempty"`
	Notes                string       `json:"notes,omitempty"`
	RequiresVerification string       `json:"requires_verification,omitempty"`
	RelistDays           uint         `json:"relist_days,omitempty"`
	Difficulty           string       `json:"difficulty"`
	LastVerified         string       `json:"last_verified"`
}

// Registry is a versioned snapshot of the broker directory.
type Registry struct {
	Version string   `json:"version"`
	Brokers []Broker `json:"brokers"`
}

// Find returns the broker with the given id.
func (r *Registry) Find(id string) (Broker, bool) {
	for _, b := range r.Brokers {
		if b.ID == id {
			return b, true
		}
	}
	return Broker{}, false
}

// Sorted returns the brokers ordered by name.
func (r *Registry) Sorted() []Broker {
	out := make([]Broker, len(r.Brokers))
	copy(out, r.Brokers)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Cache persists a registry snapshot to disk so the app works offline.
type Cache struct {
	path string
	mu   sync.RWMutex
}

// NewCache creates a cache at the given directory, or under ~/.unlist when
// dir is empty.
func NewCache(dir string) (*Cache, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".unlist")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{path: filepath.Join(dir, cacheFilename)}, nil
}

// Load reads the cached registry. It returns (nil, nil) when no snapshot
// has been saved yet.
func (c *Cache) Load() (*Registry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read registry cache: %w", err)
	}
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry cache: %w", err)
	}
	return &reg, nil
}

// Save writes a registry snapshot, replacing any previous one.
func (c *Cache) Save(reg *Registry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write registry cache: %w", err)
	}
	return nil
}
