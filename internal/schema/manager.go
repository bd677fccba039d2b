// Package schema persists per-CSV column metadata that isn't in the file
// itself: virtual columns (name plus default value) that the query engine
// appends after the real header columns when materializing rows.
package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Schema is the sidecar metadata for one CSV file.
type Schema struct {
	VirtualColumns map[string]string `json:"virtual_columns"` // name -> default value
	path           string
	mu             sync.Mutex
}

// Load reads the sidecar schema for csvPath. A missing sidecar is not an
// error; it yields an empty schema that Save will create.
func Load(csvPath string) (*Schema, error) {
	s := &Schema{
		VirtualColumns: make(map[string]string),
		path:           sidecarPath(csvPath),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if s.VirtualColumns == nil {
		s.VirtualColumns = make(map[string]string)
	}
	return s, nil
}

// Save writes the schema back to its sidecar file.
func (s *Schema) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// AddVirtualColumn registers a virtual column with its default value.
func (s *Schema) AddVirtualColumn(name, defaultValue string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.VirtualColumns[name] = defaultValue
}

// RemoveVirtualColumn drops a virtual column, typically once it has been
// materialized into the CSV itself.
func (s *Schema) RemoveVirtualColumn(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.VirtualColumns, name)
}

// sidecarPath keeps the schema next to its CSV. The suffix is distinct
// from the indexer's _meta.json so the two sidecars never collide.
func sidecarPath(csvPath string) string {
	dir := filepath.Dir(csvPath)
	base := filepath.Base(csvPath)
	return filepath.Join(dir, base+"_schema.json")
}
