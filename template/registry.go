package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cidc/logutils"

	"gopkg.in/yaml.v3"
)

// Registry holds the known schemas, looked up by id or by file path.
type Registry struct {
	byID   map[string]*Schema
	byPath map[string]*Schema
}

// Load reads every *.yaml file in dir as a schema. Ids are case-insensitive;
// a schema without an id takes its file name.
func Load(dir string) (*Registry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	r := &Registry{byID: map[string]*Schema{}, byPath: map[string]*Schema{}}
	for _, p := range paths {
		s, err := readSchema(p)
		if err != nil {
			return nil, err
		}
		if err := r.Add(s); err != nil {
			return nil, err
		}
	}
	logutils.Log.Infof("loaded %d template schemas from %s", len(r.byID), dir)
	return r, nil
}

func readSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := &Schema{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing schema %s: %w", path, err)
	}
	if s.ID == "" {
		s.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	s.path = path
	return s, nil
}

// NewRegistry builds a registry from schemas already in memory. Schemas
// without a path are keyed by their id.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	r := &Registry{byID: map[string]*Schema{}, byPath: map[string]*Schema{}}
	for _, s := range schemas {
		if s.path == "" {
			s.path = s.ID
		}
		if err := r.Add(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers s.
func (r *Registry) Add(s *Schema) error {
	if err := s.check(); err != nil {
		return err
	}
	s.ID = strings.ToLower(s.ID)
	if s.Hint == "" {
		s.Hint = s.ID
	}
	if _, ok := r.byID[s.ID]; ok {
		return fmt.Errorf("duplicate schema id %s", s.ID)
	}
	r.byID[s.ID] = s
	r.byPath[s.path] = s
	return nil
}

// Path returns the schema file registered under id.
func (r *Registry) Path(id string) (string, bool) {
	s, ok := r.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return "", false
	}
	return s.path, true
}

// ID returns the id of the schema loaded from path.
func (r *Registry) ID(path string) (string, bool) {
	s, ok := r.byPath[path]
	if !ok {
		return "", false
	}
	return s.ID, true
}

// ByPath returns the schema loaded from path.
func (r *Registry) ByPath(path string) (*Schema, error) {
	s, ok := r.byPath[path]
	if !ok {
		return nil, fmt.Errorf("no schema at %s", path)
	}
	return s, nil
}

// IDs lists the known schema ids in order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
