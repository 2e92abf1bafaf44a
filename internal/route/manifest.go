package route

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is a declarative route table. Handlers are referenced by name and
// resolved against a handler map at load time, so the YAML stays free of
// code while the registry still ends up fully bound.
type Manifest struct {
	Routes []ManifestRoute `yaml:"routes"`
}

// ManifestRoute is one declaration in a manifest.
type ManifestRoute struct {
	Method    string `yaml:"method"`
	Path      string `yaml:"path"`
	Resource  string `yaml:"resource"`
	Operation string `yaml:"operation"`
	Handler   string `yaml:"handler"`
	Schema    Schema `yaml:"schema,omitempty"`
}

// LoadManifest reads a YAML route manifest from path and registers every
// declaration into a new registry, binding handlers from the given map.
func LoadManifest(path string, handlers map[string]Handler) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route manifest: %w", err)
	}
	return ParseManifest(data, handlers)
}

// ParseManifest builds a registry from raw YAML manifest bytes.
func ParseManifest(data []byte, handlers map[string]Handler) (*Registry, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse route manifest: %w", err)
	}

	reg := NewRegistry()
	for _, mr := range m.Routes {
		h, ok := handlers[mr.Handler]
		if !ok {
			return nil, fmt.Errorf("route %s.%s: unknown handler %q", mr.Resource, mr.Operation, mr.Handler)
		}
		rt := &Route{
			Method:    mr.Method,
			Path:      mr.Path,
			Resource:  mr.Resource,
			Operation: mr.Operation,
			Schema:    mr.Schema,
			Handler:   h,
		}
		if err := reg.Register(rt); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
