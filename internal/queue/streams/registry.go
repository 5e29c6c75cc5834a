package streams

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaRegistry holds compiled JSON Schemas keyed by "type@version".
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// NewSchemaRegistry returns an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{schemas: make(map[string]*jsonschema.Schema)}
}

// Definition is one schema to register.
type Definition struct {
	EventType string
	Version   string
	Schema    string
}

func registryKey(eventType, version string) string { return eventType + "@" + version }

// Register compiles schema and stores it for eventType/version.
func (r *SchemaRegistry) Register(def Definition) error {
	if def.EventType == "" || def.Version == "" {
		return fmt.Errorf("event type and version must be provided")
	}
	if strings.TrimSpace(def.Schema) == "" {
		return fmt.Errorf("schema for %s is empty", def.EventType)
	}
	compiled, err := jsonschema.CompileString(registryKey(def.EventType, def.Version)+".json", def.Schema)
	if err != nil {
		return fmt.Errorf("compile schema %s: %w", def.EventType, err)
	}
	r.mu.Lock()
	r.schemas[registryKey(def.EventType, def.Version)] = compiled
	r.mu.Unlock()
	return nil
}

// Validate checks payload against the schema registered for eventType/version.
func (r *SchemaRegistry) Validate(eventType, version string, payload []byte) error {
	r.mu.RLock()
	schema, ok := r.schemas[registryKey(eventType, version)]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no schema registered for %s %s", eventType, version)
	}
	if len(payload) == 0 {
		return fmt.Errorf("payload is empty")
	}
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("payload validation failed: %w", err)
	}
	return nil
}
