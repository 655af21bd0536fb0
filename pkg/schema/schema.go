// Package schema compiles tool JSON Schemas and checks payloads against them.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidSchema is returned when a schema document cannot be compiled.
var ErrInvalidSchema = errors.New("invalid schema")

// ErrPayloadMismatch is returned when a payload does not satisfy its schema.
var ErrPayloadMismatch = errors.New("payload does not match schema")

// Compile parses and resolves a schema document.
func Compile(raw json.RawMessage) (*jsonschema.Resolved, error) {
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return resolved, nil
}

// Registry caches compiled schemas by content hash.
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Resolved
	group    singleflight.Group
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{compiled: make(map[string]*jsonschema.Resolved)}
}

// Get returns the compiled form of raw, compiling it at most once.
func (r *Registry) Get(raw json.RawMessage) (*jsonschema.Resolved, error) {
	key := fingerprint(raw)

	r.mu.RLock()
	resolved, ok := r.compiled[key]
	r.mu.RUnlock()
	if ok {
		return resolved, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		compiled, err := Compile(raw)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.compiled[key] = compiled
		r.mu.Unlock()
		return compiled, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*jsonschema.Resolved), nil
}

// Validate checks payload against schemaDoc.
func (r *Registry) Validate(schemaDoc, payload json.RawMessage) error {
	resolved, err := r.Get(schemaDoc)
	if err != nil {
		return err
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrPayloadMismatch, err)
	}
	if err := resolved.Validate(decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrPayloadMismatch, err)
	}
	return nil
}

// Len reports how many schemas are cached.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.compiled)
}

func fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
