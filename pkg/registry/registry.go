// Package registry is the static source of truth for tool operations: the
// metadata table mapping each operation name to its permission scope, side
// effect class, and parameter schema, plus the permission gate over
// subscription tiers. Unknown operations fail closed.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Mindburn-Labs/steward/pkg/tiers"
)

// ErrUnknownOperation is returned when a name resolves to nothing.
var ErrUnknownOperation = errors.New("registry: unknown operation")

// SideEffect classifies an operation as read-only or mutating.
type SideEffect string

const (
	EffectNone  SideEffect = "none"
	EffectWrite SideEffect = "write"
)

// Operation is one entry in the registry's metadata table.
type Operation struct {
	Name        string
	Description string
	Scope       string     // permission scope required to call the operation
	Effect      SideEffect // drives the plan/confirmation flow
	Idempotent  bool       // reads naturally; writes via the idempotency ledger
	ParamSchema string     // JSON Schema for the operation's parameters
}

// Registry resolves operation names against the static table and gates them
// by subscription tier.
type Registry struct {
	mu       sync.RWMutex
	ops      map[string]*Operation
	compiled map[string]*jsonschema.Schema
}

// New builds a registry from the built-in operation table.
func New() (*Registry, error) {
	r := &Registry{
		ops:      make(map[string]*Operation),
		compiled: make(map[string]*jsonschema.Schema),
	}
	for i := range operations {
		if err := r.register(&operations[i]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(op *Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[op.Name]; exists {
		return fmt.Errorf("registry: duplicate operation %q", op.Name)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://steward.schemas.local/ops/%s.schema.json", op.Name)
	if err := c.AddResource(schemaURL, strings.NewReader(op.ParamSchema)); err != nil {
		return fmt.Errorf("registry: schema load for %q: %w", op.Name, err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("registry: schema compile for %q: %w", op.Name, err)
	}

	r.ops[op.Name] = op
	r.compiled[op.Name] = compiled
	return nil
}

// Resolve returns the operation for name, or ErrUnknownOperation.
func (r *Registry) Resolve(name string) (*Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.ops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return op, nil
}

// Allowed reports whether the tier may call the named operation.
// Unknown operations and unknown tiers are denied.
func (r *Registry) Allowed(name string, tier tiers.TierID) bool {
	op, err := r.Resolve(name)
	if err != nil {
		return false
	}
	t := tiers.Get(tier)
	if t == nil {
		return false
	}
	return t.HasScope(op.Scope)
}

// ListAvailable returns the operations the tier may call, sorted by name.
func (r *Registry) ListAvailable(tier tiers.TierID) []Operation {
	t := tiers.Get(tier)
	if t == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Operation
	for _, op := range r.ops {
		if t.HasScope(op.Scope) {
			out = append(out, *op)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DecodeParams validates raw parameters against the operation's schema and
// decodes them into dst, a pointer to the operation's parameter struct.
// Decoding happens once here at the boundary; the executor trusts the typed
// value thereafter.
func (r *Registry) DecodeParams(name string, raw map[string]any, dst any) error {
	r.mu.RLock()
	compiled, ok := r.compiled[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}

	if raw == nil {
		raw = map[string]any{}
	}
	if err := compiled.Validate(normalizeForSchema(raw)); err != nil {
		return fmt.Errorf("registry: params for %q: %w", name, err)
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("registry: params for %q: %w", name, err)
	}
	if err := json.Unmarshal(buf, dst); err != nil {
		return fmt.Errorf("registry: params for %q: %w", name, err)
	}
	return nil
}

// normalizeForSchema round-trips the value through encoding/json so the
// validator sees pure JSON types (float64 numbers, no typed maps).
func normalizeForSchema(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}
