package llamachat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/thearyanag/llamachat/pkg/types"
)

var functionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

type registryEntry struct {
	fn     Function
	schema *jsonschema.Resolved
}

// Registry maps function names to their definitions and handlers. It
// preserves first-registration order for prompt rendering; re-registering a
// name replaces the entry in place. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
	order   []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register stores fn, replacing any function of the same name. It rejects an
// empty or malformed name, a nil handler and a parameter schema that cannot
// be compiled. All rejections wrap [ErrInvalidFunction].
func (r *Registry) Register(fn Function) error {
	switch {
	case fn.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidFunction)
	case !functionNamePattern.MatchString(fn.Name):
		return fmt.Errorf("%w: name %q must match %s", ErrInvalidFunction, fn.Name, functionNamePattern)
	case fn.Handler == nil:
		return fmt.Errorf("%w: %q: nil handler", ErrInvalidFunction, fn.Name)
	}

	schema, err := resolveSchema(fn.Parameters)
	if err != nil {
		return fmt.Errorf("%w: %q: parameters schema: %w", ErrInvalidFunction, fn.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[fn.Name]; !exists {
		r.order = append(r.order, fn.Name)
	}
	r.entries[fn.Name] = &registryEntry{fn: fn, schema: schema}
	return nil
}

// RegisterMany registers fns in order. It stops at the first invalid entry;
// entries before it stay registered and the error names the failing index.
func (r *Registry) RegisterMany(fns ...Function) error {
	for i, fn := range fns {
		if err := r.Register(fn); err != nil {
			return fmt.Errorf("llamachat: register function %d: %w", i, err)
		}
	}
	return nil
}

// Unregister removes name and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	return true
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Function{}, false
	}
	return e.fn, true
}

// Definitions returns the descriptors of all functions in registration order.
func (r *Registry) Definitions() []types.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]types.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.entries[name].fn.Definition())
	}
	return defs
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Call validates args against the parameter schema of name and runs its
// handler. Errors are *[UnknownFunctionError], *[InvalidArgumentsError] or
// *[FunctionError].
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return "", &UnknownFunctionError{Name: name}
	}

	raw, obj, err := decodeArguments(args)
	if err != nil {
		return "", &InvalidArgumentsError{Name: name, Err: err}
	}
	if e.schema != nil {
		if err := e.schema.Validate(obj); err != nil {
			return "", &InvalidArgumentsError{Name: name, Err: err}
		}
	}

	out, err := e.fn.Handler(ctx, raw)
	if err != nil {
		var invalid *InvalidArgumentsError
		if errors.As(err, &invalid) {
			return "", err
		}
		return "", &FunctionError{Name: name, Err: err}
	}
	return out, nil
}
