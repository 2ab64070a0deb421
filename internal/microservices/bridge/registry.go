package bridge

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Callable is a server function an uplink can call by name
type Callable func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Registry holds the server's own callables
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Callable
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Callable)}
}

func (r *Registry) Register(name string, fn Callable) error {
	if name == "" {
		return fmt.Errorf("callable name is empty")
	}
	if fn == nil {
		return fmt.Errorf("callable %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("callable %q already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

func (r *Registry) Lookup(name string) (Callable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// invoke runs fn, turning a panic into an error
func invoke(ctx context.Context, fn Callable, args []any, kwargs map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callable panicked: %v", r)
		}
	}()
	return fn(ctx, args, kwargs)
}
