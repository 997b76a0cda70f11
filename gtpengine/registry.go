package gtpengine

import (
	"errors"
	"io"
	"reflect"
	"sort"
	"sync"
)

// Handler executes one command. It writes the response into cmd and returns
// a non-nil error to produce a failure response; the error text becomes the
// response text.
//
// A handler that holds resources may also implement io.Closer. The registry
// closes it when it is replaced or when the registry is closed.
type Handler interface {
	HandleCommand(cmd *Command) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(cmd *Command) error

// HandleCommand calls f(cmd).
func (f HandlerFunc) HandleCommand(cmd *Command) error {
	return f(cmd)
}

// Registry maps verbs to handlers. Verbs are case-sensitive.
//
// Registry is safe for concurrent use, but the engine never runs two
// handlers at the same time.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler for verb. An existing handler for the same verb is
// replaced and released, unless it is h itself.
func (r *Registry) Register(verb string, h Handler) error {
	r.mu.Lock()
	old, exists := r.handlers[verb]
	r.handlers[verb] = h
	r.mu.Unlock()

	if exists && !sameHandler(old, h) {
		return release(old)
	}
	return nil
}

// RegisterFunc is Register for a plain function.
func (r *Registry) RegisterFunc(verb string, f func(cmd *Command) error) error {
	return r.Register(verb, HandlerFunc(f))
}

// Lookup returns the handler for verb.
func (r *Registry) Lookup(verb string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[verb]
	return h, ok
}

// IsRegistered reports whether verb has a handler.
func (r *Registry) IsRegistered(verb string) bool {
	_, ok := r.Lookup(verb)
	return ok
}

// Verbs returns all registered verbs in lexicographic order.
func (r *Registry) Verbs() []string {
	r.mu.RLock()
	verbs := make([]string, 0, len(r.handlers))
	for verb := range r.handlers {
		verbs = append(verbs, verb)
	}
	r.mu.RUnlock()

	sort.Strings(verbs)
	return verbs
}

// Len returns the number of registered verbs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Close releases every handler and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	handlers := r.handlers
	r.handlers = make(map[string]Handler)
	r.mu.Unlock()

	var errs []error
	for _, verb := range sortedKeys(handlers) {
		if err := release(handlers[verb]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sameHandler reports whether a and b are the same pointer handler.
func sameHandler(a, b Handler) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != reflect.Pointer || vb.Kind() != reflect.Pointer || va.Type() != vb.Type() {
		return false
	}
	return va.Pointer() == vb.Pointer()
}

func release(h Handler) error {
	if c, ok := h.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func sortedKeys(m map[string]Handler) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
