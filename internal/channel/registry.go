package channel

import (
	"fmt"
	"sort"
	"sync"
)

// Handler processes one inbound envelope.
type Handler func(Envelope) error

// Registry maps type tags to handlers. Registering a tag again replaces the
// previous handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register installs h for tag. A nil h removes the tag.
func (r *Registry) Register(tag string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h == nil {
		delete(r.handlers, tag)
		return
	}
	r.handlers[tag] = h
}

// Lookup returns the handler for tag.
func (r *Registry) Lookup(tag string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[tag]
	return h, ok
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	tags := make([]string, 0, len(r.handlers))
	for tag := range r.handlers {
		tags = append(tags, tag)
	}
	r.mu.RUnlock()

	sort.Strings(tags)
	return tags
}

// Dispatch invokes the handler registered for env.Type on the calling
// goroutine. It reports whether a handler was found. Errors and panics
// raised by the handler come back as a *HandlerError.
func (r *Registry) Dispatch(env Envelope) (handled bool, err error) {
	h, ok := r.Lookup(env.Type)
	if !ok {
		return false, nil
	}

	defer func() {
		if p := recover(); p != nil {
			handled = true
			err = &HandlerError{Type: env.Type, Err: fmt.Errorf("panic: %v", p), Panic: p}
		}
	}()

	if herr := h(env); herr != nil {
		return true, &HandlerError{Type: env.Type, Err: herr}
	}
	return true, nil
}
