package server

import (
	"context"
	"sync"

	"github.com/ndtools/mcp-client/pkg/protocol"
)

// ToolHandler runs a tool. A returned error is reported to the caller as a
// tool-level failure.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error)

// ResourceReader returns the contents behind a resource URI
type ResourceReader func(ctx context.Context, uri string) ([]protocol.ResourceContents, error)

// PromptRenderer expands a prompt with the given arguments
type PromptRenderer func(ctx context.Context, args map[string]interface{}) (*protocol.GetPromptResult, error)

type toolEntry struct {
	tool    protocol.Tool
	handler ToolHandler
}

type resourceEntry struct {
	resource protocol.Resource
	reader   ResourceReader
}

type promptEntry struct {
	prompt   protocol.Prompt
	renderer PromptRenderer
}

// registry keeps entries in registration order. Adding an existing key
// replaces the entry in place.
type registry[E any] struct {
	mu    sync.RWMutex
	order []string
	items map[string]E
}

func newRegistry[E any]() *registry[E] {
	return &registry[E]{items: make(map[string]E)}
}

func (r *registry[E]) add(key string, entry E) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[key]; !ok {
		r.order = append(r.order, key)
	}
	r.items[key] = entry
}

func (r *registry[E]) remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[key]; !ok {
		return false
	}
	delete(r.items, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *registry[E]) get(key string) (E, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.items[key]
	return entry, ok
}

func (r *registry[E]) list() []E {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]E, 0, len(r.order))
	for _, key := range r.order {
		entries = append(entries, r.items[key])
	}
	return entries
}

func (r *registry[E]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
