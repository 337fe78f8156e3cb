// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pdiddy/priorart-engine/internal/llm"
)

// Handler produces the reply for one request. The returned value is
// round-tripped through JSON into the caller's result type.
type Handler func(req llm.Request) (any, error)

// Fake routes requests to handlers by schema name and records every call.
type Fake struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []llm.Request
}

// New returns a Fake with no handlers. Unhandled schemas return an error.
func New() *Fake {
	return &Fake{handlers: make(map[string]Handler)}
}

// On registers h for schema and returns f for chaining.
func (f *Fake) On(schema string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[schema] = h
	return f
}

// Reply registers a handler that always returns v.
func (f *Fake) Reply(schema string, v any) *Fake {
	return f.On(schema, func(llm.Request) (any, error) { return v, nil })
}

// Fail registers a handler that always returns err.
func (f *Fake) Fail(schema string, err error) *Fake {
	return f.On(schema, func(llm.Request) (any, error) { return nil, err })
}

// Model returns a fixed name.
func (f *Fake) Model() string { return "fake" }

// Chat dispatches req to its handler.
func (f *Fake) Chat(_ context.Context, req llm.Request, result any) (*llm.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	h, ok := f.handlers[req.SchemaName]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("llmtest: no handler for schema %q", req.SchemaName)
	}
	v, err := h(req)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, err
	}
	return &llm.Response{}, nil
}

// Calls returns the number of requests made with schema.
func (f *Fake) Calls(schema string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.SchemaName == schema {
			n++
		}
	}
	return n
}

// Requests returns a copy of every request made with schema.
func (f *Fake) Requests(schema string) []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []llm.Request
	for _, c := range f.calls {
		if c.SchemaName == schema {
			out = append(out, c)
		}
	}
	return out
}
