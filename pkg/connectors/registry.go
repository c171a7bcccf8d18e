package connectors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrUnknownKind      = errors.New("no factory for provider kind")
)

type OperationMeta struct {
	Name    string
	Method  string
	Path    string
	Summary string
}

// Call is one dispatched operation with the caller's decrypted secrets.
type Call struct {
	Operation string
	Payload   map[string]any
	Secrets   map[string]string
	Config    map[string]any
}

// Result is a provider's successful answer. Tokens and cost are set only by
// cost-accounted providers.
type Result struct {
	Data       any
	TokensUsed *int64
	CostCents  *int64
}

// Provider executes operations against one third-party backend. Errors from
// Test and Call are provider failures, reported to callers as data.
type Provider interface {
	Name() string
	Operations() []OperationMeta
	Test(ctx context.Context, secrets map[string]string) error
	Call(ctx context.Context, call Call) (*Result, error)
}

// Factory builds a provider from its catalog definition.
type Factory func(name string, def Definition) (Provider, error)

// Registry maps provider names to implementations. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	providers map[string]Provider
}

func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}, providers: map[string]Provider{}}
	r.RegisterFactory(KindEcho, NewEcho)
	return r
}

func (r *Registry) RegisterFactory(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Register adds a ready provider, replacing any with the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Build instantiates name from def using the factory for def.Kind.
func (r *Registry) Build(name string, def Definition) (Provider, error) {
	kind := def.Kind
	if kind == "" {
		kind = KindEcho
	}
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	p, err := f(name, def)
	if err != nil {
		return nil, fmt.Errorf("build provider %s: %w", name, err)
	}
	r.Register(p)
	return p, nil
}

func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for n := range r.providers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
