package strategy

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"tradecore/internal/schema"
	"tradecore/pkg/exception"
)

// Spec describes one configured strategy instance.
type Spec struct {
	Name   string            `yaml:"name"`
	Kind   string            `yaml:"kind"`
	Symbol string            `yaml:"symbol"`
	Params map[string]string `yaml:"params"`
}

// Factory builds a strategy from its spec.
type Factory func(spec Spec) (Strategy, error)

// Registry maps strategy kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Builtin returns a fresh registry holding the reference strategies.
func Builtin() *Registry {
	r := NewRegistry()
	_ = r.Register(KindMirror, newMirrorFromSpec)
	_ = r.Register(KindSMACross, newSMACrossFromSpec)
	_ = r.Register(KindRequote, newRequoteFromSpec)
	return r
}

// New builds a strategy with the builtin registry.
func New(spec Spec) (Strategy, error) {
	return Builtin().New(spec)
}

// Register adds a factory. Registering a kind twice replaces the factory.
func (r *Registry) Register(kind string, f Factory) error {
	if kind == "" || f == nil {
		return errors.Wrap(exception.ErrInvalidArgument, "register strategy kind: empty kind or nil factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
	return nil
}

// New builds a strategy for spec.Kind.
func (r *Registry) New(spec Spec) (Strategy, error) {
	r.mu.RLock()
	f, ok := r.factories[spec.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(exception.ErrUnknownStrategyKind, "kind: %q", spec.Kind)
	}
	s, err := f(spec)
	if err != nil {
		return nil, fmt.Errorf("build strategy %s (%s), err: %w", spec.Name, spec.Kind, err)
	}
	return s, nil
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func (s Spec) param(key string) (string, bool) {
	v, ok := s.Params[key]
	return v, ok && v != ""
}

// Int reads an integer parameter.
func (s Spec) Int(key string, def int) (int, error) {
	raw, ok := s.param(key)
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(exception.ErrInvalidStrategy, "param %s: %q is not an integer", key, raw)
	}
	return v, nil
}

// Decimal reads a decimal parameter.
func (s Spec) Decimal(key string, def decimal.Decimal) (decimal.Decimal, error) {
	raw, ok := s.param(key)
	if !ok {
		return def, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(exception.ErrInvalidStrategy, "param %s: %q is not a decimal", key, raw)
	}
	return v, nil
}

// Direction reads a direction parameter.
func (s Spec) Direction(key string, def schema.Direction) (schema.Direction, error) {
	raw, ok := s.param(key)
	if !ok {
		return def, nil
	}
	d, err := schema.ParseDirection(raw)
	if err != nil {
		return d, errors.Wrapf(exception.ErrInvalidStrategy, "param %s: %v", key, err)
	}
	return d, nil
}
