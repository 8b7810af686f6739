package challenge

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownKind marks a cid whose kind has no registered constructor. This
// is a deployment misconfiguration and is fatal at initialization, not a
// runtime condition to recover from.
var ErrUnknownKind = errors.New("unknown challenge kind")

// Constructor builds a challenge instance from its full configured cid, so
// the instance can recover its argument substring on demand.
type Constructor func(cid string, env *Env) Challenge

// Registry is the static mapping from challenge-kind names to constructors.
// It is populated once at process initialization from all linked
// challenge-kind definitions and read-only afterwards.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]Constructor)}
}

// Register adds a challenge kind. A duplicate kind name is a fatal
// configuration error and panics.
func (r *Registry) Register(kind string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.kinds[kind]; dup {
		panic(fmt.Sprintf("challenge: duplicate kind %q", kind))
	}
	if ctor == nil {
		panic(fmt.Sprintf("challenge: nil constructor for kind %q", kind))
	}
	r.kinds[kind] = ctor
}

// Kinds returns the sorted names of all registered kinds.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.kinds))
	for kind := range r.kinds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Resolve returns the constructor for the cid's kind prefix.
func (r *Registry) Resolve(cid string) (Constructor, error) {
	kind := KindOf(cid)
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return ctor, nil
}

// Instantiate constructs an instance for the cid.
func (r *Registry) Instantiate(cid string, env *Env) (Challenge, error) {
	ctor, err := r.Resolve(cid)
	if err != nil {
		return nil, err
	}
	return ctor(cid, env), nil
}

var defaultRegistry = NewRegistry()

// Register adds a challenge kind to the process-wide registry. Challenge
// kind packages call this from init.
func Register(kind string, ctor Constructor) {
	defaultRegistry.Register(kind, ctor)
}

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
