package quanta

import (
	"errors"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

type (
	// NodeFactory creates a new node running on the given clock.
	NodeFactory func(clock *Clock) (Node, error)

	// Registry maps node names to factories. The host constructs one at
	// startup and fills it with explicit Register calls; Names lists the
	// nodes in the order they were registered.
	Registry struct {
		mu        sync.Mutex
		factories *linkedhashmap.Map // string -> NodeFactory
	}
)

var (
	ErrUnknownNode   = errors.New("unknown node")
	ErrDuplicateNode = errors.New("node already registered")
)

func NewRegistry() *Registry {
	return &Registry{factories: linkedhashmap.New()}
}

func (r *Registry) Register(name string, factory NodeFactory) error {
	if factory == nil {
		return fmt.Errorf("registering %q: nil factory", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.factories.Get(name); found {
		return fmt.Errorf("registering %q: %w", name, ErrDuplicateNode)
	}
	r.factories.Put(name, factory)
	return nil
}

// Names returns the registered node names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]string, 0, r.factories.Size())
	for _, k := range r.factories.Keys() {
		ret = append(ret, k.(string))
	}
	return ret
}

// New instantiates the node registered with the given name.
func (r *Registry) New(name string, clock *Clock) (Node, error) {
	r.mu.Lock()
	v, found := r.factories.Get(name)
	r.mu.Unlock()
	if !found {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownNode)
	}
	node, err := v.(NodeFactory)(clock)
	if err != nil {
		return nil, fmt.Errorf("creating node %q: %w", name, err)
	}
	return node, nil
}
