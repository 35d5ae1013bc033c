package domain

import (
	"fmt"
	"maps"
	"slices"
)

// Context is the shared mapping written by expressions and freshness checks and
// read by guards, deferred steps and assertions. Each key is written at most once.
//
// Context is not safe for concurrent use. The executor is its only writer.
type Context struct {
	values map[string]any
}

// NewContext returns a Context pre-populated with seed.
func NewContext(seed map[string]any) *Context {
	c := &Context{values: make(map[string]any, len(seed))}
	maps.Copy(c.values, seed)
	return c
}

// Put writes key. Writing a key twice returns ErrKeyRewritten.
func (c *Context) Put(key string, v any) error {
	if _, ok := c.values[key]; ok {
		return fmt.Errorf("%w: %q", ErrKeyRewritten, key)
	}
	c.values[key] = v
	return nil
}

// Value reads key. Reading a key nobody wrote returns ErrMissingKey.
func (c *Context) Value(key string) (any, error) {
	v, ok := c.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	return v, nil
}

func (c *Context) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Keys returns the written keys in lexical order.
func (c *Context) Keys() []string {
	return slices.Sorted(maps.Keys(c.values))
}

// Snapshot returns a shallow copy of the current values.
func (c *Context) Snapshot() map[string]any {
	return maps.Clone(c.values)
}

// Clone returns an independent Context with the same values.
func (c *Context) Clone() *Context {
	return NewContext(c.values)
}

// Key is a typed handle on a Context entry.
type Key[T any] struct {
	name string
}

func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

func (k Key[T]) Name() string { return k.name }

// Set writes v under k.
func Set[T any](c *Context, k Key[T], v T) error {
	return c.Put(k.name, v)
}

// Get reads k and checks the stored type.
func Get[T any](c *Context, k Key[T]) (T, error) {
	var zero T
	raw, err := c.Value(k.name)
	if err != nil {
		return zero, err
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q holds %T, want %T", ErrKeyType, k.name, raw, zero)
	}
	return v, nil
}
