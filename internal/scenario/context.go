package scenario

import (
	"context"
	"sync/atomic"
)

// Slot is the mutable scenario binding of one test's execution path. It is
// carried in a context.Context, so concurrently running tests, each with its
// own context, never observe each other's binding.
type Slot struct {
	key atomic.Pointer[Key]
}

// Set binds k. Calling Set again overwrites the binding.
func (s *Slot) Set(k Key) { s.key.Store(&k) }

// Clear removes the binding.
func (s *Slot) Clear() { s.key.Store(nil) }

// Current returns the bound key, if any.
func (s *Slot) Current() (Key, bool) {
	if s == nil {
		return "", false
	}
	k := s.key.Load()
	if k == nil {
		return "", false
	}
	return *k, true
}

type slotCtxKey struct{}

// SlotFromContext returns the slot carried by ctx, or nil.
func SlotFromContext(ctx context.Context) *Slot {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(slotCtxKey{}).(*Slot)
	return s
}

// WithSlot returns a context carrying a new, empty slot.
func WithSlot(ctx context.Context) (context.Context, *Slot) {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &Slot{}
	return context.WithValue(ctx, slotCtxKey{}, s), s
}

// SetScenario binds k on ctx's slot, attaching a slot when ctx has none.
// Use the returned context for the rest of the test.
func SetScenario(ctx context.Context, k Key) context.Context {
	s := SlotFromContext(ctx)
	if s == nil {
		ctx, s = WithSlot(ctx)
	}
	s.Set(k)
	return ctx
}

// ClearScenario removes the binding from ctx's slot. It is a no-op when ctx
// carries no slot.
func ClearScenario(ctx context.Context) {
	if s := SlotFromContext(ctx); s != nil {
		s.Clear()
	}
}

// CurrentScenario returns the scenario bound on ctx. An unset binding yields
// false and callers route to Global.
func CurrentScenario(ctx context.Context) (Key, bool) {
	return SlotFromContext(ctx).Current()
}

// Bind attaches a fresh slot holding k and returns a release func that clears
// it. Always defer the release:
//
//	ctx, release := scenario.Bind(ctx, "login")
//	defer release()
func Bind(ctx context.Context, k Key) (context.Context, func()) {
	ctx, s := WithSlot(ctx)
	s.Set(k)
	return ctx, s.Clear
}

// Scoped runs fn with k bound and clears the binding on every exit path,
// including a panic in fn, which is re-raised after clearing.
func Scoped(ctx context.Context, k Key, fn func(ctx context.Context) error) error {
	ctx, release := Bind(ctx, k)
	defer release()
	return fn(ctx)
}
