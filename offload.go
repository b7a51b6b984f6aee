package offload

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// Engine is the payload offloading middleware core. It is immutable after
// New and safe for concurrent invocations; within one invocation each phase
// processes its paths sequentially, in deterministic order, because every
// step may depend on the tree as rewritten by the previous one.
type Engine struct {
	stores   []Store
	load     LoadOptions
	offload  StoreOptions
	selector Path
	logger   *slog.Logger
}

// New builds an Engine from the given options. The selector is parsed once
// here; a selector that does not fit the path grammar is a configuration
// error.
func New(opts ...Option) (*Engine, error) {
	o := defaultEngineOptions()
	for _, opt := range opts {
		opt(o)
	}

	selector, err := ParsePath(o.Store.Selector)
	if err != nil {
		return nil, fmt.Errorf("parse selector: %w", err)
	}
	if o.Store.MinSize < 0 {
		return nil, fmt.Errorf("negative min size %d", o.Store.MinSize)
	}

	return &Engine{
		stores:   slices.Clone(o.Stores),
		load:     o.Load,
		offload:  o.Store,
		selector: selector,
		logger:   o.Logger,
	}, nil
}

// Handler is the user function the engine wraps: decoded JSON in, decoded
// JSON out.
type Handler func(ctx context.Context, payload any) (any, error)

// Wrap sequences Resolve, the handler, and Offload into one invocation.
// Hosts that manage their own lifecycle can call the two phases directly.
func (e *Engine) Wrap(next Handler) Handler {
	return func(ctx context.Context, payload any) (any, error) {
		input, err := e.Resolve(ctx, payload)
		if err != nil {
			return nil, err
		}
		output, err := next(ctx, input)
		if err != nil {
			return nil, err
		}
		return e.Offload(ctx, output)
	}
}

// Resolve replaces every reference in input with the payload loaded from
// the first configured store that claims it, returning the rewritten input.
// Non-container and empty-container inputs pass through untouched without
// probing any store. Rewrites are not rolled back when a later reference in
// the same scan fails.
func (e *Engine) Resolve(ctx context.Context, input any) (any, error) {
	if e.load.Skip || !isContainer(input) {
		return input, nil
	}

	refs := FindReferences(input)
	if len(refs) == 0 {
		return input, nil
	}
	e.logger.Debug("resolving references", "count", len(refs))

	for _, ref := range refs {
		args := LoadArgs{Reference: ref.Token}

		store, err := e.loaderFor(args)
		if err != nil {
			return nil, err
		}
		if store == nil {
			if e.load.PassThrough {
				// Unwrap the marker but keep the raw token in place.
				e.logger.Debug("no store claims reference, passing through", "path", ref.Path.String())
				input = Set(input, ref.Path, ref.Token)
				continue
			}
			return nil, fmt.Errorf("resolve %q: %w", ref.Path, ErrNoStoreCanLoad)
		}

		payload, err := store.Load(ctx, args)
		if err != nil {
			return nil, fmt.Errorf("load from %s: %w", store.Name(), err)
		}
		input = Set(input, ref.Path, payload)

		if e.load.DeleteAfterLoad {
			e.deleteLoaded(ctx, store, args)
		}
	}
	return input, nil
}

// Offload measures output against the configured threshold and, when it
// qualifies, writes every selected sub-value to the first configured store
// that accepts it, replacing each with a reference. Returns the rewritten
// output. Rewrites are not rolled back when a later path in the same pass
// fails.
func (e *Engine) Offload(ctx context.Context, output any) (any, error) {
	if e.offload.Skip || !isSelectable(output) {
		return output, nil
	}

	total, err := ByteSize(output)
	if err != nil {
		return nil, err
	}
	if total < e.offload.MinSize {
		e.logger.Debug("output below threshold", "size", total, "min_size", e.offload.MinSize)
		return output, nil
	}

	// The selector's concrete chain must address an existing location: the
	// whole path for a wildcard-free selector, the segments before the first
	// wildcard otherwise. A wildcard over an existing but empty array is a
	// legal no-op; a chain that never resolves is a configuration error.
	if len(e.selector) > 0 {
		if _, ok := Get(output, e.selector.wildcardPrefix()); !ok {
			return nil, fmt.Errorf("selector %q: %w", e.offload.Selector, ErrSelectorNotFound)
		}
	}

	for _, path := range Expand(output, e.selector) {
		sub, _ := Get(output, path)

		size, err := ByteSize(sub)
		if err != nil {
			return nil, err
		}
		args := StoreArgs{Payload: sub, ByteSize: size}

		store := e.storerFor(args)
		if store == nil {
			if e.offload.PassThrough {
				e.logger.Debug("no store accepts payload, passing through", "path", path.String())
				continue
			}
			return nil, fmt.Errorf("offload %q: %w", path, ErrNoStoreCanStore)
		}

		token, err := store.Store(ctx, args)
		if err != nil {
			return nil, fmt.Errorf("store to %s: %w", store.Name(), err)
		}
		e.logger.Debug("offloaded payload", "store", store.Name(), "path", path.String(), "size", size)
		output = Set(output, path, NewReference(token))
	}
	return output, nil
}

// loaderFor returns the first store claiming the reference, nil when none
// does. A probe error is invocation-fatal: a store that recognizes its own
// discriminator on a malformed token must fail loudly.
func (e *Engine) loaderFor(args LoadArgs) (Store, error) {
	for _, s := range e.stores {
		ok, err := s.CanLoad(args)
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", s.Name(), err)
		}
		if ok {
			return s, nil
		}
	}
	return nil, nil
}

func (e *Engine) storerFor(args StoreArgs) Store {
	for _, s := range e.stores {
		if s.CanStore(args) {
			return s
		}
	}
	return nil
}

// deleteLoaded removes the stored payload after a successful load when the
// store supports it. Failures are logged and swallowed: cleanup must never
// fail the invocation.
func (e *Engine) deleteLoaded(ctx context.Context, store Store, args LoadArgs) {
	d, ok := store.(Deleter)
	if !ok || !d.CanDelete(args) {
		return
	}
	if err := d.Delete(ctx, args); err != nil {
		e.logger.Warn("delete after load failed", "store", store.Name(), "error", err)
	}
}

// isContainer reports whether v is a non-empty object or array, the only
// shapes that can carry references.
func isContainer(v any) bool {
	switch val := v.(type) {
	case map[string]any:
		return len(val) > 0
	case []any:
		return len(val) > 0
	}
	return false
}

// isSelectable reports whether v can be measured and addressed for
// offloading: an object, an array, or a string.
func isSelectable(v any) bool {
	switch v.(type) {
	case map[string]any, []any, string:
		return true
	}
	return false
}
