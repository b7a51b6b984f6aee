package offload

import "log/slog"

// LoadOptions configures the resolve phase.
type LoadOptions struct {
	// Skip disables reference resolution entirely.
	Skip bool
	// PassThrough leaves a reference unwrapped as its raw token when no
	// configured store can load it, instead of failing the invocation.
	PassThrough bool
	// DeleteAfterLoad deletes the stored payload after a successful load,
	// best-effort, when the resolving store supports deletion.
	DeleteAfterLoad bool
}

// StoreOptions configures the offload phase.
type StoreOptions struct {
	// Skip disables offloading entirely.
	Skip bool
	// PassThrough leaves a sub-value in place when no configured store
	// accepts it, instead of failing the invocation.
	PassThrough bool
	// Selector addresses the part(s) of the output to offload. The empty
	// selector is the whole output; a wildcard selects every element of
	// the array at that position.
	Selector string
	// MinSize is the byte threshold at or above which the output is
	// offloaded. SizeAlways (0) offloads everything, SizeNever nothing.
	MinSize int64
}

// EngineOptions collects the full engine configuration.
type EngineOptions struct {
	Stores []Store
	Load   LoadOptions
	Store  StoreOptions
	Logger *slog.Logger
}

// Option is a functional option for configuring New.
type Option func(*EngineOptions)

func defaultEngineOptions() *EngineOptions {
	return &EngineOptions{
		Store:  StoreOptions{MinSize: SizeStateMachine},
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithStores appends backend stores, probed in the given order.
func WithStores(stores ...Store) Option {
	return func(o *EngineOptions) { o.Stores = append(o.Stores, stores...) }
}

// WithLoadOptions replaces the resolve-phase configuration.
func WithLoadOptions(load LoadOptions) Option {
	return func(o *EngineOptions) { o.Load = load }
}

// WithStoreOptions replaces the offload-phase configuration wholesale.
// Note that a zero MinSize means "always offload".
func WithStoreOptions(store StoreOptions) Option {
	return func(o *EngineOptions) { o.Store = store }
}

// WithSelector sets the offload selector, keeping other options.
func WithSelector(selector string) Option {
	return func(o *EngineOptions) { o.Store.Selector = selector }
}

// WithMinSize sets the offload size threshold, keeping other options.
func WithMinSize(n int64) Option {
	return func(o *EngineOptions) { o.Store.MinSize = n }
}

// WithLogger sets the sink for engine diagnostics. Discarded by default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *EngineOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}
