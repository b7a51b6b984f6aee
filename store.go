package offload

import "context"

// LoadArgs carries one reference token to a store's read-side probes and
// operations. Built fresh per resolution, never retained.
type LoadArgs struct {
	Reference any
}

// StoreArgs carries one payload and its serialized size to a store's
// write-side probes and operations.
type StoreArgs struct {
	Payload  any
	ByteSize int64
}

// Store is a pluggable payload backend. Implementations are long-lived and
// shared across invocations, so they must be safe for concurrent use and
// keep no per-call state outside the passed args.
//
// CanLoad answers from the token's shape alone whether this store can
// resolve it, without I/O. It may return an error instead when the token
// carries this store's discriminator but is internally malformed; a store
// claiming a broken token should fail loudly rather than let another store
// wrongly attempt it. CanStore is a pure capacity/type check, also without
// I/O. Load and Store perform the actual transfer and are only called after
// the matching probe succeeded for the same args.
type Store interface {
	Name() string

	CanLoad(args LoadArgs) (bool, error)
	Load(ctx context.Context, args LoadArgs) (any, error)

	CanStore(args StoreArgs) bool
	Store(ctx context.Context, args StoreArgs) (any, error)
}

// Deleter is the optional delete capability a Store may implement to
// support cleanup after a successful load. Discovered by type assertion.
type Deleter interface {
	CanDelete(args LoadArgs) bool
	Delete(ctx context.Context, args LoadArgs) error
}
