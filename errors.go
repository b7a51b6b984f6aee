package offload

import "errors"

var (
	// ErrNoStoreCanLoad: a reference was found but no configured store
	// claims it, and load pass-through is disabled.
	ErrNoStoreCanLoad = errors.New("offload: no store can load reference")

	// ErrNoStoreCanStore: a payload must be offloaded but no configured
	// store accepts it, and store pass-through is disabled.
	ErrNoStoreCanStore = errors.New("offload: no store can store payload")

	// ErrSelectorNotFound: the configured selector's concrete chain (the
	// whole path, or the segments before its first wildcard) addresses a
	// location absent from the produced output.
	ErrSelectorNotFound = errors.New("offload: selector not found in output")

	// ErrUnsupportedType: size calculation on a value that is neither a
	// string nor JSON-serializable.
	ErrUnsupportedType = errors.New("offload: unsupported payload type")
)
