// Package offload moves oversized function payloads into pluggable backend
// stores and transparently swaps them back in, so size-limited invocation
// pipelines (256KB state machine transitions, 6MB synchronous calls) can
// carry payloads of any size.
//
// Before a handler runs, the engine scans the input for reference markers
// and resolves each one through the first configured store that claims it.
// After the handler runs, the engine measures the output against a size
// threshold, offloads the selected part(s) to the first store that accepts
// them, and rewrites each as a reference.
//
// Basic usage:
//
//	store, _ := inline.New()
//	engine, _ := offload.New(
//		offload.WithStores(store),
//		offload.WithMinSize(offload.SizeStateMachine),
//	)
//
//	handler := engine.Wrap(func(ctx context.Context, payload any) (any, error) {
//		return process(payload), nil
//	})
//
//	out, _ := handler(ctx, input)
//
// Offloading part of the output:
//
//	store, _ := local.New("/var/payloads")
//	engine, _ := offload.New(
//		offload.WithStores(store),
//		offload.WithSelector("items[*]"),
//		offload.WithMinSize(offload.SizeAlways),
//	)
//
// A reference is the JSON object {"@offload-ref": <token>} embedded where
// the payload used to be. Token shape is store-defined and opaque to the
// engine; producer and consumer only need the same marker constant and a
// store that recognizes the token.
package offload
