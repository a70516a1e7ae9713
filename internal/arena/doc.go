// Package arena provides a chunked bump allocator over anonymous memory
// mappings.
//
// Two owners use it: the page arena, which carves fixed-size page frames and
// never returns them until the store closes, and query scopes, which carve
// tile buffers and release them in bulk when the transaction ends.
//
// # Concurrency
//
// Allocations are safe from multiple goroutines (parallel clones share their
// scope). Reset and Free must not run concurrently with allocations.
//
// # Memory accounting
//
// Every chunk is reserved against an optional Reserver (the store's
// resource controller) before it is mapped. A refused reservation surfaces
// as errs.ErrOutOfMemory with the arena subject.
//
// Only pointer-free element types may live in arena memory; the GC does not
// scan it.
package arena
