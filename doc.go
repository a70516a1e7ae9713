// Package imcs provides an embedded columnar store with a lazy,
// tile-batched operator pipeline.
//
// Columns are positional sequences of one element kind stored in paged
// B-trees. Queries are trees of iterators that produce values in tiles and
// do no work until pulled. Reducible trees can be fanned out across a
// worker pool.
//
// # Quick Start
//
//	ctx := context.Background()
//	s, _ := imcs.Open()
//	defer s.Close()
//
//	spec := imcs.ColumnSpec{Kind: kind.Int32}
//	_ = s.Update(ctx, func(tx *imcs.Tx) error {
//	    return tx.Append(ctx, "trades-price", spec, 10, 20, 30)
//	})
//
//	_ = s.View(ctx, func(tx *imcs.Tx) error {
//	    col, _ := tx.Scan(ctx, "trades-price")
//	    sum, _ := iterator.Sum(col)
//	    out, _ := iterator.Drain[int64](sum)  // [60]
//	    fmt.Println(out)
//	    return nil
//	})
//
// # Transactions and Locking
//
// One reader/writer lock guards the store. Under PerOperation isolation
// each call takes it; under PerTransaction a View holds it shared and an
// Update holds it exclusively until Commit. Rollback only releases the
// lock, changes are not undone.
//
// # Parallel Evaluation
//
// Tx.Parallel wraps a reducible root (aggregates, hash aggregates, sort,
// top-k) whose leaves are random-access columns:
//
//	sum, _ := iterator.Sum(col)
//	par, _ := tx.Parallel(ctx, sum)
//	out, _ := iterator.Drain[int64](par)
//
// Trees with an order-dependent node above their leaves are evaluated
// single-threaded.
//
// # Disk Mode and Snapshots
//
// WithDiskPath keeps pages in a file behind an LRU frame cache;
// WithDurable flushes them on every Update commit. Store.Snapshot and
// Store.Restore copy all columns to and from any blobstore.BlobStore (local
// directory, memory, S3, MinIO).
package imcs
