// Package cache provides the write-back LRU page cache used by the disk
// pager.
//
// Frames are kept in recency order. Modified frames are marked dirty in a
// roaring bitmap and are written back either when they are evicted or when
// the owner calls Flush, which writes every dirty frame concurrently.
//
// Frame memory is accounted against the store's resource controller.
package cache
