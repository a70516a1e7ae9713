// Package blobstore is the object-store abstraction store snapshots are
// written to and restored from.
//
// # Built-in implementations
//
//   - MemoryStore: in-process map, used by tests
//   - LocalStore: a directory on the local file system, read through mmap
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// Names are slash separated; backends map them onto keys or relative paths.
package blobstore
