// Package s3 keeps snapshots in Amazon S3 or an S3-compatible endpoint.
//
//	store, err := s3.New(ctx, "backups",
//	    s3.WithPrefix("imcs"),
//	    s3.WithRegion("eu-central-1"),
//	)
//	err = db.Snapshot(ctx, store, "nightly")
//
// Reads are ranged GETs pinned to the ETag seen on open. Create streams
// through the transfer manager; Put is a single request carrying a CRC32-C
// checksum.
package s3
