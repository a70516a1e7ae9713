// Package minio keeps snapshots on a MinIO server or another S3-compatible
// endpoint through the MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	store := miniostore.NewStore(client, "backups", "imcs")
//	err = db.Snapshot(ctx, store, "nightly")
package minio
