package s3

import (
	"context"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hupe1980/imcs/blobstore"
)

// Store implements blobstore.BlobStore on an S3 bucket.
type Store struct {
	client   Client
	bucket   string
	root     string
	cfg      UploadConfig
	uploader *manager.Uploader
}

// NewStore returns a store with DefaultUploadConfig. Object keys are root
// joined with the blob name.
func NewStore(client Client, bucket, root string) *Store {
	return NewStoreWithConfig(client, bucket, root, DefaultUploadConfig())
}

// NewStoreWithConfig returns a store with custom upload settings.
func NewStoreWithConfig(client Client, bucket, root string, cfg UploadConfig) *Store {
	return &Store{
		client:   client,
		bucket:   bucket,
		root:     root,
		cfg:      cfg,
		uploader: cfg.uploader(client),
	}
}

func (s *Store) key(name string) string { return path.Join(s.root, name) }

// Open heads the object and returns a handle reading it with ranged GETs.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return headObject(ctx, s.client, s.bucket, s.key(name))
}

// Create streams into the transfer manager. The object appears on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return startUpload(ctx, s.uploader, s.bucket, s.key(name), s.cfg.EnableChecksum), nil
}

// Put uploads data in one request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	return putObject(ctx, s.client, s.bucket, s.key(name), data, s.cfg.EnableChecksum)
}

// Delete removes an object. S3 reports success for missing keys.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}

// List returns the sorted names starting with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return listKeys(ctx, s.client, s.bucket, s.key(prefix), s.root)
}
