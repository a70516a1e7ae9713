package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/imcs/internal/hash"
)

// UploadConfig tunes how snapshots are written.
type UploadConfig struct {
	// PartSize is the multipart part size. Zero keeps 8 MiB.
	PartSize int64
	// Concurrency is the number of parts in flight. Zero keeps 5.
	Concurrency int
	// EnableChecksum has S3 verify a CRC32-C of every request body.
	EnableChecksum bool
	// LeavePartsOnError keeps the parts of a failed multipart upload
	// instead of aborting it.
	LeavePartsOnError bool
}

// DefaultUploadConfig returns the settings NewStore uses.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{PartSize: 8 << 20, Concurrency: 5, EnableChecksum: true}
}

func (c UploadConfig) uploader(client Client) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if c.PartSize > 0 {
			u.PartSize = c.PartSize
		}
		if c.Concurrency > 0 {
			u.Concurrency = c.Concurrency
		}
		u.LeavePartsOnError = c.LeavePartsOnError
	})
}

// crc32c returns data's CRC32-C as base64 of the big-endian sum, the
// encoding S3 checksum headers use.
func crc32c(data []byte) string {
	return base64.StdEncoding.EncodeToString(binary.BigEndian.AppendUint32(nil, hash.CRC32C(data)))
}

func putObject(ctx context.Context, client Client, bucket, key string, data []byte, checksum bool) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if checksum {
		in.ChecksumCRC32C = aws.String(crc32c(data))
	}
	_, err := client.PutObject(ctx, in)
	return err
}

var errAborted = errors.New("s3: upload aborted")

// upload feeds written bytes through a pipe into the transfer manager,
// which picks a single PUT or a multipart upload by size.
type upload struct {
	pw   *io.PipeWriter
	done chan error

	mu     sync.Mutex
	closed bool
	err    error
}

func startUpload(ctx context.Context, u *manager.Uploader, bucket, key string, checksum bool) *upload {
	pr, pw := io.Pipe()
	w := &upload{pw: pw, done: make(chan error, 1)}
	in := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   pr,
	}
	if checksum {
		in.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}
	go func() {
		_, err := u.Upload(ctx, in)
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w
}

func (w *upload) Write(p []byte) (int, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}
	return w.pw.Write(p)
}

// Sync is a no-op; the object exists only after Close.
func (w *upload) Sync() error { return nil }

// Close ends the stream and waits for the upload. Later calls return the
// same result.
func (w *upload) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return w.err
	}
	w.closed = true
	if w.err = w.pw.Close(); w.err != nil {
		return w.err
	}
	w.err = <-w.done
	return w.err
}

// Abort fails the stream. Unless LeavePartsOnError is set the transfer
// manager aborts any multipart upload it started.
func (w *upload) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.err = errAborted
	_ = w.pw.CloseWithError(errAborted)
	<-w.done
	return nil
}
