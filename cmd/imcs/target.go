package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/hupe1980/imcs/blobstore"
	miniostore "github.com/hupe1980/imcs/blobstore/minio"
	s3store "github.com/hupe1980/imcs/blobstore/s3"
	"github.com/hupe1980/imcs/internal/fs"
)

// targetFlags select the blob store a snapshot is written to or read from.
type targetFlags struct {
	region   string
	endpoint string
	insecure bool
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.region, "region", "", "S3 region (defaults to the AWS configuration chain)")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "S3-compatible endpoint URL")
	cmd.Flags().BoolVar(&f.insecure, "insecure", false, "Use plain HTTP for minio:// targets")
}

// target is a parsed snapshot location.
type target struct {
	scheme string // file, s3 or minio
	host   string // minio endpoint
	bucket string
	prefix string
	name   string
}

// parseTarget splits a location into store and snapshot name:
//
//	./backups/daily                 local directory ./backups, snapshot daily
//	file:///var/backups/daily
//	s3://bucket/prefix/daily
//	minio://host:9000/bucket/prefix/daily
func parseTarget(loc string) (target, error) {
	if !strings.Contains(loc, "://") {
		loc = "file://" + loc
	}
	u, err := url.Parse(loc)
	if err != nil {
		return target{}, fmt.Errorf("snapshot target %q: %w", loc, err)
	}

	t := target{scheme: u.Scheme}
	p := strings.Trim(u.Path, "/")
	switch u.Scheme {
	case "file":
		// file://relative/dir parses the first segment as host
		p = strings.TrimSuffix(u.Host+u.Path, "/")
		i := strings.LastIndexByte(p, '/')
		if i < 0 {
			t.bucket, t.name = ".", p
		} else {
			t.bucket, t.name = p[:i], p[i+1:]
			if t.bucket == "" {
				t.bucket = "/"
			}
		}
	case "s3":
		t.bucket = u.Host
		t.prefix, t.name = splitName(p)
	case "minio":
		t.host = u.Host
		bucket, rest, _ := strings.Cut(p, "/")
		t.bucket = bucket
		t.prefix, t.name = splitName(rest)
	default:
		return target{}, fmt.Errorf("snapshot target %q: unsupported scheme %q", loc, u.Scheme)
	}
	if t.bucket == "" || t.name == "" {
		return target{}, fmt.Errorf("snapshot target %q: want <store>/<name>", loc)
	}
	return t, nil
}

func splitName(p string) (string, string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

// open builds the blob store for t.
func (f *targetFlags) open(ctx context.Context, t target) (blobstore.BlobStore, error) {
	switch t.scheme {
	case "s3":
		optFns := []s3store.Option{s3store.WithPrefix(t.prefix)}
		if f.region != "" {
			optFns = append(optFns, s3store.WithRegion(f.region))
		}
		if f.endpoint != "" {
			optFns = append(optFns, s3store.WithEndpoint(f.endpoint))
		}
		return s3store.New(ctx, t.bucket, optFns...)
	case "minio":
		client, err := minio.New(t.host, &minio.Options{
			Creds:  credentials.NewStaticV4(os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), ""),
			Secure: !f.insecure,
			Region: f.region,
		})
		if err != nil {
			return nil, err
		}
		return miniostore.NewStore(client, t.bucket, t.prefix), nil
	}
	return blobstore.NewLocalStore(t.bucket, fs.Default), nil
}
