package store

import (
	"context"
	"fmt"
	"os"
)

// BlobDriver identifies a blob backend.
type BlobDriver string

const (
	BlobFilesystem BlobDriver = "fs"
	BlobS3         BlobDriver = "s3"
	BlobMemory     BlobDriver = "memory"
)

// BlobStore holds raw input files and produced artifacts. Keys map directly
// to object keys; single bucket/root.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Driver() BlobDriver
}

// OpenBlob selects a BlobStore from environment variables.
//
//	PAVSSV_BLOB_DRIVER: fs|s3|memory (default fs)
//	PAVSSV_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 variables documented in blob_s3.go)
func OpenBlob(ctx context.Context) (BlobStore, error) {
	driver := os.Getenv("PAVSSV_BLOB_DRIVER")
	if driver == "" {
		driver = string(BlobFilesystem)
	}
	switch BlobDriver(driver) {
	case BlobFilesystem:
		return NewFilesystemBlob(os.Getenv("PAVSSV_BLOB_FS_ROOT"))
	case BlobS3:
		return OpenS3BlobFromEnv(ctx)
	case BlobMemory:
		return NewMemoryBlob(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
