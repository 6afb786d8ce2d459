// Package minio stores tiles on MinIO or any S3-compatible server, which is
// the usual choice for a vessel's on-board object store.
package minio
