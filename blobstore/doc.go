// Package blobstore is the storage abstraction behind tile persistence.
//
// A tile is a directory-like prefix ("07/2/0/") holding an index record and
// one payload blob per attached layer kind. [Store] only needs whole-blob
// reads and atomic replacement, which every backend here provides.
//
// # Built-in Implementations
//
//   - [LocalStore]: local directory, mmap reads, temp-file + rename writes
//   - [MemoryStore]: in-memory, for tests
//   - s3.Store: Amazon S3 (aws-sdk-go-v2)
//   - minio.Store: MinIO and other S3-compatible endpoints
//   - redis.Store: Redis, for shared hot caches of small tiles
package blobstore
