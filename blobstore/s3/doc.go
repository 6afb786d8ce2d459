// Package s3 stores tiles in an Amazon S3 bucket.
//
// Tile blobs are small and read whole, so Open issues one GetObject per
// blob. Blobs above the multipart threshold (large rasters) are uploaded
// with the SDK's multipart uploader.
//
//	store, err := s3.New(ctx, "charts", s3.WithPrefix("baltic/"))
//	ts, err := geotile.Open(ctx, geotile.WithBlobStore(store))
package s3
