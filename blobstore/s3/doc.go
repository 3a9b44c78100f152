// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := awss3.NewFromConfig(cfg)
//	store := s3.NewStore(client, "my-bucket", "runs/")
//
// # Features
//
//   - Range reads for partial fetches
//   - CRC32C-checked single-request puts for small blobs
//   - Multipart uploads above Options.PartSize
//   - Automatic pagination for listing
package s3
