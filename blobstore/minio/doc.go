// Package minio provides a blobstore.Store implementation using the MinIO
// client. It works with MinIO and other S3-compatible servers such as Ceph,
// SeaweedFS and Garage, without AWS dependencies.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "sieve", "runs/")
//	err = checkpoint.Save(ctx, store, "dim60.ckpt", snap, checkpoint.Zstd)
package minio
