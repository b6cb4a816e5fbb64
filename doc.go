// Package quarry provides object store access for columnar query engines.
//
// Quarry implements the small capability contract such engines consume
// (list objects under a prefix, open a sized reader, read exact byte ranges)
// over S3-compatible remote storage and the local filesystem, and adds a
// Parquet scan layer that drives footer and row-group fetches through that
// contract.
//
// # Quick Start
//
// List a prefix and range-read an object:
//
//	import (
//	    "context"
//	    "github.com/quarrydata/quarry/pkg/config"
//	    s3store "github.com/quarrydata/quarry/pkg/objectstore/s3"
//	)
//
//	cfg := config.NewStoreConfig("minio")
//	cfg.Endpoint = "http://localhost:9000"
//	cfg.UsePathStyle = true
//
//	store, _ := s3store.New(cfg)
//	entries, _ := store.List(context.Background(), "bucket1/data/")
//
//	reader, _ := store.Reader(entries[0])
//	footer, _ := reader.ReadRange(reader.Size()-8, 8)
//
// # Key Packages
//
//	pkg/objectstore        - Capability contract (Store, Reader, ObjectMeta)
//	pkg/objectstore/s3     - Adapter for S3 and S3-compatible targets
//	pkg/objectstore/local  - Filesystem-backed store for tests and offline use
//	pkg/scan               - Parquet scanning through range reads
//	pkg/config             - Store configuration and YAML loading
//	pkg/errors             - Typed error handling
//	pkg/logger             - Structured logging
//	pkg/metrics            - Prometheus instrumentation
package quarry
