// Package evarc provides a high-throughput columnar archive writer for
// per-event physics record collections.
//
// Collections are not declared up front. Producers attach typed record
// batches to events, the writer discovers each collection the first time
// it appears, and every collection becomes one list-of-struct column in
// the output file. A column created late is backfilled with empty cells
// so all columns always span all events, one row per event.
//
// # Architecture
//
// evarc is organized around a small number of cooperating pieces:
//
// 1. Event Store: a type-erased map of named record buffers. Producers
// materialize their records into it; the store swaps wholesale so a
// worker never copies record data.
//
// 2. Column Registry: assigns stable small integer IDs to collection
// names in first-seen order. IDs are stamped into the archive footer so
// readers can address columns compactly.
//
// 3. Row Table: an Arrow-backed accumulation of list-of-struct columns,
// encoded to Parquet or Arrow IPC on finalize.
//
// 4. Writer: drives the per-event cycle of materialize, schema sync and
// row fill, then finalizes the archive and optionally copies it to a
// local path, S3 or GCS.
//
// # Quick Start
//
// Write ten events with one cluster collection:
//
//	import (
//	    "context"
//	    "github.com/evarc/evarc/pkg/config"
//	    "github.com/evarc/evarc/pkg/datamodel"
//	    "github.com/evarc/evarc/pkg/event"
//	    "github.com/evarc/evarc/pkg/writer"
//	)
//
//	cfg := config.NewDefaultConfig()
//	cfg.Output.Path = "run42.parquet"
//
//	w, _ := writer.New(cfg, nil)
//	ctx := context.Background()
//	_ = w.Open(ctx)
//
//	for seq := uint64(0); seq < 10; seq++ {
//	    evt := event.New(seq)
//	    evt.AddProducer(datamodel.NewClusterProducer("clusterizer",
//	        []*datamodel.Cluster{{Energy: 2.5, NHits: 3}}).WithTag("EcalClusters"))
//	    _ = w.Process(ctx, evt)
//	}
//
//	_ = w.Finalize(ctx)
//
// # Key Packages
//
//	pkg/writer       - Event-to-archive writer with lifecycle management
//	pkg/rowtable     - Arrow-backed columnar row accumulation and encoding
//	pkg/eventstore   - Type-erased named record buffers with swap semantics
//	pkg/registry     - Stable collection name to ID assignment
//	pkg/datamodel    - Physics record types, producers and Arrow layouts
//	pkg/event        - Event identity and producer attachment
//	pkg/storage      - Post-finalize copy to local, S3 and GCS destinations
//	pkg/config       - Unified YAML configuration
//	pkg/errors       - Structured error handling
//	pkg/logger       - High-performance structured logging
//	pkg/metrics      - Prometheus metrics collection
//
// # Output
//
// The archive is a single Parquet or Arrow IPC file. Each collection is a
// list-of-struct column; a trailing evt_metadata column carries per-event
// JSON. The footer records build info, the collection manifest with IDs
// and types, and any run or collection parameters set during the run.
//
// Include and exclude lists filter collections by name before any column
// is created. Exclusion always wins over inclusion.
//
// # Configuration
//
// Configuration is a single YAML document with output, filter, pipeline,
// logging, metrics and tracing sections. Environment variables are
// supported with ${VAR_NAME} syntax, and command line flags override the
// file.
//
// # Development
//
// Build and exercise the CLI:
//
//	go build -o bin/evarc ./cmd/evarc
//	./bin/evarc run -n 100000 -o run.parquet
//	./bin/evarc inspect run.parquet
//	./bin/evarc bench -n 500000
package evarc
