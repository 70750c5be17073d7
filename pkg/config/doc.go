// Package config provides unified configuration management for evarc.
//
// A single Config structure carries everything a run needs: the archive
// output settings, collection filters, pipeline sizing, and the
// observability stack. Sections come with production defaults from
// NewDefaultConfig and are overridden by YAML files and flags.
//
// # Loading
//
//	cfg, err := config.LoadConfig("run.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// YAML files may reference environment variables with ${VAR_NAME}; they
// are substituted before parsing.
//
// # Collection filters
//
// The include/exclude lists mirror the writer's contract: exclusion wins
// over inclusion, an empty include list means "write everything", and a
// non-empty include list admits only the names it lists.
//
//	f := config.ParseFilter("Clusters,TrackerHits", "DebugHits")
//	f.Allows("Clusters")  // true
//	f.Allows("DebugHits") // false
//	f.Allows("Vertices")  // false: include list is non-empty
package config
