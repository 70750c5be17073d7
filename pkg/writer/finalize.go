package writer

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/evarc/evarc/pkg/datamodel"
	"github.com/evarc/evarc/pkg/errors"
	"github.com/evarc/evarc/pkg/event"
	"github.com/evarc/evarc/pkg/json"
	"github.com/evarc/evarc/pkg/metrics"
	"github.com/evarc/evarc/pkg/rowtable"
	"github.com/evarc/evarc/pkg/storage"
)

// Archive footer metadata keys.
const (
	MetaKeyBuildInfo   = "evarc.build_info"
	MetaKeyCollections = "evarc.collections"
	MetaKeyRunParams   = "evarc.run_metadata"
	MetaKeyCollParams  = "evarc.col_metadata"
)

// CollectionInfo is one collection's entry in the archive manifest.
type CollectionInfo struct {
	Name     string `json:"name"`
	ID       int32  `json:"id"`
	Type     string `json:"type"`
	IsSubset bool   `json:"is_subset"`
}

type manifest struct {
	BuildInfo        BuildInfo               `json:"build_info"`
	Path             string                  `json:"path"`
	Format           string                  `json:"format"`
	Rows             int64                   `json:"rows"`
	BytesWritten     int64                   `json:"bytes_written"`
	Collections      []CollectionInfo        `json:"collections"`
	RunParams        map[int32]event.Params  `json:"run_metadata,omitempty"`
	CollectionParams map[string]event.Params `json:"collection_metadata,omitempty"`
	CreatedAt        string                  `json:"created_at"`
}

// Finalize encodes the archive, stamps collection and run metadata into
// the footer, writes the sidecar manifest and performs the configured
// post-close copy. The writer ends Closed; Finalize cannot be retried.
func (w *Writer) Finalize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.State() {
	case StateOpen, StateProcessing:
	default:
		return errors.New(errors.ErrorTypeState, "writer cannot finalize").
			WithDetail("state", w.State().String())
	}
	w.setState(StateFinalizing)

	start := time.Now()
	cols := w.collectionManifest()
	if err := w.stampMetadata(cols); err != nil {
		return err
	}

	stats, err := w.table.Finalize(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFinalize, "failed to encode archive").
			WithDetail("path", w.path)
	}
	w.coll.WroteBytes("archive", stats.BytesWritten)
	metrics.FinalizeDuration.Observe(time.Since(start).Seconds())

	if err := w.writeManifest(cols, stats); err != nil {
		return err
	}

	closeErr := w.table.Close()
	w.table = nil

	if w.cfg.Output.CopyEnabled() {
		res, err := storage.Copy(ctx, w.path, &w.cfg.Output)
		if err != nil {
			w.setState(StateClosed)
			return errors.Wrap(err, errors.ErrorTypeStorage, "archive copy failed").
				WithDetail("destination", w.cfg.Output.CopyTo)
		}
		w.coll.WroteBytes("copy", res.Bytes)
		w.log.Info("archive written and copied",
			zap.String("path", w.path),
			zap.String("copy", res.Destination),
			zap.Int64("rows", stats.Rows),
			zap.Int("columns", stats.Columns),
			zap.Int64("bytes", stats.BytesWritten),
			zap.Int64("copy_bytes", res.Bytes),
			zap.Duration("copy_duration", res.Duration))
	} else {
		w.log.Info("archive written",
			zap.String("path", w.path),
			zap.Int64("rows", stats.Rows),
			zap.Int("columns", stats.Columns),
			zap.Int64("bytes", stats.BytesWritten))
	}

	w.setState(StateClosed)
	return closeErr
}

func (w *Writer) collectionManifest() []CollectionInfo {
	names := w.reg.Names()
	cols := make([]CollectionInfo, 0, len(names))
	for _, name := range names {
		typeName, ok := w.table.ColumnType(name)
		if !ok {
			// Registered but never materialized into a physical column.
			w.log.Debug("collection registered but never written",
				zap.String("collection", name))
			continue
		}
		cols = append(cols, CollectionInfo{
			Name: name,
			ID:   w.reg.Register(name),
			Type: datamodel.CollectionTypeName(typeName),
			// TODO: derive subset status once partial collection writes
			// are supported; every collection is recorded as complete.
			IsSubset: false,
		})
	}
	return cols
}

func (w *Writer) stampMetadata(cols []CollectionInfo) error {
	stamp := func(key string, v interface{}) error {
		data, err := json.Marshal(v)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFinalize, "failed to encode archive metadata").
				WithDetail("key", key)
		}
		w.table.SetMetadata(key, string(data))
		return nil
	}

	if err := stamp(MetaKeyBuildInfo, w.buildInfo); err != nil {
		return err
	}
	if err := stamp(MetaKeyCollections, cols); err != nil {
		return err
	}
	if len(w.runParams) > 0 {
		if err := stamp(MetaKeyRunParams, w.runParams); err != nil {
			return err
		}
	}
	if len(w.collParams) > 0 {
		if err := stamp(MetaKeyCollParams, w.collParams); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeManifest(cols []CollectionInfo, stats rowtable.FinalizeStats) error {
	m := manifest{
		BuildInfo:        w.buildInfo,
		Path:             w.path,
		Format:           w.cfg.Output.Format,
		Rows:             stats.Rows,
		BytesWritten:     stats.BytesWritten,
		Collections:      cols,
		RunParams:        w.runParams,
		CollectionParams: w.collParams,
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFinalize, "failed to encode manifest")
	}

	path := w.path + ".manifest.json"
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to write manifest").
			WithDetail("path", path)
	}
	return nil
}
