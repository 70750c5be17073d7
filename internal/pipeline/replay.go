package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"sort"

	"github.com/evarc/evarc/pkg/config"
	"github.com/evarc/evarc/pkg/datamodel"
	"github.com/evarc/evarc/pkg/errors"
	"github.com/evarc/evarc/pkg/event"
	"github.com/evarc/evarc/pkg/json"
)

// ReplayEvent is one line of a replay file: a JSON document holding the
// event identity and its record collections. Map-valued fields are keyed
// by collection name; slice-valued fields use the type's default name.
type ReplayEvent struct {
	Seq         uint64                                 `json:"seq"`
	Run         int32                                  `json:"run"`
	Params      event.Params                           `json:"params,omitempty"`
	Headers     []*datamodel.EventHeader               `json:"headers,omitempty"`
	Particles   []*datamodel.MCParticle                `json:"particles,omitempty"`
	TrackerHits map[string][]*datamodel.TrackerHit     `json:"tracker_hits,omitempty"`
	CaloHits    map[string][]*datamodel.CalorimeterHit `json:"calo_hits,omitempty"`
	Clusters    map[string][]*datamodel.Cluster        `json:"clusters,omitempty"`
	Vertices    []*datamodel.Vertex                    `json:"vertices,omitempty"`
}

// ReplaySource reads events from a JSON lines file. Lines that fail to
// parse are reported on the error channel and skipped.
type ReplaySource struct {
	path string
}

// NewReplaySource creates a replay source for the configured path.
func NewReplaySource(cfg config.SourceConfig) *ReplaySource {
	return &ReplaySource{path: cfg.Path}
}

func (s *ReplaySource) Name() string {
	return "replay"
}

func (s *ReplaySource) Events(ctx context.Context) (<-chan *event.Event, <-chan error) {
	events := make(chan *event.Event, 64)
	errs := make(chan error, 16)

	go func() {
		defer close(events)
		defer close(errs)

		f, err := os.Open(s.path)
		if err != nil {
			errs <- errors.Wrap(err, errors.ErrorTypeStorage, "failed to open replay file").
				WithDetail("path", s.path)
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

		line := 0
		for scanner.Scan() {
			line++
			raw := bytes.TrimSpace(scanner.Bytes())
			if len(raw) == 0 {
				continue
			}

			var re ReplayEvent
			if err := json.Unmarshal(raw, &re); err != nil {
				select {
				case errs <- errors.Wrap(err, errors.ErrorTypeValidation, "bad replay line").
					WithDetail("path", s.path).
					WithDetail("line", line):
				default:
				}
				continue
			}

			select {
			case events <- re.toEvent():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- errors.Wrap(err, errors.ErrorTypeStorage, "failed to read replay file").
				WithDetail("path", s.path)
		}
	}()

	return events, errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (re *ReplayEvent) toEvent() *event.Event {
	evt := event.New(re.Seq)
	evt.Run = re.Run
	evt.Params = re.Params

	if len(re.Headers) > 0 {
		evt.AddProducer(datamodel.NewEventHeaderProducer("replay", re.Headers))
	}
	if len(re.Particles) > 0 {
		evt.AddProducer(datamodel.NewMCParticleProducer("replay", re.Particles))
	}
	for _, name := range sortedKeys(re.TrackerHits) {
		evt.AddProducer(datamodel.NewTrackerHitProducer("replay", re.TrackerHits[name]).WithTag(name))
	}
	for _, name := range sortedKeys(re.CaloHits) {
		evt.AddProducer(datamodel.NewCalorimeterHitProducer("replay", re.CaloHits[name]).WithTag(name))
	}
	for _, name := range sortedKeys(re.Clusters) {
		evt.AddProducer(datamodel.NewClusterProducer("replay", re.Clusters[name]).WithTag(name))
	}
	if len(re.Vertices) > 0 {
		evt.AddProducer(datamodel.NewVertexProducer("replay", re.Vertices))
	}
	return evt
}
