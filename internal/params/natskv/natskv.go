// Package natskv exposes the runtime parameters as a JetStream key-value entry:
// any client that puts a PARAMS_UPDATE message under the key changes the running
// simulation between ticks.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/steve-haar/door-simulator/internal/protocol"
	"github.com/steve-haar/door-simulator/internal/sim/world"
)

const (
	DefaultBucket = "door_sim_params"
	DefaultKey    = "params"
)

// ParamSink is the part of the world the watcher drives.
type ParamSink interface {
	RequestParams(ctx context.Context, u world.ParamUpdate) (world.Params, error)
	Params() world.Params
}

// OpenBucket returns the bucket, creating it on first use.
func OpenBucket(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("kv bucket %s: %w", bucket, err)
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "door simulator runtime parameters",
		History:     5,
	})
	if err != nil {
		return nil, fmt.Errorf("create kv bucket %s: %w", bucket, err)
	}
	return kv, nil
}

type Watcher struct {
	kv   jetstream.KeyValue
	sink ParamSink
	log  *log.Logger
	key  string

	applied  atomic.Uint64
	rejected atomic.Uint64
}

func NewWatcher(kv jetstream.KeyValue, sink ParamSink, logger *log.Logger) *Watcher {
	return &Watcher{kv: kv, sink: sink, log: logger, key: DefaultKey}
}

// Publish writes p under the key so other clients can read the current values.
func (w *Watcher) Publish(ctx context.Context, p world.Params) error {
	b, err := json.Marshal(protocol.ParamsUpdateMsg{
		Type:            protocol.TypeParamsUpdate,
		ProtocolVersion: protocol.Version,
		Speed:           &p.SpeedUnitsPerSec,
		RatePerMinute:   &p.RatePerMinute,
		WallHeight:      &p.WallHeight,
	})
	if err != nil {
		return err
	}
	if _, err := w.kv.Put(ctx, w.key, b); err != nil {
		return fmt.Errorf("put %s: %w", w.key, err)
	}
	return nil
}

// Start begins watching for new revisions; it returns once the watch is in place.
// Entries written before Start are not replayed.
func (w *Watcher) Start(ctx context.Context) error {
	kw, err := w.kv.Watch(ctx, w.key, jetstream.UpdatesOnly())
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.key, err)
	}
	go w.loop(ctx, kw)
	return nil
}

func (w *Watcher) loop(ctx context.Context, kw jetstream.KeyWatcher) {
	defer kw.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-kw.Updates():
			if !ok {
				return
			}
			if e == nil || e.Operation() != jetstream.KeyValuePut {
				continue
			}
			w.apply(ctx, e)
		}
	}
}

func (w *Watcher) apply(ctx context.Context, e jetstream.KeyValueEntry) {
	msg, err := protocol.DecodeParamsUpdate(e.Value())
	if err != nil {
		w.rejected.Add(1)
		if w.log != nil {
			w.log.Warn("rejected params entry", "revision", e.Revision(), "err", err)
		}
		return
	}
	u := world.ParamUpdate{
		Speed:      msg.Speed,
		Rate:       msg.RatePerMinute,
		WallHeight: msg.WallHeight,
		Source:     fmt.Sprintf("nats:%s#%d", e.Key(), e.Revision()),
	}
	p, err := w.sink.RequestParams(ctx, u)
	if err != nil {
		if w.log != nil {
			w.log.Warn("apply params entry", "revision", e.Revision(), "err", err)
		}
		return
	}
	w.applied.Add(1)
	if w.log != nil {
		w.log.Info("params from kv", "revision", e.Revision(), "speed", p.SpeedUnitsPerSec, "rate_per_minute", p.RatePerMinute, "wall_height", p.WallHeight)
	}
}

func (w *Watcher) Applied() uint64  { return w.applied.Load() }
func (w *Watcher) Rejected() uint64 { return w.rejected.Load() }
