package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/steve-haar/door-simulator/internal/params/natskv"
	"github.com/steve-haar/door-simulator/internal/sim/world"
)

// paramsBus mirrors the runtime parameters into a JetStream KV bucket and applies
// updates written there by other clients.
type paramsBus struct {
	ns      *server.Server
	nc      *nats.Conn
	watcher *natskv.Watcher
}

// startParamsBus returns a nil bus when target is empty. "embedded" runs a
// single-node JetStream server under dataDir/nats.
func startParamsBus(ctx context.Context, target, dataDir string, w *world.World, logger *log.Logger) (*paramsBus, error) {
	if target == "" {
		return nil, nil
	}
	b := &paramsBus{}
	url := target
	if target == "embedded" {
		ns, err := server.NewServer(&server.Options{
			Host:      "127.0.0.1",
			Port:      envInt("DS_NATS_PORT", server.DEFAULT_PORT),
			JetStream: true,
			StoreDir:  filepath.Join(dataDir, "nats"),
			NoSigs:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("embedded nats: %w", err)
		}
		go ns.Start()
		if !ns.ReadyForConnections(10 * time.Second) {
			ns.Shutdown()
			return nil, fmt.Errorf("embedded nats not ready")
		}
		b.ns = ns
		url = ns.ClientURL()
	}

	nc, err := nats.Connect(url, nats.Name("door-simulator"))
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	b.nc = nc
	js, err := jetstream.New(nc)
	if err != nil {
		b.Close()
		return nil, err
	}
	kv, err := natskv.OpenBucket(ctx, js, natskv.DefaultBucket)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.watcher = natskv.NewWatcher(kv, w, logger)
	if err := b.watcher.Publish(ctx, w.Params()); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.watcher.Start(ctx); err != nil {
		b.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("params bus ready", "url", url, "bucket", natskv.DefaultBucket, "key", natskv.DefaultKey)
	}
	return b, nil
}

func (b *paramsBus) Close() {
	if b == nil {
		return
	}
	if b.nc != nil {
		b.nc.Close()
	}
	if b.ns != nil {
		b.ns.Shutdown()
	}
}
