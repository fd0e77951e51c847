package main

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/steve-haar/door-simulator/internal/persistence/snapshot"
)

type snapshotRecorder interface {
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

func runSnapshotWriter(ctx context.Context, dir string, ch <-chan snapshot.SnapshotV1, idx snapshotRecorder, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			path := snapshot.Path(dir, snap.Header.Tick)
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Error("write", "tick", snap.Header.Tick, "err", err)
				continue
			}
			logger.Debug("written", "tick", snap.Header.Tick, "agents", len(snap.Agents), "path", path)
			if idx != nil {
				idx.RecordSnapshot(path, snap)
			}
		}
	}
}
