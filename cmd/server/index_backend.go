package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/steve-haar/door-simulator/internal/persistence/indexdb"
	"github.com/steve-haar/door-simulator/internal/persistence/snapshot"
	"github.com/steve-haar/door-simulator/internal/sim/tuning"
	"github.com/steve-haar/door-simulator/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	world.AuditLogger
	Close() error
	RecordRun(worldID string, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Stats() indexdb.Stats
}

func openRuntimeIndex(runDir string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("DS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		if logger != nil {
			logger.Info("index backend disabled", "backend", backend)
		}
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(runDir, "index", "floor.sqlite")
		idx, err := indexdb.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported DS_INDEX_BACKEND: %s", backend)
	}
}
