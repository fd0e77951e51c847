package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/steve-haar/door-simulator/internal/sim/tuning"
)

const ManifestName = "run.json"

// RunManifest is written once per run next to the logs. Together with the tick
// log it is everything needed to replay the run.
type RunManifest struct {
	WorldID   string        `json:"world_id"`
	StartedAt string        `json:"started_at"`
	Tuning    tuning.Tuning `json:"tuning"`
}

func WriteManifest(runDir string, m RunManifest) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(runDir, ManifestName+".tmp")
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(runDir, ManifestName))
}

func ReadManifest(runDir string) (RunManifest, error) {
	var m RunManifest
	b, err := os.ReadFile(filepath.Join(runDir, ManifestName))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("%s: %w", ManifestName, err)
	}
	if m.WorldID == "" {
		return m, fmt.Errorf("%s: missing world_id", ManifestName)
	}
	m.Tuning.Normalize()
	return m, nil
}
