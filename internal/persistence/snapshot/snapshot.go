package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const (
	Version = 1
	Suffix  = ".snap.zst"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	// Tick is the next tick the restored world will run.
	Tick uint64 `json:"tick"`
}

// SnapshotV1 is the complete mutable state of a floor between two ticks.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed     int64   `json:"seed"`
	TickRate int     `json:"tick_rate_hz"`
	Elapsed  float64 `json:"elapsed"`

	Params    ParamsV1    `json:"params"`
	Scheduler SchedulerV1 `json:"scheduler"`

	// RNGDraws is how many values the portal sampler has consumed since seeding.
	RNGDraws uint64 `json:"rng_draws"`

	Spawned      uint64    `json:"spawned"`
	RemovedTotal uint64    `json:"removed_total"`
	Agents       []AgentV1 `json:"agents"`
}

type ParamsV1 struct {
	Speed         float64 `json:"speed"`
	RatePerMinute float64 `json:"rate_per_minute"`
	WallHeight    float64 `json:"wall_height"`
}

type SchedulerV1 struct {
	Created int     `json:"created"`
	Origin  float64 `json:"origin"`
}

type AgentV1 struct {
	ID        string       `json:"id"`
	Num       uint64       `json:"num"`
	X         float64      `json:"x"`
	Z         float64      `json:"z"`
	Path      []WaypointV1 `json:"path"`
	Entry     string       `json:"entry_portal"`
	Exit      string       `json:"exit_portal"`
	SpawnTick uint64       `json:"spawn_tick"`
}

type WaypointV1 struct {
	X       float64 `json:"x"`
	Z       float64 `json:"z"`
	Outside bool    `json:"outside,omitempty"`
}

// Path is the conventional file name for a snapshot taken before tick.
func Path(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d%s", tick, Suffix))
}

// WriteSnapshot writes a JSON header line followed by the gob-encoded snapshot,
// zstd-compressed. The file appears atomically.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The header line is for tools that only need the tick; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// Latest returns the snapshot in dir with the highest tick, or "" if there is none.
func Latest(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, Suffix) {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, Suffix), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
