package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func testSnapshot(tick uint64) SnapshotV1 {
	return SnapshotV1{
		Header:    Header{Version: Version, WorldID: "floor_1", Tick: tick},
		Seed:      1337,
		TickRate:  30,
		Elapsed:   12.5,
		Params:    ParamsV1{Speed: 2, RatePerMinute: 30, WallHeight: 3},
		Scheduler: SchedulerV1{Created: 6, Origin: 0.25},
		RNGDraws:  12,
		Spawned:   6,
		Agents: []AgentV1{{
			ID:    "A000006",
			Num:   6,
			X:     1,
			Z:     -2,
			Path:  []WaypointV1{{X: 0, Z: -22, Outside: true}, {X: 21, Z: 0}},
			Entry: "north_door",
			Exit:  "east_door",
		}},
	}
}

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, 375)
	if err := WriteSnapshot(path, testSnapshot(375)); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header.Tick != 375 || got.Scheduler.Created != 6 || got.RNGDraws != 12 {
		t.Fatalf("snapshot=%+v", got)
	}
	if len(got.Agents) != 1 || len(got.Agents[0].Path) != 2 || !got.Agents[0].Path[0].Outside {
		t.Fatalf("agents=%+v", got.Agents)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestReadSnapshot_RejectsVersion(t *testing.T) {
	path := Path(t.TempDir(), 1)
	s := testSnapshot(1)
	s.Header.Version = 99
	if err := WriteSnapshot(path, s); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if Latest(dir) != "" {
		t.Fatalf("empty dir should have no latest")
	}
	for _, tick := range []uint64{90, 900, 300} {
		if err := WriteSnapshot(Path(dir, tick), testSnapshot(tick)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes"+Suffix), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Latest(dir); got != Path(dir, 900) {
		t.Fatalf("latest=%s", got)
	}
}
