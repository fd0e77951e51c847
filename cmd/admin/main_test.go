package main

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/steve-haar/door-simulator/internal/observerproto"
	"github.com/steve-haar/door-simulator/internal/persistence/indexdb"
	eventlog "github.com/steve-haar/door-simulator/internal/persistence/log"
	"github.com/steve-haar/door-simulator/internal/persistence/snapshot"
	"github.com/steve-haar/door-simulator/internal/sim/tuning"
	"github.com/steve-haar/door-simulator/internal/sim/world"
)

func writeRun(t *testing.T, data, worldID, stamp, started string) string {
	t.Helper()
	dir := filepath.Join(data, "runs", worldID, stamp)
	if err := eventlog.WriteManifest(dir, eventlog.RunManifest{WorldID: worldID, StartedAt: started, Tuning: tuning.Defaults()}); err != nil {
		t.Fatalf("manifest: %v", err)
	}
	return dir
}

func TestListRuns(t *testing.T) {
	data := t.TempDir()
	late := writeRun(t, data, "floor_1", "20260302T000000Z", "2026-03-02T00:00:00Z")
	early := writeRun(t, data, "floor_1", "20260301T000000Z", "2026-03-01T00:00:00Z")
	other := writeRun(t, data, "floor_2", "20260301T120000Z", "2026-03-01T12:00:00Z")
	snap := snapshot.SnapshotV1{Header: snapshot.Header{Version: snapshot.Version, WorldID: "floor_1", Tick: 900}}
	if err := snapshot.WriteSnapshot(snapshot.Path(filepath.Join(late, "snapshots"), 900), snap); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	all, err := listRuns(data, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].Dir != early || all[1].Dir != other || all[2].Dir != late {
		t.Fatalf("runs=%+v", all)
	}
	if all[2].LatestSnapshot == "" || all[0].LatestSnapshot != "" {
		t.Fatalf("latest snapshots: %+v", all)
	}

	one, err := listRuns(data, "floor_2")
	if err != nil || len(one) != 1 || one[0].WorldID != "floor_2" {
		t.Fatalf("floor_2 runs=%+v err=%v", one, err)
	}
	if _, err := listRuns(data, "missing"); err == nil {
		t.Fatalf("expected error for unknown world")
	}
}

func TestSummarize(t *testing.T) {
	snap := snapshot.SnapshotV1{
		Header:  snapshot.Header{Version: snapshot.Version, WorldID: "floor_1", Tick: 42},
		Spawned: 5,
		Agents: []snapshot.AgentV1{
			{ID: "A000003", Entry: "north_door", Exit: "east_door", Path: []snapshot.WaypointV1{{Outside: true}, {}}},
			{ID: "A000004", Entry: "north_door", Exit: "west_door", Path: []snapshot.WaypointV1{{}}},
			{ID: "A000005", Entry: "south_door", Exit: "east_door", Path: []snapshot.WaypointV1{{}}},
		},
	}
	s := summarize("x.snap.zst", snap)
	if s.Tick != 42 || s.Agents != 3 || s.Outside != 1 || s.Spawned != 5 {
		t.Fatalf("summary=%+v", s)
	}
	if s.ByEntry["north_door"] != 2 || s.ByExit["east_door"] != 2 || s.ByExit["west_door"] != 1 {
		t.Fatalf("by entry=%v by exit=%v", s.ByEntry, s.ByExit)
	}
}

func TestRunQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floor.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.RecordRun("floor_1", tuning.Defaults()); err != nil {
		t.Fatalf("record run: %v", err)
	}
	_ = idx.WriteTick(world.TickLogEntry{
		Tick: 0,
		Created: []observerproto.AgentState{
			{ID: "A000001", EntryPortal: "north_door", ExitPortal: "east_door"},
			{ID: "A000002", EntryPortal: "east_door", ExitPortal: "north_door"},
			{ID: "A000003", EntryPortal: "north_door", ExitPortal: "south_door"},
		},
		Agents: 3,
		Digest: "d0",
	})
	_ = idx.WriteTick(world.TickLogEntry{Tick: 1, Removed: []string{"A000002"}, Agents: 2, Digest: "d1"})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var rows []any
	collect := func(v any) { rows = append(rows, v) }

	if err := runQuery(db, "ticks", 1, collect); err != nil {
		t.Fatalf("ticks: %v", err)
	}
	if len(rows) != 1 || rows[0].(tickRow).Digest != "d1" {
		t.Fatalf("ticks=%+v", rows)
	}

	rows = nil
	if err := runQuery(db, "portals", 0, collect); err != nil {
		t.Fatalf("portals: %v", err)
	}
	want := map[string]portalRow{
		"east_door":  {Portal: "east_door", Entries: 1, Exits: 1},
		"north_door": {Portal: "north_door", Entries: 2, Exits: 1},
		"south_door": {Portal: "south_door", Entries: 0, Exits: 1},
	}
	if len(rows) != len(want) {
		t.Fatalf("portals=%+v", rows)
	}
	for _, r := range rows {
		p := r.(portalRow)
		if want[p.Portal] != p {
			t.Fatalf("portal row=%+v want %+v", p, want[p.Portal])
		}
	}

	rows = nil
	if err := runQuery(db, "removals", 10, collect); err != nil || len(rows) != 1 {
		t.Fatalf("removals=%+v err=%v", rows, err)
	}
	if err := runQuery(db, "boards", 10, collect); err == nil {
		t.Fatalf("expected unknown query error")
	}
}

func TestAdminCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/v1/snapshot" || r.Method != http.MethodPost {
			http.Error(rw, "nope", http.StatusNotFound)
			return
		}
		_, _ = rw.Write([]byte(`{"tick":7}`))
	}))
	defer srv.Close()

	body, status, err := adminCall(http.MethodPost, srv.URL+"/", "/admin/v1/snapshot", time.Second)
	if err != nil || status != http.StatusOK || string(body) != `{"tick":7}` {
		t.Fatalf("body=%q status=%d err=%v", body, status, err)
	}
	_, status, err = adminCall(http.MethodGet, srv.URL, "/admin/v1/state", time.Second)
	if err != nil || status != http.StatusNotFound {
		t.Fatalf("status=%d err=%v", status, err)
	}
}
