package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	eventlog "github.com/steve-haar/door-simulator/internal/persistence/log"
	"github.com/steve-haar/door-simulator/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	runs, err := listRuns(*dataDir, strings.TrimSpace(*worldID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, r := range runs {
		printJSON(r)
	}
}

type runInfo struct {
	WorldID        string `json:"world_id"`
	Dir            string `json:"dir"`
	StartedAt      string `json:"started_at"`
	Seed           int64  `json:"seed"`
	LatestSnapshot string `json:"latest_snapshot,omitempty"`
}

// listRuns finds run directories under <data>/runs, oldest first. Directories
// without a readable manifest are skipped.
func listRuns(dataDir, worldID string) ([]runInfo, error) {
	base := filepath.Join(dataDir, "runs")
	worlds := []string{worldID}
	if worldID == "" {
		ents, err := os.ReadDir(base)
		if err != nil {
			return nil, err
		}
		worlds = worlds[:0]
		for _, e := range ents {
			if e.IsDir() {
				worlds = append(worlds, e.Name())
			}
		}
	}

	var out []runInfo
	for _, wid := range worlds {
		ents, err := os.ReadDir(filepath.Join(base, wid))
		if err != nil {
			return nil, err
		}
		for _, e := range ents {
			if !e.IsDir() {
				continue
			}
			dir := filepath.Join(base, wid, e.Name())
			m, err := eventlog.ReadManifest(dir)
			if err != nil {
				continue
			}
			out = append(out, runInfo{
				WorldID:        m.WorldID,
				Dir:            dir,
				StartedAt:      m.StartedAt,
				Seed:           m.Tuning.Seed,
				LatestSnapshot: snapshot.Latest(filepath.Join(dir, "snapshots")),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt != out[j].StartedAt {
			return out[i].StartedAt < out[j].StartedAt
		}
		return out[i].Dir < out[j].Dir
	})
	return out, nil
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	runDir := fs.String("run", "", "run directory (uses its latest snapshot)")
	snapPath := fs.String("snapshot", "", "snapshot path (overrides -run)")
	agents := fs.Bool("agents", false, "also print every agent")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*runDir) == "" {
			fmt.Fprintln(os.Stderr, "missing -run or -snapshot")
			os.Exit(2)
		}
		path = snapshot.Latest(filepath.Join(*runDir, "snapshots"))
		if path == "" {
			fmt.Fprintln(os.Stderr, "no snapshot found; run the server until it writes one or POST /admin/v1/snapshot")
			os.Exit(2)
		}
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	printJSON(summarize(path, snap))
	if *agents {
		for _, a := range snap.Agents {
			printJSON(a)
		}
	}
}

type snapshotSummary struct {
	Path    string            `json:"path"`
	WorldID string            `json:"world_id"`
	Tick    uint64            `json:"tick"`
	Elapsed float64           `json:"elapsed"`
	Params  snapshot.ParamsV1 `json:"params"`

	Agents  int    `json:"agents"`
	Outside int    `json:"outside"`
	Spawned uint64 `json:"spawned"`
	Removed uint64 `json:"removed"`

	ByEntry map[string]int `json:"by_entry"`
	ByExit  map[string]int `json:"by_exit"`
}

func summarize(path string, snap snapshot.SnapshotV1) snapshotSummary {
	s := snapshotSummary{
		Path:    path,
		WorldID: snap.Header.WorldID,
		Tick:    snap.Header.Tick,
		Elapsed: snap.Elapsed,
		Params:  snap.Params,
		Agents:  len(snap.Agents),
		Spawned: snap.Spawned,
		Removed: snap.RemovedTotal,
		ByEntry: map[string]int{},
		ByExit:  map[string]int{},
	}
	for _, a := range snap.Agents {
		s.ByEntry[a.Entry]++
		s.ByExit[a.Exit]++
		if len(a.Path) > 0 && a.Path[0].Outside {
			s.Outside++
		}
	}
	return s
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
