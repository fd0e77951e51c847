package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	runDir := fs.String("run", "", "run directory (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "ticks"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*runDir) == "" {
			fmt.Fprintln(os.Stderr, "missing -run or -db")
			os.Exit(2)
		}
		path = filepath.Join(*runDir, "index", "floor.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, *limit, printJSON); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, "usage: admin db [-run DIR|-db PATH] [-limit N] ticks|spawns|removals|params|snapshots|portals|meta")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type tickRow struct {
	Tick    int64   `json:"tick"`
	Digest  string  `json:"digest"`
	Delta   float64 `json:"delta"`
	Elapsed float64 `json:"elapsed"`
	Agents  int     `json:"agents"`
	Created int     `json:"created"`
	Removed int     `json:"removed"`
}

type spawnRow struct {
	Tick    int64   `json:"tick"`
	AgentID string  `json:"agent_id"`
	Entry   string  `json:"entry_portal"`
	Exit    string  `json:"exit_portal"`
	X       float64 `json:"x"`
	Z       float64 `json:"z"`
}

type removalRow struct {
	Tick    int64  `json:"tick"`
	AgentID string `json:"agent_id"`
}

type paramRow struct {
	Tick   int64  `json:"tick"`
	Seq    int    `json:"seq"`
	Source string `json:"source"`
	Before string `json:"before_json"`
	After  string `json:"after_json"`
}

type snapshotRow struct {
	Tick    int64   `json:"tick"`
	Path    string  `json:"path"`
	Elapsed float64 `json:"elapsed"`
	Agents  int     `json:"agents"`
	Spawned int64   `json:"spawned"`
	Removed int64   `json:"removed"`
}

type portalRow struct {
	Portal  string `json:"portal"`
	Entries int    `json:"entries"`
	Exits   int    `json:"exits"`
}

type metaRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// runQuery runs one of the named index queries and hands every row to emit.
func runQuery(db *sql.DB, q string, limit int, emit func(any)) error {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
		scan func(*sql.Rows) (any, error)
	)
	switch q {
	case "ticks":
		rows, err = db.Query(`SELECT tick,digest,delta,elapsed,agents,created,removed FROM ticks ORDER BY tick DESC LIMIT ?`, limit)
		scan = func(rs *sql.Rows) (any, error) {
			var r tickRow
			err := rs.Scan(&r.Tick, &r.Digest, &r.Delta, &r.Elapsed, &r.Agents, &r.Created, &r.Removed)
			return r, err
		}
	case "spawns":
		rows, err = db.Query(`SELECT tick,agent_id,entry_portal,exit_portal,x,z FROM spawns ORDER BY tick DESC, agent_id DESC LIMIT ?`, limit)
		scan = func(rs *sql.Rows) (any, error) {
			var r spawnRow
			err := rs.Scan(&r.Tick, &r.AgentID, &r.Entry, &r.Exit, &r.X, &r.Z)
			return r, err
		}
	case "removals":
		rows, err = db.Query(`SELECT tick,agent_id FROM removals ORDER BY tick DESC, agent_id DESC LIMIT ?`, limit)
		scan = func(rs *sql.Rows) (any, error) {
			var r removalRow
			err := rs.Scan(&r.Tick, &r.AgentID)
			return r, err
		}
	case "params":
		rows, err = db.Query(`SELECT tick,seq,source,before_json,after_json FROM param_changes ORDER BY tick DESC, seq DESC LIMIT ?`, limit)
		scan = func(rs *sql.Rows) (any, error) {
			var r paramRow
			err := rs.Scan(&r.Tick, &r.Seq, &r.Source, &r.Before, &r.After)
			return r, err
		}
	case "snapshots":
		rows, err = db.Query(`SELECT tick,path,elapsed,agents,spawned,removed FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
		scan = func(rs *sql.Rows) (any, error) {
			var r snapshotRow
			err := rs.Scan(&r.Tick, &r.Path, &r.Elapsed, &r.Agents, &r.Spawned, &r.Removed)
			return r, err
		}
	case "portals":
		rows, err = db.Query(`SELECT portal, SUM(entries), SUM(exits) FROM (
			SELECT entry_portal AS portal, 1 AS entries, 0 AS exits FROM spawns
			UNION ALL
			SELECT exit_portal AS portal, 0 AS entries, 1 AS exits FROM spawns
		) GROUP BY portal ORDER BY portal LIMIT ?`, limit)
		scan = func(rs *sql.Rows) (any, error) {
			var r portalRow
			err := rs.Scan(&r.Portal, &r.Entries, &r.Exits)
			return r, err
		}
	case "meta":
		rows, err = db.Query(`SELECT key,value FROM meta ORDER BY key LIMIT ?`, limit)
		scan = func(rs *sql.Rows) (any, error) {
			var r metaRow
			err := rs.Scan(&r.Key, &r.Value)
			return r, err
		}
	default:
		return fmt.Errorf("unknown query: %s", q)
	}
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		emit(r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	return nil
}
