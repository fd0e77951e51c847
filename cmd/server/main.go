package main

import (
	"context"
	"encoding/json"
	"flag"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	eventlog "github.com/steve-haar/door-simulator/internal/persistence/log"
	"github.com/steve-haar/door-simulator/internal/persistence/snapshot"
	"github.com/steve-haar/door-simulator/internal/sim/tuning"
	"github.com/steve-haar/door-simulator/internal/sim/world"
	"github.com/steve-haar/door-simulator/internal/transport/control"
	"github.com/steve-haar/door-simulator/internal/transport/observer"
	"github.com/steve-haar/door-simulator/internal/transport/sse"
	"github.com/steve-haar/door-simulator/internal/transport/ws"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		worldID     = flag.String("world", "floor_1", "world id")
		tuningPath  = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (empty: built-in defaults)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		seed        = flag.Int64("seed", 0, "override the tuning seed (0: keep)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite index (JSONL logs are always written)")
		natsTarget  = flag.String("nats", "", `params bus: empty to disable, "embedded", or a nats:// url`)
		allowRemote = flag.Bool("allow_remote", false, "accept observer and params requests from non-loopback addresses")
		debug       = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "server",
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	if *debug {
		logger.SetLevel(log.DebugLevel)
	}

	tune, err := tuning.Load(strings.TrimSpace(*tuningPath))
	if err != nil {
		logger.Fatal("load tuning", "path", *tuningPath, "err", err)
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	w, err := tune.NewWorld(*worldID)
	if err != nil {
		logger.Fatal("world", "err", err)
	}

	startedAt := time.Now().UTC()
	runDir := filepath.Join(*dataDir, "runs", *worldID, startedAt.Format("20060102T150405Z"))
	if err := eventlog.WriteManifest(runDir, eventlog.RunManifest{
		WorldID:   *worldID,
		StartedAt: startedAt.Format(time.RFC3339),
		Tuning:    tune,
	}); err != nil {
		logger.Fatal("write run manifest", "dir", runDir, "err", err)
	}

	// Optional read-model index (does not affect sim determinism).
	idx, err := openRuntimeIndex(runDir, *disableDB, logger)
	if err != nil {
		logger.Fatal("open index backend", "err", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.RecordRun(*worldID, tune); err != nil {
			logger.Warn("index backend: record run", "err", err)
		}
	}

	tickLog := eventlog.NewTickLogger(runDir)
	auditLog := eventlog.NewAuditLogger(runDir)
	defer tickLog.Close()
	defer auditLog.Close()
	sinkErrs := newSinkErrorLog(logger.WithPrefix("sink"), 10*time.Second)
	tl := multiTickLogger{a: tickLog, errs: sinkErrs}
	al := multiAuditLogger{a: auditLog, errs: sinkErrs}
	if idx != nil {
		tl.b, al.b = idx, idx
	}
	w.SetTickLogger(tl)
	w.SetAuditLogger(al)

	ctx, cancel := signalContext()
	defer cancel()

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go runSnapshotWriter(ctx, filepath.Join(runDir, "snapshots"), snapCh, idx, logger.WithPrefix("snapshot"))

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("world stopped", "err", err)
		}
	}()

	bus, err := startParamsBus(ctx, strings.TrimSpace(*natsTarget), *dataDir, w, logger.WithPrefix("nats"))
	if err != nil {
		logger.Fatal("params bus", "err", err)
	}
	defer bus.Close()

	obsSrv := observer.NewServer(w, logger.WithPrefix("observer"))
	obsSrv.AllowRemote = *allowRemote
	ctlSrv := control.NewServer(w, logger.WithPrefix("control"))
	ctlSrv.AllowRemote = *allowRemote
	sseSrv := sse.NewServer(w, logger.WithPrefix("sse"))
	wsSrv := ws.NewServer(w, logger.WithPrefix("control"))
	wsSrv.AllowRemote = *allowRemote

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		select {
		case <-w.Done():
			http.Error(rw, "world stopped", http.StatusServiceUnavailable)
		default:
			rw.WriteHeader(200)
			_, _ = rw.Write([]byte("ok"))
		}
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeWorldMetrics(rw, *worldID, w.Metrics())
		if idx != nil {
			writeIndexMetrics(rw, *worldID, idx.Stats())
		}
		writeBusMetrics(rw, *worldID, bus)
	})
	mux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())
	mux.HandleFunc("/v1/floor/sse", sseSrv.Handler())
	mux.HandleFunc("/v1/params", ctlSrv.ParamsHandler())
	mux.HandleFunc("/v1/control/ws", wsSrv.Handler())

	if envBool("DS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("/admin/v1/state", adminStateHandler(*worldID, runDir, w, idx))
		mux.HandleFunc("/admin/v1/snapshot", adminSnapshotHandler(filepath.Join(runDir, "snapshots"), w, idx))
	} else {
		logger.Info("admin endpoints disabled (DS_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("DS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", "addr", *addr, "world", *worldID, "run_dir", runDir, "seed", tune.Seed, "portals", len(tune.Portals))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("ListenAndServe", "err", err)
	}
	cancel()
	<-w.Done()
}

func adminStateHandler(worldID, runDir string, w *world.World, idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := struct {
			WorldID string             `json:"world_id"`
			RunDir  string             `json:"run_dir"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
			Index   any                `json:"index,omitempty"`
		}{
			WorldID: worldID,
			RunDir:  runDir,
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
		}
		if idx != nil {
			resp.Index = idx.Stats()
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// adminSnapshotHandler writes an on-demand snapshot next to the periodic ones.
func adminSnapshotHandler(dir string, w *world.World, idx snapshotRecorder) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if r.Method != http.MethodPost {
			rw.Header().Set("Allow", http.MethodPost)
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		snap, err := w.RequestSnapshot(ctx)
		if err != nil {
			status, code, msg := control.ErrorStatus(err)
			http.Error(rw, code+": "+msg, status)
			return
		}
		path := snapshot.Path(dir, snap.Header.Tick)
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			http.Error(rw, "write snapshot: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if idx != nil {
			idx.RecordSnapshot(path, snap)
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"tick":   snap.Header.Tick,
			"path":   path,
			"agents": len(snap.Agents),
		})
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
