package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
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

	"github.com/prometheus/client_golang/prometheus"

	"idlecity.ai/internal/observability"
	"idlecity.ai/internal/persistence/indexdb"
	persistlog "idlecity.ai/internal/persistence/log"
	"idlecity.ai/internal/persistence/savefile"
	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/terrain"
	"idlecity.ai/internal/sim/tuning"
	"idlecity.ai/internal/sim/world"
	"idlecity.ai/internal/transport/observer"
	"idlecity.ai/internal/transport/ws"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		city        = flag.String("city", "Rome", "city id (used only when starting a fresh game)")
		seed        = flag.Int64("seed", 1337, "map seed (used only when starting a fresh game)")
		configDir   = flag.String("configs", "./configs", "config directory")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		saveName    = flag.String("save", "game", "save file name under <data>/<save>/")
		backupEvery = flag.Duration("backup_every", 10*time.Minute, "minimum time between rotating backups")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite index (ticks, saves, heartbeats)")
		digest      = flag.Bool("digest", true, "record the state digest in every tick log entry")
		catchUp     = flag.Bool("catch_up", true, "simulate the time since the last save on start")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	gameDir := filepath.Join(*dataDir, *saveName)
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}
	store := savefile.NewStore(gameDir, *saveName, *backupEvery, log.New(os.Stdout, "[save] ", log.LstdFlags))

	st, opts, savedAt, err := loadOrCreate(store, cats, tune, *city, *seed, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(gameDir, "index.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
		store.OnSaved = idx.RecordSave
	}

	reg := prometheus.NewRegistry()
	collector, err := observability.NewCityCollector(reg)
	if err != nil {
		logger.Fatalf("metrics: %v", err)
	}

	tickLog := persistlog.NewTickLogger(gameDir)
	defer tickLog.Close()
	loggers := world.TickLoggers{tickLog, collector}
	hooks := world.Hooks{
		Saver:  store,
		Logger: log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds),
	}
	if idx != nil {
		loggers = append(loggers, idx)
		hooks.Heartbeat = idx
	}
	hooks.TickLogger = loggers

	w, err := world.New(world.Config{ID: *saveName, Tuning: tune, Digest: *digest}, cats, st, opts, hooks)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	journal := persistlog.NewJournal(gameDir, w.Bus(), func() uint64 { return w.Metrics().Tick + 1 }, func(err error) {
		logger.Printf("journal: %v", err)
	})
	defer journal.Close()
	if err := observability.RegisterWorldGauges(reg, w.Metrics); err != nil {
		logger.Fatalf("metrics: %v", err)
	}

	if *catchUp && !savedAt.IsZero() {
		n, err := w.CatchUp(time.Since(savedAt))
		if err != nil {
			logger.Fatalf("catch up: %v", err)
		}
		if n > 0 {
			logger.Printf("caught up %d offline ticks", n)
		}
	}

	obsSrv := observer.NewServer(w, logger)
	defer obsSrv.Close()
	cmdSrv := ws.NewServer(w, logger)
	cmdSrv.OnResult = collector.RecordCommand

	ctx, cancel := signalContext()
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- w.Run(ctx) }()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		if w.Metrics().Halted {
			http.Error(rw, "world halted", http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/v1/ws", cmdSrv.Handler())
	mux.HandleFunc("/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/observer/ws", obsSrv.WSHandler())
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			Game    string             `json:"game"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
			Index   indexdb.Stats      `json:"index"`
		}{
			Game:    *saveName,
			Tick:    w.Metrics().Tick,
			Metrics: w.Metrics(),
			Index:   idx.Stats(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	if envBool("IC_ENABLE_PPROF_HTTP", false) {
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
	go func() {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("ListenAndServe: %v", err)
			cancel()
		}
	}()

	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("world stopped: %v", err)
	}
	cancel()
	w.Wait()

	if w.Halted() == nil {
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer saveCancel()
		if err := store.Save(saveCtx, w.Export()); err != nil {
			logger.Printf("final save: %v", err)
		} else {
			logger.Printf("saved tick=%d to %s", w.Metrics().Tick, store.Path())
		}
	}
}

// loadOrCreate resumes the stored game, or starts a fresh city when there is none.
// savedAt is zero for a fresh game.
func loadOrCreate(store *savefile.Store, cats *catalogs.Catalogs, tune tuning.Tuning, city string, seed int64, logger *log.Logger) (*state.GameState, *state.GameOptions, time.Time, error) {
	sv, err := store.Load(nil)
	switch {
	case err == nil:
		st, opts, err := savefile.Import(sv)
		if err != nil {
			return nil, nil, time.Time{}, err
		}
		logger.Printf("resumed %s city=%s tick=%d", filepath.Base(store.Path()), st.City, st.Tick)
		return st, opts, time.UnixMilli(sv.Header.SavedAt), nil
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, nil, time.Time{}, err
	}

	st := state.New(city, seed)
	if err := terrain.Initialize(st, cats, tune); err != nil {
		return nil, nil, time.Time{}, err
	}
	logger.Printf("new game city=%s seed=%d tiles=%d", city, seed, st.Tiles.Len())
	return st, state.NewGameOptions(), time.Time{}, nil
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

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
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
