package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"talentpipe-engine/internal/cache"
	"talentpipe-engine/internal/config"
	"talentpipe-engine/internal/emailstyle"
	"talentpipe-engine/internal/events"
	"talentpipe-engine/internal/httpapi"
	"talentpipe-engine/internal/pipeline"
	"talentpipe-engine/internal/remote"
	"talentpipe-engine/internal/scheduler"
	"talentpipe-engine/internal/searchstring"
	"talentpipe-engine/internal/secrets"
	"talentpipe-engine/internal/store"
)

func main() {
	// Engine data dir: env wins (the portal dev setup passes one), else local.
	dataDir := os.Getenv("TALENTPIPE_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// One engine per data dir; a second instance would fight over the
	// journal and double-dispatch jobs.
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("data dir lock: %v", err)
	}
	if !locked {
		log.Fatalf("another engine is already running in %s", dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value
	loadCfg := func() (config.Config, error) {
		raw, err := config.Load(userCfgPath)
		if err != nil {
			return raw, err
		}
		normalized, vr := config.NormalizeAndValidate(raw)
		if !vr.OK() {
			return raw, fmt.Errorf("invalid config: %v", vr.Errors)
		}
		for _, w := range vr.Warnings {
			log.Printf("[config] warn: %s", w)
		}
		return normalized, nil
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	cfgVal.Store(cfg)

	apiKey := cfg.Remote.AnonKey
	if apiKey == "" {
		apiKey, err = secrets.GetServiceKey()
		if err != nil {
			log.Fatalf("no remote credentials: %v", err)
		}
	}

	journal, err := store.Open(filepath.Join(dataDir, "talentpipe.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer journal.Close()
	if err := store.Migrate(journal.Pool); err != nil {
		log.Fatal(err)
	}

	backend := remote.NewClient(cfg.Remote.BaseURL, apiKey, cfg.Remote.ReqPerSec, cfg.Remote.Burst)
	hub := events.NewHub()
	boardCache := cache.New(time.Duration(cfg.Cache.TTLSeconds) * time.Second)

	board := pipeline.NewBoard(backend, boardCache, hub, journal.Pool)
	orchestrator := searchstring.NewOrchestrator(backend, cfg.Remote.PDFBucket, hub, journal.Pool)
	peek := searchstring.NewPagePeek(remote.NewHostLimiter(1, 2))

	deps := httpapi.Deps{
		Board:        board,
		Orchestrator: orchestrator,
		Peek:         peek,
		Hub:          hub,
		CfgVal:       &cfgVal,
		UserCfgPath:  userCfgPath,
		LoadCfg:      loadCfg,
	}
	if cfg.Email.Enabled {
		sampler := emailstyle.NewSampler(cfg, backend)
		deps.CreatePersona = sampler.CreatePersona
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Every(ctx, time.Duration(cfg.Refresh.PendingSeconds)*time.Second,
		"refresh", orchestrator.RefreshPending)
	go scheduler.Every(ctx, time.Duration(cfg.Refresh.SweepSeconds)*time.Second,
		"cache-sweep", func(context.Context) error {
			if n := boardCache.Sweep(); n > 0 {
				log.Printf("[cache-sweep] dropped=%d", n)
			}
			return nil
		})

	handler := httpapi.Chain(
		httpapi.NewMux(deps),
		httpapi.RequestID,
		httpapi.Recover,
		httpapi.AccessLog,
		httpapi.Cors,
	)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("engine listening on http://%s (data=%s)", addr, dataDir)

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Fatal(srv.Serve(ln))
}
