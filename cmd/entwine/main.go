// Command entwine ingests point-cloud sources into a concurrent octree
// and serves read-only queries over the result. Grounded on
// cmd/cc-backend's main.go: flag parsing, config/env loading, optional
// gops agent, wiring storage before the layers built on top of it, and
// a signal-driven graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/gops/agent"

	"github.com/entwine-go/entwine/internal/catalog"
	"github.com/entwine-go/entwine/internal/config"
	"github.com/entwine-go/entwine/internal/hierarchy"
	"github.com/entwine-go/entwine/internal/httpapi"
	"github.com/entwine-go/entwine/internal/producer"
	"github.com/entwine-go/entwine/internal/registry"
	"github.com/entwine-go/entwine/pkg/log"
)

func main() {
	cliInit()
	log.SetLogLevel(flagLogLevel)
	log.SetLogDateTime(flagLogDateTime)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	cfg, err := config.Load(flagConfigFile, flagEnvFile)
	if err != nil {
		log.Fatal(err)
	}

	cat, err := catalog.Open(cfg.CatalogDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer cat.Close()

	ctx := context.Background()
	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer eng.closeStore()

	buildId, err := cat.StartBuild(flagBuildName, time.Now())
	if err != nil {
		log.Fatal(err)
	}

	srv := httpapi.New(eng.h, eng.collectors)

	checkpoint, err := startCheckpointScheduler(cfg, eng)
	if err != nil {
		log.Fatal(err)
	}

	if flagInputs != "" {
		ingestInputs(ctx, cat, buildId, eng, strings.Split(flagInputs, ","))
	}

	if flagNoServer {
		finishBuild(ctx, cat, buildId, eng, checkpoint)
		return
	}

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(os.Stderr),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP server listening at %s...", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)

	finishBuild(ctx, cat, buildId, eng, checkpoint)
	wg.Wait()
	log.Print("Graceful shutdown completed!")
}

// ingestInputs runs every file in paths through the reference producer in
// turn, recording each file's outcome in the catalog and feeding observed
// drops to the metrics collectors.
func ingestInputs(ctx context.Context, cat *catalog.Catalog, buildId int64, eng *engine, paths []string) {
	factory := func() *hierarchy.Climber { return hierarchy.NewClimber(eng.h, eng.cfg.Is3d) }

	for i, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		obs := producer.ObserverFunc(func(ok bool, reason registry.DropReason) {
			eng.collectors.ObserveAddPoint(ok, reason)
		})

		stats, err := producer.RunFile(ctx, eng.reg, factory, eng.schema, eng.infoPool, eng.dataPool, eng.rootBBox, eng.cfg.Is3d, eng.cfg.MaxDepth, uint64(i), path, obs)
		dropped := stats.Duplicate + stats.OutOfRange + stats.MaxDepth + stats.Errored
		if err != nil {
			log.Errorf("entwine: ingesting %q: %v", path, err)
			cat.RecordSource(buildId, path, stats.Inserted, dropped, time.Now(), err)
			continue
		}
		log.Infof("entwine: ingested %q: %d inserted, %d dropped", path, stats.Inserted, dropped)
		cat.RecordSource(buildId, path, stats.Inserted, dropped, time.Now(), nil)
	}
}

func finishBuild(ctx context.Context, cat *catalog.Catalog, buildId int64, eng *engine, checkpoint gocron.Scheduler) {
	if checkpoint != nil {
		checkpoint.Shutdown()
	}

	chunkIds, err := eng.save(ctx)
	if err != nil {
		log.Errorf("entwine: saving build: %v", err)
		cat.FailBuild(buildId, time.Now(), err)
		return
	}
	if err := cat.FinishBuild(buildId, time.Now(), chunkIds); err != nil {
		log.Errorf("entwine: recording finished build: %v", err)
	}
}
