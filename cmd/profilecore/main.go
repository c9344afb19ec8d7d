// Command profilecore runs the offline-first profile sync core as a
// standalone process: local store, background sync scheduler, and
// connectivity probing against the remote profile service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/careercompass/profilecore/internal/config"
	"github.com/careercompass/profilecore/internal/db"
	"github.com/careercompass/profilecore/internal/logging"
	"github.com/careercompass/profilecore/internal/netmon"
	"github.com/careercompass/profilecore/internal/profile"
	"github.com/careercompass/profilecore/internal/remote"
	"github.com/careercompass/profilecore/internal/store"
	syncengine "github.com/careercompass/profilecore/internal/sync"
	"github.com/careercompass/profilecore/internal/sync/scheduler"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("info")
		logging.Get().Fatal("load config", zap.Error(err))
	}

	logging.Init(cfg.Logging.Level)
	defer logging.Sync()
	log := logging.Get()

	log.Info("profilecore starting", zap.String("version", Version))

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer database.Close()

	if err := db.NewMigrator(database.DB).Up(); err != nil {
		log.Fatal("migrate up", zap.Error(err))
	}

	persist := store.New(database.DB)
	defer persist.Close()

	client := remote.NewClient(cfg.Remote.BaseURL, remote.StaticToken(cfg.Remote.Token), cfg.Remote.Timeout)
	engine := syncengine.NewEngine(persist, client, cfg.Sync.MaxRetries, log.Named("sync"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := netmon.NewProbeMonitor(cfg.Remote.BaseURL, cfg.Sync.DrainInterval/3)
	monitor.Start(ctx)
	defer monitor.Stop()

	profiles := profile.New(persist, engine, monitor.Online(), log.Named("profile"))

	sched := scheduler.New(engine, profiles, monitor, cfg.Sync.DrainInterval, log.Named("scheduler"))
	sched.Start(ctx)
	defer sched.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("profilecore shutting down")
}
