// Command feedmirror runs one incremental mirror of the item feed into the warehouse
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"feedmirror/internal/core/version"
	"feedmirror/internal/modkit"
	"feedmirror/internal/modkit/module"
	"feedmirror/internal/modkit/repokit"
	"feedmirror/internal/platform/config"
	perr "feedmirror/internal/platform/errors"
	"feedmirror/internal/platform/logger"
	"feedmirror/internal/platform/store"

	"feedmirror/internal/services/mirror/domain"
	mirrormod "feedmirror/internal/services/mirror/module"
	statusmod "feedmirror/internal/services/status/module"
)

const (
	exitOK         = 0
	exitFailed     = 1
	exitLeaseHeld  = 2
	exitBadStartup = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	lcCfg := root.Prefix("SERVICE_LANDING_")

	l := logger.Get()
	info := version.Info()
	l.Info().Str("version", info.Version).Str("commit", info.Commit).Msg("feedmirror starting")

	// postgres is optional; without it there is no run ledger and no lease
	pgURL := pgCfg.MayString("DBURL", "")
	st, err := store.Open(ctx, store.Config{
		AppName: "feedmirror",
		PG: store.PGConfig{
			Enabled:     pgURL != "",
			URL:         pgURL,
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled:     true,
			URL:         chCfg.MustString("DBURL"),
			LogSQL:      chCfg.MayBool("LOG_SQL", true),
			SlowQueryMs: chCfg.MayInt("SLOW_MS", 2000),
		},
		Landing: store.LandingConfig{
			Enabled:   true,
			Endpoint:  lcCfg.MustString("ENDPOINT"),
			AccessKey: lcCfg.MustString("ACCESS_KEY"),
			SecretKey: lcCfg.MustString("SECRET_KEY"),
			Bucket:    lcCfg.MayString("BUCKET", "feedmirror"),
			Region:    lcCfg.MayString("REGION", ""),
			UseSSL:    lcCfg.MayBool("USE_SSL", false),
			PublicURL: lcCfg.MayString("URL", ""),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Error().Err(err).Msg("store.Open failed")
		return exitBadStartup
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if err := repokit.Guard(ctx, st); err != nil {
		l.Error().Err(err).Msg("store guard failed")
		return exitBadStartup
	}

	deps := modkit.Deps{
		Log:     *l,
		Cfg:     root,
		PG:      st.PG,
		CH:      st.CH,
		Landing: st.Landing,
	}

	mm, err := mirrormod.New(ctx, deps)
	if err != nil {
		l.Error().Err(err).Uint16("code", uint16(perr.CodeOf(err))).Msg("mirror module setup failed")
		return exitBadStartup
	}
	module.Register(mm.Name(), mm.Ports())
	l.Debug().Strs("modules", module.Names()).Msg("modules registered")
	ports := module.MustPortsOf[domain.RunnerPort](mm)

	if statusmod.Enabled(deps) {
		mp, _ := module.PortsAs[mirrormod.Ports](mm.Name())
		sm := statusmod.New(deps, modkit.WithPorts(statusmod.Sources{
			Progress: mp.Progress,
			Metrics:  mp.Metrics,
		}))
		sctx, cancelStatus := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- sm.Serve(sctx) }()
		defer func() {
			cancelStatus()
			if err := <-done; err != nil {
				l.Error().Err(err).Msg("status server stopped")
			}
		}()
	}

	sum, err := ports.Run(ctx)
	switch {
	case errors.Is(err, domain.ErrLeaseHeld):
		l.Warn().Msg("another mirror run holds the lease; exiting")
		return exitLeaseHeld
	case err != nil:
		l.Error().Err(err).Uint16("code", uint16(perr.CodeOf(err))).Str("run_id", sum.RunID).Msg("mirror run failed")
		return exitFailed
	}
	return exitOK
}
