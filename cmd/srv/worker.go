package main

import (
	"context"
	"time"

	"github.com/raffleworks/backend/pkg/xcontext"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func (s *srv) startWorker(cctx *cli.Context) error {
	s.loadConfig(cctx)
	s.loadLogger()
	s.loadDatabase()
	s.loadCache()
	s.loadStorage()
	s.loadRepos()
	s.loadDomains()
	s.migrateDB()

	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		s.broadcastWorker.Start(ctx)
		return nil
	})
	g.Go(func() error {
		return s.sweepStaleStates(ctx)
	})

	return g.Wait()
}

func (s *srv) sweepStaleStates(ctx context.Context) error {
	interval := xcontext.Configs(ctx).RegistrationStateTimeout
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.registrationDomain.SweepStaleStates(ctx); err != nil {
				xcontext.Logger(ctx).Errorf("Cannot sweep stale states: %v", err)
			}
		}
	}
}
