package main

import (
	"github.com/raffleworks/backend/migration"
	"github.com/raffleworks/backend/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startMigrate(cctx *cli.Context) error {
	s.loadConfig(cctx)
	s.loadLogger()
	s.loadDatabase()

	return migration.Migrate(s.ctx)
}

func (s *srv) migrateDB() {
	if err := migration.Migrate(s.ctx); err != nil {
		panic(err)
	}

	xcontext.Logger(s.ctx).Infof("Database migration completed")
}
