package main

import "github.com/urfave/cli/v2"

func (s *srv) loadApp() {
	app := cli.NewApp()
	app.Action = cli.ShowAppHelp
	app.Name = "RaffleWorks"
	app.Usage = ""
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path of the TOML configuration file",
		},
	}
	app.Commands = []*cli.Command{
		{
			Action:      server.startWorker,
			Name:        "worker",
			Usage:       "Start broadcast worker",
			Category:    "Worker",
			Description: `Used to start the worker that delivers broadcast jobs and sweeps stale registration states.`,
		},
		{
			Action:      server.startMigrate,
			Name:        "migrate",
			Usage:       "Apply database migrations",
			Category:    "Database",
			Description: `Used to bring the database schema up to the latest version.`,
		},
		{
			Action:      server.startDraw,
			Name:        "draw",
			Usage:       "Execute a prize draw",
			Category:    "Lottery",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "run-id",
					Usage:    "Identifier of the draw run",
					Required: true,
				},
				&cli.IntFlag{
					Name:  "winners",
					Usage: "Number of winners to select",
					Value: 1,
				},
				&cli.StringSliceFlag{
					Name:  "prize",
					Usage: "Prize description per winner position, repeatable",
				},
			},
			Description: `Used to execute a single prize draw over the approved participants.`,
		},
	}

	s.app = app
}
